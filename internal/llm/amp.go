package llm

import (
	"context"

	"github.com/daydemir/research-ralph/internal/types"
	"github.com/daydemir/research-ralph/internal/utils"
)

func init() {
	Register(types.AgentAmp.String(), func(opts Options) Backend { return NewAmp(opts) })
}

// Amp implements the Backend interface for the Amp CLI. The prompt goes on stdin.
type Amp struct {
	BinaryPath string
}

// NewAmp creates a new Amp backend
func NewAmp(opts Options) *Amp {
	binaryPath := opts.Binary
	if binaryPath == "" {
		binaryPath = "amp"
	}
	return &Amp{BinaryPath: utils.ResolveBinaryPath(binaryPath)}
}

func (a *Amp) Name() string {
	return types.AgentAmp.String()
}

// Available checks that the amp binary can be run
func (a *Amp) Available() error {
	return checkBinary(a.Name(), a.BinaryPath)
}

// Invoke runs amp with all permissions granted
func (a *Amp) Invoke(ctx context.Context, req Request) (Result, error) {
	p := process{
		binary: a.BinaryPath,
		args:   []string{"--dangerously-allow-all"},
		stdin:  req.Prompt,
	}
	return p.run(ctx, req), nil
}
