package llm

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/daydemir/research-ralph/internal/types"
	"github.com/daydemir/research-ralph/internal/utils"
)

func init() {
	Register(types.AgentCodex.String(), func(opts Options) Backend { return NewCodex(opts) })
}

// Codex implements the Backend interface for the Codex CLI. The prompt goes
// on stdin and the final answer is read back from --output-last-message.
type Codex struct {
	BinaryPath string
	Model      string
}

// NewCodex creates a new Codex backend
func NewCodex(opts Options) *Codex {
	binaryPath := opts.Binary
	if binaryPath == "" {
		binaryPath = "codex"
	}
	return &Codex{BinaryPath: utils.ResolveBinaryPath(binaryPath), Model: opts.Model}
}

func (c *Codex) Name() string {
	return types.AgentCodex.String()
}

// Available checks that the codex binary can be run
func (c *Codex) Available() error {
	return checkBinary(c.Name(), c.BinaryPath)
}

// Invoke runs codex exec and appends the last message to the output
func (c *Codex) Invoke(ctx context.Context, req Request) (Result, error) {
	lastMessage, err := os.CreateTemp("", "research-ralph-codex-*.txt")
	if err != nil {
		return Result{}, fmt.Errorf("failed to create codex message file: %w", err)
	}
	lastPath := lastMessage.Name()
	lastMessage.Close()
	defer os.Remove(lastPath)

	res := process{
		binary: c.BinaryPath,
		args:   c.buildArgs(req, lastPath),
		stdin:  req.Prompt,
	}.run(ctx, req)

	if data, err := os.ReadFile(lastPath); err == nil && len(data) > 0 {
		if res.Output != "" && !strings.HasSuffix(res.Output, "\n") {
			res.Output += "\n"
		}
		res.Output += string(data)
	}
	return res, nil
}

func (c *Codex) buildArgs(req Request, lastPath string) []string {
	args := []string{"exec", "--dangerously-bypass-approvals-and-sandbox", "--output-last-message", lastPath}
	model := req.Model
	if model == "" {
		model = c.Model
	}
	if model != "" {
		args = append(args, "--model", model)
	}
	return append(args, "-")
}
