package llm

import (
	"context"
	"strings"

	"github.com/daydemir/research-ralph/internal/types"
	"github.com/daydemir/research-ralph/internal/utils"
)

// DefaultAllowedTools are the tools granted to Claude Code when none are configured
var DefaultAllowedTools = []string{"Bash", "Read", "Edit", "Write", "Grep", "Glob", "WebFetch", "WebSearch"}

func init() {
	Register(types.AgentClaude.String(), func(opts Options) Backend { return NewClaude(opts) })
}

// Claude implements the Backend interface for Claude Code CLI
type Claude struct {
	BinaryPath   string
	Model        string
	AllowedTools []string
}

// NewClaude creates a new Claude backend
func NewClaude(opts Options) *Claude {
	binaryPath := opts.Binary
	if binaryPath == "" {
		binaryPath = "claude"
	}
	tools := opts.AllowedTools
	if len(tools) == 0 {
		tools = DefaultAllowedTools
	}
	return &Claude{
		BinaryPath:   utils.ResolveBinaryPath(binaryPath),
		Model:        opts.Model,
		AllowedTools: tools,
	}
}

func (c *Claude) Name() string {
	return types.AgentClaude.String()
}

// Available checks that the claude binary can be run
func (c *Claude) Available() error {
	return checkBinary(c.Name(), c.BinaryPath)
}

// Invoke runs Claude Code in print mode with the prompt as an argument
func (c *Claude) Invoke(ctx context.Context, req Request) (Result, error) {
	return process{binary: c.BinaryPath, args: c.buildArgs(req)}.run(ctx, req), nil
}

func (c *Claude) buildArgs(req Request) []string {
	args := []string{"-p", req.Prompt, "--dangerously-skip-permissions"}

	if len(c.AllowedTools) > 0 {
		args = append(args, "--allowedTools", strings.Join(c.AllowedTools, ","))
	}

	model := req.Model
	if model == "" {
		model = c.Model
	}
	if model != "" {
		args = append(args, "--model", model)
	}
	return args
}
