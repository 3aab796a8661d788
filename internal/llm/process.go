package llm

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/daydemir/research-ralph/internal/utils"
)

// NotStartedExitCode marks an invocation whose process never started
const NotStartedExitCode = -1

// process describes one subprocess run
type process struct {
	binary string
	args   []string
	stdin  string
}

// run executes p and collects combined stdout and stderr. The subprocess is
// not tied to ctx: once started it always runs to completion. ctx only
// prevents a start after cancellation.
func (p process) run(ctx context.Context, req Request) Result {
	if err := ctx.Err(); err != nil {
		return Result{ExitCode: NotStartedExitCode, Output: fmt.Sprintf("not started: %v", err)}
	}

	start := time.Now()
	cmd := exec.Command(p.binary, p.args...)
	cmd.Dir = req.WorkDir
	cmd.Env = append(os.Environ(), req.Env...)
	if p.stdin != "" {
		cmd.Stdin = strings.NewReader(p.stdin)
	}

	r, w, err := os.Pipe()
	if err != nil {
		return Result{ExitCode: NotStartedExitCode, Output: fmt.Sprintf("failed to create output pipe: %v", err)}
	}
	defer r.Close()
	cmd.Stdout = w
	cmd.Stderr = w

	if err := cmd.Start(); err != nil {
		w.Close()
		msg := fmt.Sprintf("failed to start %s: %v", p.binary, err)
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			msg += "\n" + utils.BinaryNotFoundError(p.binary).Error()
		}
		return Result{ExitCode: NotStartedExitCode, Output: msg, Duration: time.Since(start)}
	}
	// the child holds its own copy
	w.Close()

	var out strings.Builder
	reader := bufio.NewReader(r)
	for {
		line, readErr := reader.ReadString('\n')
		if line != "" {
			out.WriteString(line)
			if req.OnLine != nil {
				req.OnLine(strings.TrimRight(line, "\r\n"))
			}
		}
		if readErr != nil {
			if readErr != io.EOF {
				fmt.Fprintf(&out, "\n[output read error: %v]\n", readErr)
			}
			break
		}
	}

	exitCode := 0
	if err := cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
			if exitCode < 0 {
				// killed by a signal
				exitCode = 1
				fmt.Fprintf(&out, "\n%s\n", exitErr.Error())
			}
		} else {
			exitCode = 1
			fmt.Fprintf(&out, "\n%v\n", err)
		}
	}

	return Result{ExitCode: exitCode, Output: out.String(), Duration: time.Since(start)}
}

// checkBinary is shared by the backends' Available methods
func checkBinary(name, resolved string) error {
	if err := utils.CheckBinary(resolved); err != nil {
		return utils.BinaryNotFoundError(name)
	}
	return nil
}
