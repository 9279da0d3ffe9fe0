package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
)

// Tool is a narrow capability handle for an external program a stage
// shells out to: the command line, where it runs, and the artifact it
// is expected to leave behind. The orchestration core never parses a
// tool's output format itself; stages that need parsed output read the
// artifact afterwards.
type Tool struct {
	// Name for logs and error messages, e.g. "mafft" or "tblastn".
	Name string

	// Exe is the executable path or bare name resolved via $PATH.
	Exe string

	// Args are passed verbatim.
	Args []string

	// Dir is the working directory; empty means inherit.
	Dir string

	// Output is the artifact the tool must produce. Zero value means
	// the tool writes to a location the stage checks itself.
	Output Artifact

	// StdoutToOutput redirects the tool's stdout into Output.Path, for
	// tools that write their result to stdout rather than a file flag.
	StdoutToOutput bool
}

// Exec runs the tool and blocks until it exits. A non-zero exit status
// is a stage failure; stderr is folded into the error so the operator
// sees the tool's own message. Any partially written output artifact is
// removed before returning the error.
func (t Tool) Exec(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, t.Exe, t.Args...)
	cmd.Dir = t.Dir

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if t.StdoutToOutput {
		out, err := os.Create(t.Output.Path)
		if err != nil {
			return fmt.Errorf("failed to create %s output %s: %w", t.Name, t.Output.Path, err)
		}
		defer out.Close()
		cmd.Stdout = out
	}

	if err := cmd.Run(); err != nil {
		if t.Output.Path != "" {
			_ = t.Output.Remove()
		}
		msg := stderr.String()
		if len(msg) > 2000 {
			msg = msg[len(msg)-2000:]
		}
		return fmt.Errorf("%s exited abnormally: %v: %s", t.Name, err, msg)
	}
	return nil
}

// Available reports whether the executable can be found, for upfront
// validation before any stage runs.
func (t Tool) Available() bool {
	_, err := exec.LookPath(t.Exe)
	return err == nil
}

// Version runs the tool with a version flag and returns trimmed output,
// used to log the toolchain at startup.
func (t Tool) Version(ctx context.Context, flag string) (string, error) {
	out, err := exec.CommandContext(ctx, t.Exe, flag).CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("failed to run %s %s: %w", t.Name, flag, err)
	}
	return string(bytes.TrimSpace(out)), nil
}
