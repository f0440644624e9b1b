package runner

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
)

// Options adjusts how a command is executed.
type Options struct {
	Dir string
	// Env is appended to the inherited environment; later entries win.
	Env    []string
	Stdout io.Writer
	Stderr io.Writer
}

// Result holds the captured output streams of a finished command.
type Result struct {
	Stdout []byte
	Stderr []byte
}

// Runner executes a command to completion.
type Runner interface {
	Run(ctx context.Context, command string, args []string, opts Options) (Result, error)
}

// Exec runs commands with os/exec.
type Exec struct{}

func (Exec) Run(ctx context.Context, command string, args []string, opts Options) (Result, error) {
	cmd := exec.CommandContext(ctx, command, args...)
	if opts.Dir != "" {
		cmd.Dir = opts.Dir
	}
	if len(opts.Env) > 0 {
		cmd.Env = append(os.Environ(), opts.Env...)
	}

	var stdoutBuf, stderrBuf bytes.Buffer

	stdoutWriter := io.Writer(&stdoutBuf)
	if opts.Stdout != nil {
		stdoutWriter = io.MultiWriter(&stdoutBuf, opts.Stdout)
	}
	stderrWriter := io.Writer(&stderrBuf)
	if opts.Stderr != nil {
		stderrWriter = io.MultiWriter(&stderrBuf, opts.Stderr)
	}

	cmd.Stdout = stdoutWriter
	cmd.Stderr = stderrWriter

	err := cmd.Run()
	return Result{Stdout: stdoutBuf.Bytes(), Stderr: stderrBuf.Bytes()}, err
}

var _ Runner = Exec{}

// Func adapts a function to the Runner interface.
type Func func(ctx context.Context, command string, args []string, opts Options) (Result, error)

func (f Func) Run(ctx context.Context, command string, args []string, opts Options) (Result, error) {
	return f(ctx, command, args, opts)
}
