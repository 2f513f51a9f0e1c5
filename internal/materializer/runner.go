package materializer

import (
	"bufio"
	"context"
	"errors"
	"os/exec"
)

// Runner executes external tools (yt-dlp, ffmpeg, ffprobe). The production
// runner shells out; tests inject scripted fakes so every cascade stage can
// be exercised without the toolchain.
type Runner interface {
	// Run starts name with args and streams each stdout line to onLine (which
	// may be nil). It returns the process exit code once the process ends.
	// A non-nil error means the process could not run at all: tool absent
	// from PATH, context cancelled before completion, pipe failure.
	Run(ctx context.Context, onLine func(string), name string, args ...string) (int, error)
}

type execRunner struct{}

// ExecRunner runs tools via os/exec.
var ExecRunner Runner = execRunner{}

func (execRunner) Run(ctx context.Context, onLine func(string), name string, args ...string) (int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = nil

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return 0, err
	}
	if err := cmd.Start(); err != nil {
		return 0, err
	}

	sc := bufio.NewScanner(stdout)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if onLine != nil {
			onLine(sc.Text())
		}
	}

	err = cmd.Wait()
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode(), nil
	}
	if err != nil {
		return 0, err
	}
	return 0, nil
}
