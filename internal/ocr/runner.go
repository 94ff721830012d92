// Package ocr adapts the tesseract command line tool to the OCR engine port.
package ocr

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// Runner executes external commands; tests substitute a fake.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	Logger *slog.Logger
}

func (r ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, name, args...)
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb

	err := cmd.Run()
	dur := time.Since(start)

	if r.Logger != nil {
		if err != nil {
			r.Logger.Error("ocr.ExecRunner.Run: exec failed",
				"cmd", name,
				"args", strings.Join(args, " "),
				"duration_ms", dur.Milliseconds(),
				"error", err,
				"stderr", truncate(errb.String(), 8<<10),
			)
		} else {
			r.Logger.Debug("ocr.ExecRunner.Run: exec ok",
				"cmd", name,
				"duration_ms", dur.Milliseconds(),
				"stdout_bytes", out.Len(),
			)
		}
	}
	return out.Bytes(), errb.Bytes(), err
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
