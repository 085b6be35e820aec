package tts

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strings"
)

const streamChunkSize = 4096

// runCommand executes argv with payload on stdin and returns captured
// stdout. A cancelled context kills the process; the child is always
// reaped before return.
func runCommand(ctx context.Context, argv []string, payload []byte) ([]byte, error) {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdin = bytes.NewReader(payload)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, commandError(argv, err, stderr.String())
	}
	return stdout.Bytes(), nil
}

// streamCommand executes argv with payload on stdin and forwards stdout
// to chunks in fixed-size reads until EOF. The caller owns the chunks
// channel; streamCommand never closes it.
func streamCommand(ctx context.Context, argv []string, payload []byte, chunks chan<- []byte) error {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdin = bytes.NewReader(payload)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		return err
	}

	buf := make([]byte, streamChunkSize)
	for {
		n, readErr := stdout.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case chunks <- chunk:
			case <-ctx.Done():
				cmd.Wait()
				return ctx.Err()
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			cmd.Wait()
			return readErr
		}
	}

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return commandError(argv, err, stderr.String())
	}
	return nil
}

func commandError(argv []string, err error, stderr string) error {
	name := filepath.Base(argv[0])
	if msg := strings.TrimSpace(stderr); msg != "" {
		return fmt.Errorf("%s command failed: %w: %s", name, err, msg)
	}
	return fmt.Errorf("%s command failed: %w", name, err)
}
