package provider

import (
	"bufio"
	"context"
	"io"
	"strings"
)

const (
	sseDataPrefix = "data:"
	sseDone       = "[DONE]"
)

// readSSE calls fn with the payload of every "data:" record in r until the
// [DONE] terminator or EOF. Other SSE fields are ignored.
func readSSE(ctx context.Context, r io.Reader, fn func(data []byte) error) error {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Text()
		if !strings.HasPrefix(line, sseDataPrefix) {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, sseDataPrefix))
		if data == "" {
			continue
		}
		if data == sseDone {
			return nil
		}
		if err := fn([]byte(data)); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return scanner.Err()
}
