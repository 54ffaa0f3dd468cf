package remote

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
)

// lineRelay is an io.Writer that forwards complete lines to a logger.
// Partial writes are buffered until their newline arrives; Flush emits any
// trailing partial line.
type lineRelay struct {
	logger *slog.Logger
	mu     sync.Mutex
	buf    bytes.Buffer
}

func newLineRelay(logger *slog.Logger) *lineRelay {
	return &lineRelay{logger: logger}
}

func (r *lineRelay) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buf.Write(p)
	for {
		line, err := r.buf.ReadString('\n')
		if err != nil {
			// No complete line yet; keep the partial for the next write.
			r.buf.WriteString(line)
			break
		}
		r.emit(line)
	}
	return len(p), nil
}

// Flush emits any buffered partial line.
func (r *lineRelay) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.buf.Len() > 0 {
		r.emit(r.buf.String())
		r.buf.Reset()
	}
}

func (r *lineRelay) emit(line string) {
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return
	}
	r.logger.Info("agent: " + line)
}
