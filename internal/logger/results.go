package logger

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/gzhole/logshield/internal/analyzer"
	"github.com/gzhole/logshield/internal/redact"
)

// defaultMaxLogBytes is the size at which the results file is rotated to
// <path>.1 before the next write.
const defaultMaxLogBytes = 10 << 20

// ResultRecord is one line of the results file.
type ResultRecord struct {
	LoggedAt string `json:"logged_at"`
	analyzer.Result
}

// ResultWriter appends results to a JSONL file, one result per line.
// Messages and recommendations are redacted before they hit disk.
type ResultWriter struct {
	path     string
	maxBytes int64
	file     *os.File
	mu       sync.Mutex
	now      func() time.Time
}

// NewResultWriter opens (or creates) the results file at path.
func NewResultWriter(path string) (*ResultWriter, error) {
	w := &ResultWriter{path: path, maxBytes: defaultMaxLogBytes, now: time.Now}
	if err := w.open(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *ResultWriter) open() error {
	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open results file: %w", err)
	}
	w.file = f
	return nil
}

// rotate moves a full file to <path>.1, replacing any older backup.
func (w *ResultWriter) rotate() error {
	info, err := w.file.Stat()
	if err != nil || info.Size() < w.maxBytes {
		return err
	}
	if err := w.file.Close(); err != nil {
		return err
	}
	if err := os.Rename(w.path, w.path+".1"); err != nil {
		return fmt.Errorf("failed to rotate results file: %w", err)
	}
	return w.open()
}

// Write appends results in order. The file is rotated first when it has
// reached its size limit.
func (w *ResultWriter) Write(results []analyzer.Result) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return os.ErrClosed
	}
	if err := w.rotate(); err != nil {
		return err
	}

	stamp := w.now().UTC().Format(time.RFC3339)
	var buf []byte
	for _, r := range results {
		r.Message = redact.Redact(r.Message)
		r.Recommendation = redact.Redact(r.Recommendation)
		data, err := json.Marshal(ResultRecord{LoggedAt: stamp, Result: r})
		if err != nil {
			return err
		}
		buf = append(buf, data...)
		buf = append(buf, '\n')
	}
	_, err := w.file.Write(buf)
	return err
}

func (w *ResultWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file != nil {
		err := w.file.Close()
		w.file = nil
		return err
	}
	return nil
}
