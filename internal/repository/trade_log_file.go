package repository

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"TrendPull/internal/domain/models"
	drepo "TrendPull/internal/domain/repository"
)

// FileTradeLog appends one JSON object per line. The file is never rewritten.
type FileTradeLog struct {
	mu    sync.Mutex
	path  string
	f     *os.File
	fsync bool
}

var _ drepo.TradeLog = (*FileTradeLog)(nil)

// NewFileTradeLog opens path for appending, creating parent directories.
func NewFileTradeLog(path string, fsync bool) (*FileTradeLog, error) {
	if path == "" {
		return nil, fmt.Errorf("trade log path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create trade log dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open trade log: %w", err)
	}
	return &FileTradeLog{path: path, f: f, fsync: fsync}, nil
}

// Path returns the log file location.
func (l *FileTradeLog) Path() string { return l.path }

func (l *FileTradeLog) Append(_ context.Context, rec models.TradeRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode trade record: %w", err)
	}
	b = append(b, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return os.ErrClosed
	}
	if _, err := l.f.Write(b); err != nil {
		return fmt.Errorf("append trade record: %w", err)
	}
	if l.fsync {
		return l.f.Sync()
	}
	return nil
}

// Recent returns up to n records, oldest first. A torn trailing line is skipped.
func (l *FileTradeLog) Recent(_ context.Context, n int) ([]models.TradeRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open trade log: %w", err)
	}
	defer f.Close()

	var out []models.TradeRecord
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec models.TradeRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}
		out = append(out, rec)
		if n > 0 && len(out) > n {
			out = out[1:]
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read trade log: %w", err)
	}
	return out, nil
}

func (l *FileTradeLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	return err
}
