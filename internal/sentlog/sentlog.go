// Package sentlog tracks which entries have already been mailed out. The
// log is a newline-delimited file of backend/collection/id keys living
// inside the output repository, so appends flow through the same
// commit-if-changed gate as the listings.
package sentlog

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Log reads and appends sent-entry records.
type Log struct {
	path string
}

// New opens a sent log at the given path. The file need not exist yet.
func New(path string) *Log {
	return &Log{path: path}
}

// Sent returns the set of already-sent entry keys. A missing file means
// nothing was sent yet.
func (l *Log) Sent() (map[string]bool, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]bool{}, nil
		}
		return nil, fmt.Errorf("open sent log: %w", err)
	}
	defer f.Close()

	sent := map[string]bool{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			sent[line] = true
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read sent log: %w", err)
	}
	return sent, nil
}

// Record appends one entry key. Called only after a successful delivery,
// so a failed send leaves the entry eligible for the next run.
func (l *Log) Record(key string) error {
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open sent log for append: %w", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintln(f, key); err != nil {
		return fmt.Errorf("append sent log: %w", err)
	}
	return nil
}
