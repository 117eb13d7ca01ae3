// services/sitemodel/internal/infrastructure/deadletter.go
package infrastructure

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DeadLetterEntry is a message that could not be delivered to its topic.
type DeadLetterEntry struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Topic     string          `json:"topic"`
	Data      json.RawMessage `json:"data"`
	Retries   int             `json:"retries"`
	LastError string          `json:"last_error,omitempty"`
}

// DeadLetter is an append-only JSON-lines journal of undelivered messages.
type DeadLetter struct {
	path string
	file *os.File
	mu   sync.Mutex
}

// NewDeadLetter opens or creates the journal at path.
func NewDeadLetter(path string) (*DeadLetter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create dead letter directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open dead letter file: %w", err)
	}

	return &DeadLetter{path: path, file: file}, nil
}

// Write journals a message bound for topic.
func (d *DeadLetter) Write(topic string, data interface{}, cause error) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal dead letter data: %w", err)
	}

	entry := DeadLetterEntry{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Topic:     topic,
		Data:      raw,
	}
	if cause != nil {
		entry.LastError = cause.Error()
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	return d.append(d.file, entry)
}

func (d *DeadLetter) append(w io.Writer, entry DeadLetterEntry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal dead letter entry: %w", err)
	}
	line = append(line, '\n')
	if _, err := w.Write(line); err != nil {
		return fmt.Errorf("failed to write dead letter entry: %w", err)
	}
	if f, ok := w.(*os.File); ok {
		if err := f.Sync(); err != nil {
			return fmt.Errorf("failed to sync dead letter file: %w", err)
		}
	}
	return nil
}

// ReadAll returns every journaled entry. Corrupted lines are skipped.
func (d *DeadLetter) ReadAll() ([]DeadLetterEntry, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := d.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to seek dead letter file: %w", err)
	}

	var entries []DeadLetterEntry
	scanner := bufio.NewScanner(d.file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var entry DeadLetterEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read dead letter file: %w", err)
	}

	if _, err := d.file.Seek(0, io.SeekEnd); err != nil {
		return nil, fmt.Errorf("failed to seek to end of dead letter file: %w", err)
	}
	return entries, nil
}

// Replace atomically rewrites the journal with entries.
func (d *DeadLetter) Replace(entries []DeadLetterEntry) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	tempPath := d.path + ".tmp"
	tempFile, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temp dead letter file: %w", err)
	}

	writer := bufio.NewWriter(tempFile)
	for _, entry := range entries {
		if err := d.append(writer, entry); err != nil {
			tempFile.Close()
			return err
		}
	}
	if err := writer.Flush(); err != nil {
		tempFile.Close()
		return fmt.Errorf("failed to flush temp dead letter file: %w", err)
	}
	if err := tempFile.Sync(); err != nil {
		tempFile.Close()
		return fmt.Errorf("failed to sync temp dead letter file: %w", err)
	}
	tempFile.Close()

	d.file.Close()
	if err := os.Rename(tempPath, d.path); err != nil {
		return fmt.Errorf("failed to replace dead letter file: %w", err)
	}

	d.file, err = os.OpenFile(d.path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to reopen dead letter file: %w", err)
	}
	return nil
}

// Close closes the journal.
func (d *DeadLetter) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.file != nil {
		return d.file.Close()
	}
	return nil
}
