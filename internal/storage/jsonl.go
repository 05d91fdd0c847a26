package storage

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"marketScope/internal/model"
)

// JsonlStorage writes raw logs to a JSONL file.
type JsonlStorage struct {
	path string
	mu   sync.Mutex
}

func NewJsonlStorage(path string) *JsonlStorage {
	return &JsonlStorage{path: path}
}

// PutLogBatch appends a batch of raw logs as JSON lines.
func (s *JsonlStorage) PutLogBatch(logs []model.RawLog) error {
	if len(logs) == 0 {
		return nil
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, record := range logs {
		line, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal raw log: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write raw log: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}

	return nil
}

// ReadLogs streams raw logs written by PutLogBatch. A line that fails to parse
// is handed to fn with its error instead of stopping the scan; blank lines are ignored.
func ReadLogs(path string, fn func(line int, record model.RawLog, err error) error) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		var record model.RawLog
		if err := json.Unmarshal(text, &record); err != nil {
			if err := fn(line, model.RawLog{}, fmt.Errorf("line %d: %w", line, err)); err != nil {
				return err
			}
			continue
		}
		if err := fn(line, record, nil); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan input: %w", err)
	}
	return nil
}
