package chunk

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrStreamNotFound is returned by ReadFile when the stream file does not exist.
var ErrStreamNotFound = errors.New("chunk stream not found")

// maxLineBytes bounds a single JSONL record. Scene contexts can be long.
const maxLineBytes = 8 * 1024 * 1024

// WriteJSONL writes one chunk object per line.
func WriteJSONL(w io.Writer, chunks []Chunk) error {
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	for i, c := range chunks {
		if err := encoder.Encode(c); err != nil {
			return fmt.Errorf("failed to encode chunk %d: %w", i, err)
		}
	}
	return nil
}

// ReadJSONL reads a chunk stream. Blank lines are ignored; malformed records
// and records without text are skipped and counted rather than aborting the load.
func ReadJSONL(r io.Reader) ([]Chunk, int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var chunks []Chunk
	skipped := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var c Chunk
		if err := json.Unmarshal([]byte(line), &c); err != nil {
			skipped++
			continue
		}
		if strings.TrimSpace(c.Text) == "" {
			skipped++
			continue
		}
		chunks = append(chunks, c)
	}
	if err := scanner.Err(); err != nil {
		return chunks, skipped, fmt.Errorf("failed to read chunk stream: %w", err)
	}
	return chunks, skipped, nil
}

// WriteFile writes a chunk stream to path, creating parent directories.
func WriteFile(path string, chunks []Chunk) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create stream directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create stream file: %w", err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	if err := WriteJSONL(w, chunks); err != nil {
		return err
	}
	return w.Flush()
}

// ReadFile loads a chunk stream from path.
func ReadFile(path string) ([]Chunk, int, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, fmt.Errorf("%w: %s", ErrStreamNotFound, path)
		}
		return nil, 0, err
	}
	defer file.Close()
	return ReadJSONL(file)
}
