// Package store persists post metadata as JSON Lines: one object per
// line, timestamps serialized as RFC3339 strings.
package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/caesarw/pixnet-crawler/internal/blog"
)

// WriteMetadata writes one JSON object per metadata entry. The file is
// truncated first; writes go through a buffered writer.
func WriteMetadata(path string, metas []blog.Metadata) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, closeErr)
		}
	}()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, meta := range metas {
		if err := enc.Encode(meta); err != nil {
			return fmt.Errorf("encode metadata line: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}
	return nil
}

// ReadMetadata parses a JSON Lines metadata file back into records.
// Blank lines are tolerated; a malformed line is an error.
func ReadMetadata(path string) ([]blog.Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var metas []blog.Metadata
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		var meta blog.Metadata
		if err := json.Unmarshal([]byte(raw), &meta); err != nil {
			return nil, fmt.Errorf("parse line %d of %s: %w", line, path, err)
		}
		metas = append(metas, meta)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return metas, nil
}
