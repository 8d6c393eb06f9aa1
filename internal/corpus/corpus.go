/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package corpus loads the reference question/answer dataset
package corpus

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ErrDatasetFormat is returned for unreadable or malformed dataset files
var ErrDatasetFormat = errors.New("dataset format error")

// Entry is one historical question with the SQL that answered it
type Entry struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Document renders the entry as the text that gets embedded and retrieved
func (e Entry) Document() string {
	return "Question: " + e.Question + "\nAnswer: " + e.Answer
}

// record keeps pointers so a missing field can be told apart from an empty one
type record struct {
	Question *string `json:"question"`
	Answer   *string `json:"answer"`
}

// Load reads a JSON array of {"question", "answer"} records. An empty array
// yields an empty, non-nil slice.
func Load(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %w", ErrDatasetFormat, path, err)
	}
	return Parse(data)
}

// Parse decodes dataset contents
func Parse(data []byte) ([]Entry, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("%w: top-level value must be an array", ErrDatasetFormat)
	}

	var records []record
	if err := json.Unmarshal(trimmed, &records); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatasetFormat, err)
	}

	entries := make([]Entry, 0, len(records))
	for i, r := range records {
		if r.Question == nil {
			return nil, fmt.Errorf("%w: record %d is missing \"question\"", ErrDatasetFormat, i)
		}
		if r.Answer == nil {
			return nil, fmt.Errorf("%w: record %d is missing \"answer\"", ErrDatasetFormat, i)
		}
		entries = append(entries, Entry{Question: *r.Question, Answer: *r.Answer})
	}

	return entries, nil
}

// Documents renders every entry, preserving order and duplicates
func Documents(entries []Entry) []string {
	docs := make([]string, len(entries))
	for i, e := range entries {
		docs[i] = e.Document()
	}
	return docs
}
