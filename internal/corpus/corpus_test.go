/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package corpus

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDataset(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dataset.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeDataset(t, `[
		{"question": "Q1", "answer": "A1"},
		{"question": "How many invoices?", "answer": "SELECT count(*) FROM sales.invoices", "source": "ignored"}
	]`)

	entries, err := Load(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, Entry{Question: "Q1", Answer: "A1"}, entries[0])
	assert.Equal(t, "Question: Q1\nAnswer: A1", entries[0].Document())
	assert.Equal(t, "Question: How many invoices?\nAnswer: SELECT count(*) FROM sales.invoices", entries[1].Document())
}

func TestLoad_Empty(t *testing.T) {
	entries, err := Load(writeDataset(t, "[]"))
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestLoad_KeepsDuplicates(t *testing.T) {
	entries, err := Load(writeDataset(t, `[{"question":"Q","answer":"A"},{"question":"Q","answer":"A"}]`))
	require.NoError(t, err)
	assert.Equal(t, []string{"Question: Q\nAnswer: A", "Question: Q\nAnswer: A"}, Documents(entries))
}

func TestLoad_FormatErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not json", "question,answer\nQ1,A1"},
		{"object instead of array", `{"question":"Q1","answer":"A1"}`},
		{"empty file", ""},
		{"missing answer", `[{"question":"Q1"}]`},
		{"missing question", `[{"answer":"A1"}]`},
		{"wrong field type", `[{"question":"Q1","answer":42}]`},
		{"truncated", `[{"question":"Q1","answer":"A1"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeDataset(t, tt.content))
			assert.ErrorIs(t, err, ErrDatasetFormat)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.ErrorIs(t, err, ErrDatasetFormat)
}
