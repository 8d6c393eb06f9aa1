/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package vectorindex

import "strings"

// Match is one retrieved document with its similarity score
type Match struct {
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// Result is the ordered outcome of a search. The zero value means nothing
// relevant was found.
type Result struct {
	Matches []Match `json:"matches"`
}

// Found reports whether the search returned any documents
func (r Result) Found() bool {
	return len(r.Matches) > 0
}

// Documents returns the matched texts in rank order
func (r Result) Documents() []string {
	docs := make([]string, len(r.Matches))
	for i, m := range r.Matches {
		docs[i] = m.Content
	}
	return docs
}

// Context renders the matches as prompt context, one block per line, or
// NoResults when nothing was found
func (r Result) Context() string {
	if !r.Found() {
		return NoResults
	}
	return strings.Join(r.Documents(), "\n")
}
