// Package search parses the catalog tag-search query language.
//
// A query is a semicolon-separated list of segments. "key:value" segments
// filter by tag type (key upcased, value downcased), except the pseudo-type
// DESC which turns its value into case-insensitive description substring
// tokens. Segments without a colon become title substring tokens. All
// resulting filters are conjunctive.
package search

import (
	"regexp"
	"strings"

	"bookstack/internal/apperr"
	"bookstack/internal/entity"
)

// nonLetters splits token input on runs of non-letter characters.
var nonLetters = regexp.MustCompile(`[^\p{L}]+`)

// TagMatch is an exact case-insensitive (type, name) tag filter.
type TagMatch struct {
	Type entity.TagType
	Name string
}

// Filter is the parsed form of a query. Every field is conjunctive: a book
// matches iff it satisfies all title tokens, all description tokens, and
// carries all listed tags.
type Filter struct {
	TitleTokens []string
	DescTokens  []string
	Tags        []TagMatch
}

func (f *Filter) Empty() bool {
	return len(f.TitleTokens) == 0 && len(f.DescTokens) == 0 && len(f.Tags) == 0
}

// ParseQuery parses a raw query string. Unknown tag-type keys yield a
// validation error.
func ParseQuery(query string) (*Filter, error) {
	filter := &Filter{}

	for _, segment := range strings.Split(query, ";") {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}

		if key, value, ok := strings.Cut(segment, ":"); ok {
			// A segment is at most one key:value pair.
			if strings.Contains(value, ":") {
				return nil, apperr.Validation("malformed search segment %q", segment)
			}
			key = strings.ToUpper(key)
			value = strings.ToLower(value)

			if key == "DESC" {
				filter.DescTokens = append(filter.DescTokens, tokenize(value)...)
				continue
			}

			tagType := entity.TagType(key)
			if !tagType.Valid() {
				return nil, apperr.Validation("unknown tag type %q", key)
			}
			filter.Tags = append(filter.Tags, TagMatch{Type: tagType, Name: value})
			continue
		}

		filter.TitleTokens = append(filter.TitleTokens, tokenize(strings.ToLower(segment))...)
	}

	return filter, nil
}

func tokenize(value string) []string {
	var tokens []string
	for _, token := range nonLetters.Split(value, -1) {
		if token != "" {
			tokens = append(tokens, token)
		}
	}
	return tokens
}
