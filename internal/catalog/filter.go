package catalog

import (
	"strings"
	"unicode/utf8"
)

// MinQueryLength is the shortest trimmed query Filter will match.
const MinQueryLength = 2

// match tiers, best first
const (
	tierExact = iota
	tierPrefix
	tierContains
	tierCount
)

// Filter returns at most limit valid records whose symbol or name contains
// query, case-insensitively. Exact symbol matches come first, then symbol
// prefixes, then everything else; ties keep catalog order. Filter does not
// modify assets.
func Filter(assets []AssetRecord, query string, limit int) []AssetRecord {
	q := strings.ToLower(strings.TrimSpace(query))
	if limit <= 0 || len(assets) == 0 || utf8.RuneCountInString(q) < MinQueryLength {
		return nil
	}

	var buckets [tierCount][]AssetRecord
	for _, a := range assets {
		if !a.Valid() {
			continue
		}
		tier, ok := rank(a, q)
		if !ok {
			continue
		}
		buckets[tier] = append(buckets[tier], a)

		// Nothing can outrank a full bucket of exact matches.
		if tier == tierExact && len(buckets[tierExact]) >= limit {
			break
		}
	}

	out := make([]AssetRecord, 0, min(limit, len(assets)))
	for _, b := range buckets {
		for _, a := range b {
			if len(out) == limit {
				return out
			}
			out = append(out, a)
		}
	}
	return out
}

// rank classifies a against the lower-cased query q.
func rank(a AssetRecord, q string) (int, bool) {
	sym := strings.ToLower(strings.TrimSpace(a.Symbol))
	switch {
	case sym == q:
		return tierExact, true
	case strings.HasPrefix(sym, q):
		return tierPrefix, true
	case strings.Contains(sym, q), strings.Contains(strings.ToLower(a.Name), q):
		return tierContains, true
	}
	return 0, false
}
