package catalog

import (
	"bytes"
	"encoding/json"
	"slices"
	"strings"
	"sync"
	"time"
)

// AssetID is the backend's opaque identifier. It decodes from either a JSON
// string or a JSON number.
type AssetID string

func (id *AssetID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = AssetID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = AssetID(n.String())
	return nil
}

// AssetRecord is one tradable instrument in the catalog.
type AssetRecord struct {
	ID        AssetID `json:"id"`
	Symbol    string  `json:"symbol"`     // e.g. "AAPL"; primary search key
	Name      string  `json:"name"`       // e.g. "Apple Inc."
	Exchange  string  `json:"exchange"`   // e.g. "NASDAQ"
	AssetType string  `json:"asset_type"` // e.g. "stock", "etf", "crypto"
}

// Valid reports whether the record carries both a symbol and a name.
// Records failing this are kept in the snapshot but never suggested.
func (a AssetRecord) Valid() bool {
	return strings.TrimSpace(a.Symbol) != "" && strings.TrimSpace(a.Name) != ""
}

// Snapshot is an immutable point-in-time copy of the catalog. The cache
// replaces it wholesale; nothing mutates Assets after publication.
type Snapshot struct {
	Assets    []AssetRecord
	FetchedAt time.Time

	browseOnce sync.Once
	browse     []AssetRecord
	malformed  int
}

// NewSnapshot copies assets into a new snapshot.
func NewSnapshot(assets []AssetRecord, fetchedAt time.Time) *Snapshot {
	return &Snapshot{
		Assets:    slices.Clone(assets),
		FetchedAt: fetchedAt,
	}
}

// Len returns the number of records, malformed ones included.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Assets)
}

// sorted returns valid records ordered by symbol, computed once per snapshot.
func (s *Snapshot) sorted() []AssetRecord {
	s.browseOnce.Do(func() {
		out := make([]AssetRecord, 0, len(s.Assets))
		for _, a := range s.Assets {
			if !a.Valid() {
				s.malformed++
				continue
			}
			out = append(out, a)
		}
		slices.SortStableFunc(out, func(a, b AssetRecord) int {
			return strings.Compare(strings.ToUpper(a.Symbol), strings.ToUpper(b.Symbol))
		})
		s.browse = out
	})
	return s.browse
}

// Malformed returns how many records lack a symbol or name.
func (s *Snapshot) Malformed() int {
	if s == nil {
		return 0
	}
	s.sorted()
	return s.malformed
}

// LoadingEvent is delivered to subscribers on every loading transition.
type LoadingEvent struct {
	Loading bool  // true when a fetch starts, false when it finishes
	Size    int   // snapshot size after the transition
	Err     error // set when the finished fetch failed
}

// Stats describes the cache for diagnostics.
type Stats struct {
	Size      int
	Malformed int
	Loading   bool
	FetchedAt time.Time     // zero when no snapshot
	Age       time.Duration // zero when no snapshot
	Stale     bool          // no snapshot, or older than the TTL
}
