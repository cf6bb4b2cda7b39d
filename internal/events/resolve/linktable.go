// Package resolve links news entities to company identifiers (CUSIP, GVKEY,
// ticker) and enriches event batches with them.
package resolve

import (
	"sort"

	"github.com/sells-group/eventsync/internal/model"
)

// LinkTable maps an entity id to its distinct links. It is read-only after
// construction and safe to share across goroutines and years.
type LinkTable struct {
	byEntity map[string][]model.Link
	size     int
}

type linkKey struct {
	entityID, cusip, gvkey, ticker string
	hasTicker                      bool
}

// NewLinkTable builds a LinkTable from links, dropping exact duplicates.
// Links of one entity are ordered by CUSIP, GVKEY, then ticker.
func NewLinkTable(links []model.Link) *LinkTable {
	t := &LinkTable{byEntity: make(map[string][]model.Link)}
	seen := make(map[linkKey]struct{}, len(links))
	for _, l := range links {
		k := linkKey{entityID: l.EntityID, cusip: l.CUSIP, gvkey: l.GVKEY}
		if l.Ticker != nil {
			k.ticker, k.hasTicker = *l.Ticker, true
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		t.byEntity[l.EntityID] = append(t.byEntity[l.EntityID], l)
		t.size++
	}

	for _, ls := range t.byEntity {
		sort.SliceStable(ls, func(i, j int) bool {
			a, b := ls[i], ls[j]
			if a.CUSIP != b.CUSIP {
				return a.CUSIP < b.CUSIP
			}
			if a.GVKEY != b.GVKEY {
				return a.GVKEY < b.GVKEY
			}
			return deref(a.Ticker) < deref(b.Ticker)
		})
	}
	return t
}

// JoinLinks inner-joins entity/CUSIP pairs to company rows on CUSIP and
// returns the distinct (entity, CUSIP, GVKEY, ticker) links.
func JoinLinks(entities []model.EntityCUSIP, companies []model.CompanyName) *LinkTable {
	byCUSIP := make(map[string][]model.CompanyName, len(companies))
	for _, c := range companies {
		byCUSIP[c.CUSIP] = append(byCUSIP[c.CUSIP], c)
	}

	var links []model.Link
	for _, e := range entities {
		for _, c := range byCUSIP[e.CUSIP] {
			links = append(links, model.Link{
				EntityID: e.EntityID,
				CUSIP:    c.CUSIP,
				GVKEY:    c.GVKEY,
				Ticker:   c.Ticker,
			})
		}
	}
	return NewLinkTable(links)
}

// Lookup returns the links for entityID, or nil when there are none.
func (t *LinkTable) Lookup(entityID string) []model.Link {
	if t == nil {
		return nil
	}
	return t.byEntity[entityID]
}

// Len returns the number of distinct links.
func (t *LinkTable) Len() int {
	if t == nil {
		return 0
	}
	return t.size
}

// Entities returns the number of entities with at least one link.
func (t *LinkTable) Entities() int {
	if t == nil {
		return 0
	}
	return len(t.byEntity)
}

// IsEmpty reports whether the table holds no links. A nil table is empty.
func (t *LinkTable) IsEmpty() bool {
	return t.Len() == 0
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
