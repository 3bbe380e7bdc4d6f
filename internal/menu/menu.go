package menu

import (
	"time"

	"github.com/shopspring/decimal"
)

// Item is a single entry of the externally supplied menu catalog.
type Item struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	Category          string          `json:"category"`
	Price             decimal.Decimal `json:"price"`
	AvailableServings int             `json:"availableServings"`
}

// Snapshot is an immutable view of the catalog at one point in time. The POS
// session swaps the whole snapshot on refresh instead of mutating items in
// place, so pricing evaluations never observe a torn catalog.
type Snapshot struct {
	items     []Item
	byID      map[string]Item
	fetchedAt time.Time
}

// NewSnapshot builds a snapshot from the provided items.
func NewSnapshot(items []Item, fetchedAt time.Time) *Snapshot {
	copied := make([]Item, len(items))
	copy(copied, items)
	index := make(map[string]Item, len(copied))
	for _, item := range copied {
		index[item.ID] = item
	}
	return &Snapshot{items: copied, byID: index, fetchedAt: fetchedAt}
}

// Items returns the catalog entries in the order the backend listed them.
func (s *Snapshot) Items() []Item {
	if s == nil {
		return nil
	}
	out := make([]Item, len(s.items))
	copy(out, s.items)
	return out
}

// Item looks up a catalog entry by identifier.
func (s *Snapshot) Item(id string) (Item, bool) {
	if s == nil {
		return Item{}, false
	}
	item, ok := s.byID[id]
	return item, ok
}

// FetchedAt reports when the snapshot was taken.
func (s *Snapshot) FetchedAt() time.Time {
	if s == nil {
		return time.Time{}
	}
	return s.fetchedAt
}

// Len reports the number of catalog entries.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.items)
}
