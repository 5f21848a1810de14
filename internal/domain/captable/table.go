// Package captable simulates a priced financing round against a
// capitalization table and derives the ownership metrics shown to users.
//
// Tables are arenas: every holder is addressed by a stable HolderID (its
// position in the arena).  A holder present before the round keeps its ID in
// the post-investment table; holders created by the round are appended.
package captable

import (
	"encoding/json"
	"strings"

	"github.com/turtacn/DealScope/pkg/errors"
)

// HolderType classifies a cap-table holder.
type HolderType string

const (
	HolderFounder    HolderType = "founder"
	HolderInvestor   HolderType = "investor"
	HolderOptionPool HolderType = "option_pool"
	HolderOther      HolderType = "other"
)

// HolderTypes lists every holder type in display order.
func HolderTypes() []HolderType {
	return []HolderType{HolderFounder, HolderInvestor, HolderOptionPool, HolderOther}
}

// ParseHolderType normalises s; an empty string maps to HolderOther.
func ParseHolderType(s string) (HolderType, error) {
	ht := HolderType(strings.ToLower(strings.TrimSpace(s)))
	switch ht {
	case "":
		return HolderOther, nil
	case HolderFounder, HolderInvestor, HolderOptionPool, HolderOther:
		return ht, nil
	}
	return "", errors.InvalidInput("unknown holder_type").WithDetailf("holder_type=%q", s)
}

// HolderID is a stable index into a Table.
type HolderID int

// NoHolder marks an absent holder reference.
const NoHolder HolderID = -1

// Entry is one row of a cap table.
type Entry struct {
	ID                HolderID   `json:"index"`
	Holder            string     `json:"holder"`
	HolderType        HolderType `json:"holder_type"`
	Shares            int64      `json:"shares"`
	OwnershipFraction float64    `json:"ownership_fraction"`
	PricePerShare     float64    `json:"price_per_share"`
	Class             string     `json:"class,omitempty"`
	Dilution          float64    `json:"dilution"`
	DilutionFlagged   bool       `json:"dilution_flagged,omitempty"`
}

// Table is an arena of entries indexed by HolderID.
type Table struct {
	entries []Entry
}

// NewTable builds a table from rows, assigning IDs by position.
func NewTable(rows ...Entry) *Table {
	t := &Table{entries: make([]Entry, 0, len(rows))}
	for _, r := range rows {
		t.Add(r)
	}
	return t
}

// Add appends e and returns its ID.
func (t *Table) Add(e Entry) HolderID {
	id := HolderID(len(t.entries))
	e.ID = id
	t.entries = append(t.entries, e)
	return id
}

// Get returns a copy of the entry with the given ID.
func (t *Table) Get(id HolderID) (Entry, bool) {
	if t == nil || id < 0 || int(id) >= len(t.entries) {
		return Entry{}, false
	}
	return t.entries[id], true
}

// Len returns the number of entries.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// Entries returns a copy of all rows in ID order.
func (t *Table) Entries() []Entry {
	if t == nil {
		return []Entry{}
	}
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// TotalShares sums shares across the table.
func (t *Table) TotalShares() int64 {
	var total int64
	if t == nil {
		return 0
	}
	for _, e := range t.entries {
		total += e.Shares
	}
	return total
}

// OwnershipSum sums ownership_fraction across the table.
func (t *Table) OwnershipSum() float64 {
	sum := 0.0
	if t == nil {
		return 0
	}
	for _, e := range t.entries {
		sum += e.OwnershipFraction
	}
	return sum
}

// FirstOfType returns the first holder of type ht, or NoHolder.
func (t *Table) FirstOfType(ht HolderType) HolderID {
	if t == nil {
		return NoHolder
	}
	for _, e := range t.entries {
		if e.HolderType == ht {
			return e.ID
		}
	}
	return NoHolder
}

// Clone returns an independent copy of t.
func (t *Table) Clone() *Table {
	return &Table{entries: t.Entries()}
}

// MarshalJSON renders the table as an array of entries.
func (t *Table) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Entries())
}

// UnmarshalJSON reads an array of entries, reassigning IDs by position.
func (t *Table) UnmarshalJSON(data []byte) error {
	var rows []Entry
	if err := json.Unmarshal(data, &rows); err != nil {
		return err
	}
	*t = *NewTable(rows...)
	return nil
}

// DefaultPreTable is the starting table used when a caller has none:
// founders holding 8M common shares and a 2M share option pool.
func DefaultPreTable() *Table {
	return NewTable(
		Entry{Holder: "Founders", HolderType: HolderFounder, Shares: 8_000_000, PricePerShare: 0.001, Class: "Common"},
		Entry{Holder: "Option Pool", HolderType: HolderOptionPool, Shares: 2_000_000, PricePerShare: 0.001, Class: "Options"},
	)
}
