// Package waterfall distributes exit proceeds across share classes
// according to liquidation preference, seniority and participation.
package waterfall

import (
	"math"
	"sort"
	"strings"

	"github.com/turtacn/DealScope/pkg/errors"
)

// CommonClass is the class assigned to entries that name none.
const CommonClass = "Common"

// ClassedEntry is one holder with the liquidation terms of its class.
type ClassedEntry struct {
	Holder             string  `json:"holder"`
	Class              string  `json:"class"`
	Shares             int64   `json:"shares"`
	Invested           float64 `json:"invested"`
	PreferenceMultiple float64 `json:"preference_multiple"`
	Seniority          int     `json:"seniority"`
	Participating      bool    `json:"participating"`
}

// ClassID is a stable index into the class arena.
type ClassID int

// NoClass marks the absence of a class.
const NoClass ClassID = -1

type shareClass struct {
	id            ClassID
	name          string
	multiple      float64
	seniority     int
	participating bool
	members       []int
	shares        int64
	invested      float64
}

// hasPreference reports whether the class carries a liquidation preference.
func (c *shareClass) hasPreference() bool {
	return c.multiple > 0 && c.invested > 0
}

func (c *shareClass) preferenceAmount() float64 {
	if !c.hasPreference() {
		return 0
	}
	return c.multiple * c.invested
}

// classArena groups entries by class in declaration order.
type classArena struct {
	entries     []ClassedEntry
	classes     []*shareClass
	byName      map[string]ClassID
	entryClass  []ClassID
	totalShares int64
	invested    float64
}

func className(e ClassedEntry) string {
	name := strings.TrimSpace(e.Class)
	if name == "" {
		return CommonClass
	}
	return name
}

func validEntry(i int, e ClassedEntry) error {
	switch {
	case e.Shares < 0:
		return errors.InvalidInput("shares must not be negative").WithDetailf("entry[%d] shares=%d", i, e.Shares)
	case !(e.Invested >= 0) || math.IsInf(e.Invested, 0):
		return errors.InvalidInput("invested must be >= 0").WithDetailf("entry[%d] invested=%v", i, e.Invested)
	case !(e.PreferenceMultiple >= 0) || math.IsInf(e.PreferenceMultiple, 0):
		return errors.InvalidInput("preference_multiple must be >= 0").WithDetailf("entry[%d] preference_multiple=%v", i, e.PreferenceMultiple)
	case e.Seniority < 0:
		return errors.InvalidInput("seniority must be >= 0").WithDetailf("entry[%d] seniority=%d", i, e.Seniority)
	}
	return nil
}

func newClassArena(entries []ClassedEntry) (*classArena, error) {
	if len(entries) == 0 {
		return nil, errors.InvalidInput("waterfall table is empty")
	}
	a := &classArena{
		entries:    entries,
		byName:     make(map[string]ClassID),
		entryClass: make([]ClassID, len(entries)),
	}
	for i, e := range entries {
		if err := validEntry(i, e); err != nil {
			return nil, err
		}
		name := className(e)
		id, ok := a.byName[name]
		if !ok {
			id = ClassID(len(a.classes))
			a.byName[name] = id
			a.classes = append(a.classes, &shareClass{
				id:            id,
				name:          name,
				multiple:      e.PreferenceMultiple,
				seniority:     e.Seniority,
				participating: e.Participating,
			})
		}
		c := a.classes[id]
		if c.multiple != e.PreferenceMultiple || c.seniority != e.Seniority || c.participating != e.Participating {
			return nil, errors.InvalidInput("entries of one class disagree on terms").
				WithDetailf("class=%q entry[%d]", name, i)
		}
		c.members = append(c.members, i)
		c.shares += e.Shares
		c.invested += e.Invested
		a.entryClass[i] = id
		a.totalShares += e.Shares
		a.invested += e.Invested
	}
	if a.totalShares == 0 {
		return nil, errors.DivisionByZero("waterfall table has zero shares")
	}
	return a, nil
}

// seniorityOrder returns class IDs with the highest rank first; equal ranks
// keep declaration order.
func (a *classArena) seniorityOrder() []ClassID {
	order := make([]ClassID, len(a.classes))
	for i := range a.classes {
		order[i] = ClassID(i)
	}
	sort.SliceStable(order, func(i, j int) bool {
		return a.classes[order[i]].seniority > a.classes[order[j]].seniority
	})
	return order
}
