// Package comps is the comparables library: samples of valuation multiples
// keyed by sector, stage, geography and metric.
package comps

import (
	"fmt"
	"strings"
	"time"

	"github.com/turtacn/DealScope/pkg/errors"
)

// Key identifies one library sample.  Lookups are case-insensitive.
type Key struct {
	Sector string `json:"sector"`
	Stage  string `json:"stage"`
	Geo    string `json:"geo"`
	Metric string `json:"metric"`
}

// Normalize lower-cases every component and fills Geo and Metric from the
// given defaults when they are empty.
func (k Key) Normalize(defGeo, defMetric string) Key {
	if k.Geo == "" {
		k.Geo = defGeo
	}
	if k.Metric == "" {
		k.Metric = defMetric
	}
	return Key{
		Sector: strings.ToLower(strings.TrimSpace(k.Sector)),
		Stage:  strings.ToLower(strings.TrimSpace(k.Stage)),
		Geo:    strings.ToLower(strings.TrimSpace(k.Geo)),
		Metric: strings.ToLower(strings.TrimSpace(k.Metric)),
	}
}

// Validate requires sector and stage.
func (k Key) Validate() error {
	if k.Sector == "" {
		return errors.InvalidParam("comps sector is required")
	}
	if k.Stage == "" {
		return errors.InvalidParam("comps stage is required").WithDetailf("sector=%q", k.Sector)
	}
	return nil
}

// String renders sector/stage/geo/metric; used as a cache key suffix.
func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s/%s", k.Sector, k.Stage, k.Geo, k.Metric)
}

// Sample is a set of observed multiples for one Key.
type Sample struct {
	Key
	Multiples      []float64 `json:"multiples"`
	ReportedSample int       `json:"reported_sample,omitempty"`
	Notes          string    `json:"notes,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NotFound is the error for a key with no library sample.
func NotFound(k Key) error {
	return errors.New(errors.ErrCodeCompsNotFound, "no comparables for key").WithDetail(k.String())
}
