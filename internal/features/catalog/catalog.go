// Package catalog refreshes layer metadata from remote capabilities documents and
// searches remote catalogs as the user types.
package catalog

import (
	"context"
	"time"

	"github.com/aretw0/ripple/pkg/domain"
)

// StateKey is where State lives.
const StateKey = "catalog"

// Action types.
const (
	// ActionRefreshLayers re-reads the capabilities of layers. Payload: Refresh
	ActionRefreshLayers = "catalog/REFRESH_LAYERS"

	// ActionLayersRefreshed carries the updated layers. Payload: Refreshed
	ActionLayersRefreshed = "catalog/LAYERS_REFRESHED"

	// ActionRefreshError lists the layers that could not be refreshed. Payload: RefreshFailed
	ActionRefreshError = "catalog/LAYERS_REFRESH_ERROR"

	// ActionTextSearch searches a catalog. Payload: Search
	ActionTextSearch = "catalog/TEXT_SEARCH"

	// ActionSearchResults carries the records found. Payload: Results
	ActionSearchResults = "catalog/SEARCH_RESULTS"
)

// LayerRef points at a layer served by a remote service.
type LayerRef struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

// RefreshOptions selects what a refresh updates.
type RefreshOptions struct {
	Title   bool `json:"title"`
	BBox    bool `json:"bbox"`
	Formats bool `json:"formats"`
}

// Refresh is the payload of ActionRefreshLayers.
type Refresh struct {
	Layers  []LayerRef     `json:"layers"`
	Options RefreshOptions `json:"options"`
}

// Capabilities is the part of a capabilities document a layer cares about.
type Capabilities struct {
	Title   string     `json:"title,omitempty"`
	BBox    [4]float64 `json:"bbox"`
	Formats []string   `json:"formats,omitempty"`
}

// LayerUpdate is the refreshed metadata of one layer, limited to the requested options.
type LayerUpdate struct {
	Layer   LayerRef    `json:"layer"`
	Title   string      `json:"title,omitempty"`
	BBox    *[4]float64 `json:"bbox,omitempty"`
	Formats []string    `json:"formats,omitempty"`
}

// Refreshed is the payload of ActionLayersRefreshed.
type Refreshed struct {
	Layers  []LayerUpdate  `json:"layers"`
	Options RefreshOptions `json:"options"`
}

// Failure tells why a layer could not be refreshed.
type Failure struct {
	Layer   LayerRef `json:"layer"`
	Message string   `json:"message"`
}

// RefreshFailed is the payload of ActionRefreshError.
type RefreshFailed struct {
	Failures []Failure `json:"failures"`
}

// Search is the payload of ActionTextSearch.
type Search struct {
	URL  string `json:"url"`
	Text string `json:"text"`
}

// Record is one catalog entry.
type Record struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url,omitempty"`
	Type  string `json:"type,omitempty"`
}

// Results is the payload of ActionSearchResults.
type Results struct {
	Text    string   `json:"text"`
	Records []Record `json:"records"`
}

// State is the slice stored under StateKey.
type State struct {
	Text     string    `json:"text" mapstructure:"text"`
	Records  []Record  `json:"records" mapstructure:"records"`
	Failures []Failure `json:"failures,omitempty" mapstructure:"failures"`
}

// Provider reads remote catalogs.
type Provider interface {
	Capabilities(ctx context.Context, layer LayerRef) (Capabilities, error)
	Search(ctx context.Context, url, text string) ([]Record, error)
}

// Config tunes the handlers.
type Config struct {
	RefreshAttempts int           `mapstructure:"refresh_attempts"`
	RefreshDelay    time.Duration `mapstructure:"refresh_delay"`

	// RefreshParallelism bounds the capabilities requests of one refresh in flight at once.
	RefreshParallelism int `mapstructure:"refresh_parallelism"`

	SearchDebounce time.Duration `mapstructure:"search_debounce"`
}

// DefaultConfig returns the settings used when none are given.
func DefaultConfig() Config {
	return Config{
		RefreshAttempts:    3,
		RefreshDelay:       time.Second,
		RefreshParallelism: 4,
		SearchDebounce:     300 * time.Millisecond,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.RefreshAttempts <= 0 {
		c.RefreshAttempts = d.RefreshAttempts
	}
	if c.RefreshDelay <= 0 {
		c.RefreshDelay = d.RefreshDelay
	}
	if c.RefreshParallelism <= 0 {
		c.RefreshParallelism = d.RefreshParallelism
	}
	if c.SearchDebounce <= 0 {
		c.SearchDebounce = d.SearchDebounce
	}
	return c
}

// RefreshLayers builds ActionRefreshLayers.
func RefreshLayers(layers []LayerRef, opts RefreshOptions) domain.Action {
	return domain.NewAction(ActionRefreshLayers, Refresh{Layers: layers, Options: opts})
}

// LayersRefreshed builds ActionLayersRefreshed.
func LayersRefreshed(layers []LayerUpdate, opts RefreshOptions) domain.Action {
	return domain.NewAction(ActionLayersRefreshed, Refreshed{Layers: layers, Options: opts})
}

// RefreshError builds ActionRefreshError.
func RefreshError(failures []Failure) domain.Action {
	return domain.NewAction(ActionRefreshError, RefreshFailed{Failures: failures})
}

// TextSearch builds ActionTextSearch.
func TextSearch(url, text string) domain.Action {
	return domain.NewAction(ActionTextSearch, Search{URL: url, Text: text})
}

// SearchResults builds ActionSearchResults.
func SearchResults(text string, records []Record) domain.Action {
	return domain.NewAction(ActionSearchResults, Results{Text: text, Records: records})
}
