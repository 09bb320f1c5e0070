package tui

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/ripple/pkg/domain"
	"github.com/aretw0/ripple/pkg/epic"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlersMarkdown(t *testing.T) {
	md := HandlersMarkdown("Handlers", []epic.Info{
		{Name: "catalog.search", Types: []string{"catalog/TEXT_SEARCH"}, Strategy: "debounced(300ms, latest-wins)", Bracket: "catalog.search", Active: true},
		{Name: "geoprocessing.intersect", Feature: "geoprocessing", Types: []string{"gis/CLICK_ON_MAP"}, Strategy: "latest-wins"},
		{Name: "broken", Strategy: "concurrent", Active: true, Halted: true},
		{Name: "busy", Strategy: "concurrent", Active: true, InFlight: 2},
	})

	assert.True(t, strings.HasPrefix(md, "# Handlers\n"))
	assert.Contains(t, md, "| catalog.search | - | `catalog/TEXT_SEARCH` | debounced(300ms, latest-wins) | catalog.search | idle |")
	assert.Contains(t, md, "| geoprocessing.intersect | geoprocessing | `gis/CLICK_ON_MAP` | latest-wins | - | inactive |")
	assert.Contains(t, md, "| broken | - | - | concurrent | - | halted |")
	assert.Contains(t, md, "busy (2)")
}

func TestHandlersMarkdown_Empty(t *testing.T) {
	assert.Contains(t, HandlersMarkdown("Handlers", nil), "No handlers registered")
}

func TestNewRenderer(t *testing.T) {
	render, err := NewRenderer("notty")
	require.NoError(t, err)

	out, err := render("# Title\n\nbody")
	require.NoError(t, err)
	assert.Contains(t, out, "Title")
	assert.Contains(t, out, "body")
}

func TestTrace_Print(t *testing.T) {
	var buf bytes.Buffer
	trace := NewTrace(&buf, termenv.WithProfile(termenv.Ascii))
	base := trace.start
	trace.now = func() time.Time { return base.Add(1500 * time.Millisecond) }

	act := domain.NewAction("catalog/TEXT_SEARCH", map[string]string{"text": "roads"})
	trace.Print(act)
	trace.Print(domain.LoadingStart("catalog.search").CausedBy("catalog.search", act))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "1.5s")
	assert.Contains(t, lines[0], `catalog/TEXT_SEARCH  {"text":"roads"}  <- external`)
	assert.Contains(t, lines[1], `ripple/LOADING  {"name":"catalog.search","status":"start"}  <- catalog.search`)
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, "{}", summarize(nil))

	long := strings.Repeat("x", 200)
	s := summarize(long)
	assert.Len(t, s, maxPayload)
	assert.True(t, strings.HasSuffix(s, "..."))
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf, "0.1.0\n")
	assert.Contains(t, buf.String(), "v0.1.0")
}
