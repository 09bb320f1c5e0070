package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/muesli/termenv"
)

// PrintBanner outputs the Ripple ASCII art banner followed by the version.
func PrintBanner(w io.Writer, version string) {
	p := termenv.EnvColorProfile()
	// Cyan to indigo, like a wave
	lines := []struct {
		text  string
		color string
	}{
		{"        _             _      ", "#22d3ee"},
		{"  _ __ (_)_ __  _ __ | | ___ ", "#38bdf8"},
		{" | '__|| | '_ \\| '_ \\| |/ _ \\", "#60a5fa"},
		{" | |   | | |_) | |_) | |  __/", "#818cf8"},
		{" |_|   |_| .__/| .__/|_|\\___|", "#a78bfa"},
		{"         |_|   |_|           ", "#c084fc"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	if v := strings.TrimSpace(version); v != "" {
		fmt.Fprintln(w, termenv.String("  v"+v).Faint())
	}
	fmt.Fprintln(w)
}
