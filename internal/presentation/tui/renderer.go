package tui

import (
	"fmt"
	"strings"

	"github.com/aretw0/ripple/pkg/epic"
	"github.com/charmbracelet/glamour"
)

// NewRenderer returns a function that renders markdown using glamour.
// Style "auto" (or empty) detects light/dark backgrounds; any other value is a glamour standard style.
func NewRenderer(style string) (func(string) (string, error), error) {
	opt := glamour.WithAutoStyle()
	if style != "" && style != "auto" {
		opt = glamour.WithStandardStyle(style)
	}
	r, err := glamour.NewTermRenderer(opt, glamour.WithWordWrap(120))
	if err != nil {
		return nil, fmt.Errorf("markdown renderer: %w", err)
	}
	return func(markdown string) (string, error) {
		return r.Render(markdown)
	}, nil
}

// HandlersMarkdown describes handlers as a markdown table.
func HandlersMarkdown(title string, handlers []epic.Info) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", title)
	if len(handlers) == 0 {
		sb.WriteString("_No handlers registered._\n")
		return sb.String()
	}
	sb.WriteString("| Handler | Feature | Reacts to | Strategy | Bracket | State |\n")
	sb.WriteString("|---|---|---|---|---|---|\n")
	for _, h := range handlers {
		types := make([]string, len(h.Types))
		for i, t := range h.Types {
			types[i] = "`" + t + "`"
		}
		fmt.Fprintf(&sb, "| %s | %s | %s | %s | %s | %s |\n",
			h.Name,
			dash(h.Feature),
			dash(strings.Join(types, ", ")),
			h.Strategy,
			dash(h.Bracket),
			handlerState(h),
		)
	}
	return sb.String()
}

func handlerState(h epic.Info) string {
	switch {
	case h.Halted:
		return "halted"
	case !h.Active:
		return "inactive"
	case h.InFlight > 0:
		return fmt.Sprintf("busy (%d)", h.InFlight)
	}
	return "idle"
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return strings.ReplaceAll(s, "|", "\\|")
}
