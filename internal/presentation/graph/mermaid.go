package graph

import (
	"fmt"
	"slices"
	"strings"

	"github.com/aretw0/ripple/pkg/epic"
)

// GraphOverlay contains runtime data to visualize on the graph.
type GraphOverlay struct {
	// Ran lists handlers that started at least one run.
	Ran []string
	// Busy lists handlers with runs in flight.
	Busy []string
}

// GenerateMermaid produces a Mermaid flowchart from handler descriptions.
// Action types are drawn as parallelograms feeding the handlers that react to them.
// Handler shapes follow their strategy:
// - latest-wins: [Rectangle]
// - serialized: [[Subroutine]]
// - debounced: ([Stadium])
// - race: {{Hexagon}}
// - default: (Rounded)
// Handlers of one feature are grouped in a subgraph. Halted handlers are styled red.
func GenerateMermaid(handlers []epic.Info, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph LR\n")

	var types []string
	seen := make(map[string]bool)
	for _, h := range handlers {
		for _, t := range h.Types {
			if !seen[t] {
				seen[t] = true
				types = append(types, t)
			}
		}
	}
	slices.Sort(types)
	for _, t := range types {
		fmt.Fprintf(&sb, "    %s[/\"%s\"/]\n", actionID(t), t)
	}

	var features []string
	grouped := make(map[string][]epic.Info)
	for _, h := range handlers {
		if _, ok := grouped[h.Feature]; !ok {
			features = append(features, h.Feature)
		}
		grouped[h.Feature] = append(grouped[h.Feature], h)
	}

	for _, feature := range features {
		indent := "    "
		if feature != "" {
			fmt.Fprintf(&sb, "    subgraph %s[\"%s\"]\n", "feature_"+sanitizeMermaidID(feature), feature)
			indent = "        "
		}
		for _, h := range grouped[feature] {
			sb.WriteString(indent + handlerNode(h) + "\n")
		}
		if feature != "" {
			sb.WriteString("    end\n")
		}
	}

	for _, h := range handlers {
		for _, t := range h.Types {
			arrow := "-->"
			if h.Bracket != "" {
				arrow = fmt.Sprintf("-- \"%s\" -->", strings.ReplaceAll(h.Bracket, "\"", "'"))
			}
			fmt.Fprintf(&sb, "    %s %s %s\n", actionID(t), arrow, handlerID(h.Name))
		}
	}

	var halted []string
	for _, h := range handlers {
		if h.Halted {
			halted = append(halted, handlerID(h.Name))
		}
	}
	if len(halted) > 0 {
		sb.WriteString("\n    classDef halted fill:#fee2e2,stroke:#b91c1c,stroke-width:2px,color:#000;\n")
		fmt.Fprintf(&sb, "    class %s halted;\n", strings.Join(halted, ","))
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef ran fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef busy fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		styled := make(map[string]bool)
		for _, name := range overlay.Ran {
			id := handlerID(name)
			if !styled[id] && name != "" {
				styled[id] = true
				fmt.Fprintf(&sb, "    class %s ran;\n", id)
			}
		}
		for _, name := range overlay.Busy {
			if name != "" {
				fmt.Fprintf(&sb, "    class %s busy;\n", handlerID(name))
			}
		}
	}

	return sb.String()
}

func handlerNode(h epic.Info) string {
	opener, closer := "(", ")"
	switch {
	case strings.HasPrefix(h.Strategy, "race"):
		opener, closer = "{{", "}}"
	case strings.HasPrefix(h.Strategy, "debounced"):
		opener, closer = "([", "])"
	case strings.HasPrefix(h.Strategy, "serialized"):
		opener, closer = "[[", "]]"
	case strings.HasPrefix(h.Strategy, "latest-wins"):
		opener, closer = "[", "]"
	}
	return fmt.Sprintf("%s%s\"%s <br/> %s\"%s", handlerID(h.Name), opener, h.Name, h.Strategy, closer)
}

func handlerID(name string) string {
	return "h_" + sanitizeMermaidID(name)
}

func actionID(actionType string) string {
	return "a_" + sanitizeMermaidID(actionType)
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
