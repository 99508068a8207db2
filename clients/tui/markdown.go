package tui

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/ansi"
)

// markdownStyle is a compact glamour style matching the TUI palette.
func markdownStyle() ansi.StyleConfig {
	text := stringPtr("#E5E7EB")
	accent := stringPtr("#D8A6FF")
	return ansi.StyleConfig{
		Document: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{Color: text},
			Margin:         uintPtr(0),
		},
		BlockQuote: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{Color: stringPtr("#9CA3AF"), Italic: boolPtr(true)},
			Indent:         uintPtr(2),
			IndentToken:    stringPtr("│ "),
		},
		List: ansi.StyleList{
			LevelIndent: 2,
			StyleBlock:  ansi.StyleBlock{StylePrimitive: ansi.StylePrimitive{Color: text}},
		},
		Heading: ansi.StyleBlock{StylePrimitive: ansi.StylePrimitive{Color: accent, Bold: boolPtr(true)}},
		H1:      ansi.StyleBlock{StylePrimitive: ansi.StylePrimitive{Color: accent, Bold: boolPtr(true), Prefix: "# "}},
		H2:      ansi.StyleBlock{StylePrimitive: ansi.StylePrimitive{Color: accent, Bold: boolPtr(true), Prefix: "## "}},
		H3:      ansi.StyleBlock{StylePrimitive: ansi.StylePrimitive{Color: stringPtr("#7EE2B8"), Bold: boolPtr(true), Prefix: "### "}},
		Emph:    ansi.StylePrimitive{Italic: boolPtr(true)},
		Strong:  ansi.StylePrimitive{Bold: boolPtr(true), Color: stringPtr("#FFFFFF")},
		Item:    ansi.StylePrimitive{BlockPrefix: "• "},
		Enumeration: ansi.StylePrimitive{
			BlockPrefix: ". ",
		},
		Link: ansi.StylePrimitive{Color: stringPtr("#79C0FF"), Underline: boolPtr(true)},
		Code: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{
				Color:           stringPtr("#F59E0B"),
				BackgroundColor: stringPtr("#1F2937"),
				Prefix:          " ",
				Suffix:          " ",
			},
		},
		CodeBlock: ansi.StyleCodeBlock{
			StyleBlock: ansi.StyleBlock{
				StylePrimitive: ansi.StylePrimitive{Color: text},
				Margin:         uintPtr(0),
			},
		},
		Table: ansi.StyleTable{
			CenterSeparator: stringPtr("┼"),
			ColumnSeparator: stringPtr("│"),
			RowSeparator:    stringPtr("─"),
		},
	}
}

func stringPtr(s string) *string { return &s }
func boolPtr(b bool) *bool       { return &b }
func uintPtr(u uint) *uint       { return &u }

// markdown caches one renderer per wrap width.
type markdown struct {
	mu       sync.Mutex
	width    int
	renderer *glamour.TermRenderer
}

// Render renders content wrapped to width. Falls back to the raw text when
// glamour fails.
func (m *markdown) Render(content string, width int) string {
	if strings.TrimSpace(content) == "" {
		return content
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.renderer == nil || m.width != width {
		r, err := glamour.NewTermRenderer(
			glamour.WithStyles(markdownStyle()),
			glamour.WithWordWrap(width),
			glamour.WithEmoji(),
		)
		if err != nil {
			return content
		}
		m.renderer, m.width = r, width
	}

	out, err := m.renderer.Render(content)
	if err != nil {
		return content
	}
	return strings.Trim(out, "\n")
}
