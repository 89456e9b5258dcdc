package tui

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/charmbracelet/lipgloss"
)

// highlighter colours JSON documents for the detail pane.
type highlighter struct {
	lexer chroma.Lexer
}

func newHighlighter() *highlighter {
	l := lexers.Get("json")
	if l == nil {
		l = lexers.Fallback
	}
	return &highlighter{lexer: chroma.Coalesce(l)}
}

// Highlight returns src with each token rendered in its style. Newlines are
// emitted unstyled so the pane keeps its line layout.
func (h *highlighter) Highlight(src string, st styles) string {
	it, err := h.lexer.Tokenise(nil, src)
	if err != nil {
		return src
	}
	var b strings.Builder
	b.Grow(len(src) * 2)
	for _, tok := range it.Tokens() {
		if tok.Value == "" {
			continue
		}
		style, ok := tokenStyle(tok.Type, st)
		if !ok {
			b.WriteString(tok.Value)
			continue
		}
		for i, line := range strings.Split(tok.Value, "\n") {
			if i > 0 {
				b.WriteByte('\n')
			}
			if line != "" {
				b.WriteString(style.Render(line))
			}
		}
	}
	return b.String()
}

func tokenStyle(tt chroma.TokenType, st styles) (lipgloss.Style, bool) {
	switch {
	case tt == chroma.NameTag:
		return st.Key, true
	case tt.InSubCategory(chroma.LiteralString):
		return st.String, true
	case tt.InSubCategory(chroma.LiteralNumber):
		return st.Number, true
	case tt.InCategory(chroma.Keyword):
		return st.Keyword, true
	}
	return lipgloss.Style{}, false
}
