// Package mdtext flattens markdown into text worth speaking aloud:
// formatting is dropped, code blocks are skipped, and structure becomes
// sentence punctuation so the synthesis voice pauses where a reader
// would.
package mdtext

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Extract returns the speakable text of a markdown document.
func Extract(markdown string) string {
	md := goldmark.New()
	reader := text.NewReader([]byte(markdown))
	doc := md.Parser().Parse(reader)

	var buf strings.Builder
	walk(doc, reader.Source(), &buf)

	return collapse(buf.String())
}

func walk(node ast.Node, source []byte, buf *strings.Builder) {
	switch n := node.(type) {
	case *ast.CodeBlock, *ast.FencedCodeBlock, *ast.HTMLBlock:
		return

	case *ast.Text:
		buf.Write(n.Segment.Value(source))
		if n.SoftLineBreak() || n.HardLineBreak() {
			buf.WriteString(" ")
		}
		return

	case *ast.CodeSpan:
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			if t, ok := c.(*ast.Text); ok {
				buf.Write(t.Segment.Value(source))
			}
		}
		return

	case *ast.Heading:
		walkChildren(n, source, buf)
		buf.WriteString(". ")
		return

	case *ast.Paragraph:
		walkChildren(n, source, buf)
		endSentence(buf)
		return

	case *ast.ListItem:
		walkChildren(n, source, buf)
		endSentence(buf)
		return

	case *ast.Link, *ast.Emphasis:
		// keep the text, drop the decoration
		walkChildren(node, source, buf)
		return

	case *ast.Image:
		// the alt text is the only part worth hearing
		walkChildren(node, source, buf)
		buf.WriteString(" ")
		return

	case *ast.ThematicBreak:
		buf.WriteString(". ")
		return
	}

	walkChildren(node, source, buf)
}

func walkChildren(node ast.Node, source []byte, buf *strings.Builder) {
	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		walk(c, source, buf)
	}
}

// endSentence closes the current run with a period unless it already
// ends in sentence punctuation.
func endSentence(buf *strings.Builder) {
	s := strings.TrimRight(buf.String(), " \t")
	if s == "" {
		return
	}
	switch s[len(s)-1] {
	case '.', '!', '?', ':', ';':
		buf.WriteString(" ")
	default:
		buf.WriteString(". ")
	}
}

// collapse squeezes runs of whitespace into single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// abbreviations whose trailing period does not end a sentence.
var abbreviations = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "dr": true, "prof": true,
	"sr": true, "jr": true, "st": true,
	"etc": true, "vs": true, "e.g": true, "i.e": true,
	"inc": true, "ltd": true, "co": true,
}

// Split breaks text into chunks of at most max bytes, cutting at
// sentence boundaries where possible and at word boundaries otherwise.
// Remote synthesis caps request length, so long documents are spoken a
// chunk at a time.
func Split(s string, max int) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if max <= 0 || len(s) <= max {
		return []string{s}
	}

	var chunks []string
	var current strings.Builder

	for _, sentence := range sentences(s) {
		if current.Len() > 0 && current.Len()+1+len(sentence) > max {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
		}
		if len(sentence) > max {
			// a single oversized sentence falls back to word cuts
			for _, part := range splitWords(sentence, max) {
				chunks = append(chunks, part)
			}
			continue
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(sentence)
	}
	if current.Len() > 0 {
		chunks = append(chunks, strings.TrimSpace(current.String()))
	}
	return chunks
}

// sentences splits on terminal punctuation followed by an uppercase
// start, skipping decimals, ellipses, and common abbreviations.
func sentences(s string) []string {
	var out []string
	runes := []rune(s)
	start := 0

	for i := 0; i < len(runes); i++ {
		if !boundary(runes, i) {
			continue
		}
		sentence := strings.TrimSpace(string(runes[start : i+1]))
		if sentence != "" {
			out = append(out, sentence)
		}
		start = i + 1
	}
	if rest := strings.TrimSpace(string(runes[start:])); rest != "" {
		out = append(out, rest)
	}
	return out
}

func boundary(runes []rune, pos int) bool {
	switch runes[pos] {
	case '.', '!', '?':
	default:
		return false
	}
	if pos == len(runes)-1 {
		return true
	}

	if runes[pos] == '.' {
		// decimal number
		if pos > 0 && unicode.IsDigit(runes[pos-1]) &&
			pos+1 < len(runes) && unicode.IsDigit(runes[pos+1]) {
			return false
		}
		// ellipsis
		if runes[pos+1] == '.' || (pos > 0 && runes[pos-1] == '.') {
			return false
		}
		if abbreviations[wordBefore(runes, pos)] {
			return false
		}
	}

	// require whitespace then an uppercase start
	next := pos + 1
	for next < len(runes) && unicode.IsSpace(runes[next]) {
		next++
	}
	if next == pos+1 {
		return false
	}
	return next >= len(runes) || unicode.IsUpper(runes[next])
}

func wordBefore(runes []rune, pos int) string {
	start := pos - 1
	for start >= 0 && !unicode.IsSpace(runes[start]) {
		start--
	}
	return strings.ToLower(string(runes[start+1 : pos]))
}

func splitWords(s string, max int) []string {
	var out []string
	words := strings.Fields(s)
	var current strings.Builder

	for _, w := range words {
		if current.Len() > 0 && current.Len()+1+len(w) > max {
			out = append(out, current.String())
			current.Reset()
		}
		// A lone word longer than max gets hard-cut at rune boundaries;
		// an over-budget chunk would be rejected downstream.
		for len(w) > max {
			if current.Len() > 0 {
				out = append(out, current.String())
				current.Reset()
			}
			cut := max
			for cut > 0 && !utf8.RuneStart(w[cut]) {
				cut--
			}
			if cut == 0 {
				cut = max
			}
			out = append(out, w[:cut])
			w = w[cut:]
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(w)
	}
	if current.Len() > 0 {
		out = append(out, current.String())
	}
	return out
}
