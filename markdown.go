package main

import (
	"regexp"
	"strings"
)

// The analysis reports are untrusted LLM prose. They are parsed into
// structured nodes here and only ever emitted as literal text content, never
// as markup. The dialect is deliberately small: headings #..####, flat lists,
// dividers, pipe tables, and bold/italic/code spans.

// Block kinds.
const (
	BlockHeading   = "heading"
	BlockDivider   = "divider"
	BlockListItem  = "list-item"
	BlockBreak     = "break"
	BlockTable     = "table"
	BlockParagraph = "paragraph"
)

// Span styles.
const (
	StylePlain  = "plain"
	StyleBold   = "bold"
	StyleItalic = "italic"
	StyleCode   = "code"
)

// Span is one styled run of text inside a block.
type Span struct {
	Style string `json:"style"`
	Text  string `json:"text"`
}

// Inline is the result of the inline pass: either a single unstyled run
// (Plain set, Spans nil) or a sequence of styled spans. Callers must handle
// both shapes.
type Inline struct {
	Plain string `json:"plain,omitempty"`
	Spans []Span `json:"spans,omitempty"`
}

// Block is one output node of the renderer.
type Block struct {
	Kind    string     `json:"kind"`
	Level   int        `json:"level,omitempty"` // heading only
	Content *Inline    `json:"content,omitempty"`
	Headers []Inline   `json:"headers,omitempty"` // table only
	Rows    [][]Inline `json:"rows,omitempty"`    // table only
}

var numberedItemRe = regexp.MustCompile(`^\d+\. `)

// RenderMarkdown converts a report blob into an ordered block sequence.
// A single forward scan over lines; no backtracking across blocks.
func RenderMarkdown(text string) []Block {
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	var blocks []Block

	i := 0
	for i < len(lines) {
		trimmed := strings.TrimSpace(lines[i])

		if strings.HasPrefix(trimmed, "|") {
			if tbl, next, ok := parseTable(lines, i); ok {
				blocks = append(blocks, tbl)
				i = next
				continue
			}
			// Not a valid table; the line falls through to the cases below.
		}

		switch {
		case strings.HasPrefix(trimmed, "# "):
			blocks = append(blocks, headingBlock(1, trimmed[2:]))
		case strings.HasPrefix(trimmed, "## "):
			blocks = append(blocks, headingBlock(2, trimmed[3:]))
		case strings.HasPrefix(trimmed, "### "):
			blocks = append(blocks, headingBlock(3, trimmed[4:]))
		case strings.HasPrefix(trimmed, "#### "):
			blocks = append(blocks, headingBlock(4, trimmed[5:]))
		case trimmed == "---" || trimmed == "***":
			blocks = append(blocks, Block{Kind: BlockDivider})
		case strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* "):
			blocks = append(blocks, inlineBlock(BlockListItem, trimmed[2:]))
		case numberedItemRe.MatchString(trimmed):
			blocks = append(blocks, inlineBlock(BlockListItem, numberedItemRe.ReplaceAllString(trimmed, "")))
		case trimmed == "":
			blocks = append(blocks, Block{Kind: BlockBreak})
		default:
			// Paragraphs keep the raw line, not the trimmed one.
			blocks = append(blocks, inlineBlock(BlockParagraph, lines[i]))
		}
		i++
	}
	return blocks
}

func headingBlock(level int, text string) Block {
	content := ParseInline(text)
	return Block{Kind: BlockHeading, Level: level, Content: &content}
}

func inlineBlock(kind, text string) Block {
	content := ParseInline(text)
	return Block{Kind: kind, Content: &content}
}

// parseTable consumes a run of consecutive pipe lines starting at start. The
// first line is the header row and the second must contain a '-' separator;
// otherwise the run is rejected and the caller falls back to per-line
// handling. Returns the table block, the index past the run, and whether the
// run parsed.
func parseTable(lines []string, start int) (Block, int, bool) {
	end := start
	for end < len(lines) && strings.HasPrefix(strings.TrimSpace(lines[end]), "|") {
		end++
	}
	run := lines[start:end]
	if len(run) < 2 {
		return Block{}, 0, false
	}
	if !strings.Contains(run[1], "-") {
		return Block{}, 0, false
	}

	tbl := Block{
		Kind:    BlockTable,
		Headers: splitCells(run[0]),
		Rows:    make([][]Inline, 0, len(run)-2),
	}
	for _, line := range run[2:] {
		tbl.Rows = append(tbl.Rows, splitCells(line))
	}
	return tbl, end, true
}

// splitCells splits a pipe row into trimmed, inline-parsed cells, discarding
// empty fragments produced by leading/trailing pipes.
func splitCells(line string) []Inline {
	parts := strings.Split(line, "|")
	cells := make([]Inline, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t == "" {
			continue
		}
		cells = append(cells, ParseInline(t))
	}
	return cells
}

// Inline patterns, in fixed tie-break order: bold-asterisk, bold-underscore,
// italic, code. No nested emphasis; a matched span's inner text stays plain.
var inlinePatterns = []struct {
	style string
	re    *regexp.Regexp
}{
	{StyleBold, regexp.MustCompile(`\*\*(.+?)\*\*`)},
	{StyleBold, regexp.MustCompile(`__(.+?)__`)},
	{StyleItalic, regexp.MustCompile(`\*([^*]+?)\*`)},
	{StyleCode, regexp.MustCompile("`([^`]+?)`")},
}

// ParseInline tokenizes one run of text into styled spans. Text with zero
// style matches degenerates to the bare-string shape (Plain set, no spans).
func ParseInline(text string) Inline {
	var spans []Span
	remaining := text

	for remaining != "" {
		type hit struct {
			style string
			loc   []int
		}
		var best *hit
		for _, p := range inlinePatterns {
			loc := p.re.FindStringSubmatchIndex(remaining)
			if loc == nil {
				continue
			}
			if best == nil || loc[0] < best.loc[0] {
				best = &hit{style: p.style, loc: loc}
			}
		}
		if best == nil {
			if len(spans) == 0 {
				return Inline{Plain: text}
			}
			spans = append(spans, Span{Style: StylePlain, Text: remaining})
			break
		}
		if before := remaining[:best.loc[0]]; before != "" {
			spans = append(spans, Span{Style: StylePlain, Text: before})
		}
		spans = append(spans, Span{Style: best.style, Text: remaining[best.loc[2]:best.loc[3]]})
		remaining = remaining[best.loc[1]:]
	}

	return Inline{Spans: spans}
}
