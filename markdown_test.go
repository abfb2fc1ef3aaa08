package main

import (
	"reflect"
	"testing"
)

func plain(s string) Inline { return Inline{Plain: s} }

func TestParseInline(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Inline
	}{
		{
			name: "no styles degenerates to bare string",
			in:   "just some text",
			want: Inline{Plain: "just some text"},
		},
		{
			name: "bold and italic",
			in:   "**bold** and *italic*",
			want: Inline{Spans: []Span{
				{Style: StyleBold, Text: "bold"},
				{Style: StylePlain, Text: " and "},
				{Style: StyleItalic, Text: "italic"},
			}},
		},
		{
			name: "underscore bold",
			in:   "__strong__ tail",
			want: Inline{Spans: []Span{
				{Style: StyleBold, Text: "strong"},
				{Style: StylePlain, Text: " tail"},
			}},
		},
		{
			name: "inline code",
			in:   "run `go test` now",
			want: Inline{Spans: []Span{
				{Style: StylePlain, Text: "run "},
				{Style: StyleCode, Text: "go test"},
				{Style: StylePlain, Text: " now"},
			}},
		},
		{
			name: "leftmost match wins",
			in:   "a *one* then **two**",
			want: Inline{Spans: []Span{
				{Style: StylePlain, Text: "a "},
				{Style: StyleItalic, Text: "one"},
				{Style: StylePlain, Text: " then "},
				{Style: StyleBold, Text: "two"},
			}},
		},
		{
			name: "bold beats italic at same offset",
			in:   "**x**",
			want: Inline{Spans: []Span{{Style: StyleBold, Text: "x"}}},
		},
		{
			name: "no nesting inside a matched span",
			in:   "`code with **stars**`",
			want: Inline{Spans: []Span{
				{Style: StyleCode, Text: "code with **stars**"},
			}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseInline(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseInline(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestRenderMarkdownBlocks(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		kinds []string
	}{
		{
			name:  "headings and divider",
			in:    "# One\n## Two\n### Three\n#### Four\n---",
			kinds: []string{BlockHeading, BlockHeading, BlockHeading, BlockHeading, BlockDivider},
		},
		{
			name:  "lists",
			in:    "- a\n* b\n1. c\n12. d",
			kinds: []string{BlockListItem, BlockListItem, BlockListItem, BlockListItem},
		},
		{
			name:  "blank line becomes break",
			in:    "para\n\npara",
			kinds: []string{BlockParagraph, BlockBreak, BlockParagraph},
		},
		{
			name:  "star divider",
			in:    "***",
			kinds: []string{BlockDivider},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RenderMarkdown(tt.in)
			if len(got) != len(tt.kinds) {
				t.Fatalf("got %d blocks, want %d: %+v", len(got), len(tt.kinds), got)
			}
			for i, k := range tt.kinds {
				if got[i].Kind != k {
					t.Errorf("block %d kind = %s, want %s", i, got[i].Kind, k)
				}
			}
		})
	}
}

func TestRenderMarkdownHeadingLevels(t *testing.T) {
	blocks := RenderMarkdown("## Findings")
	if len(blocks) != 1 || blocks[0].Level != 2 {
		t.Fatalf("got %+v, want one level-2 heading", blocks)
	}
	if !reflect.DeepEqual(*blocks[0].Content, plain("Findings")) {
		t.Errorf("content = %+v", blocks[0].Content)
	}
}

func TestRenderMarkdownNumberedPrefixStripped(t *testing.T) {
	blocks := RenderMarkdown("3. third item")
	if len(blocks) != 1 || blocks[0].Kind != BlockListItem {
		t.Fatalf("got %+v", blocks)
	}
	if blocks[0].Content.Plain != "third item" {
		t.Errorf("content = %q, want %q", blocks[0].Content.Plain, "third item")
	}
}

func TestRenderMarkdownTable(t *testing.T) {
	blocks := RenderMarkdown("| a | b |\n|---|---|\n| 1 | 2 |")
	if len(blocks) != 1 || blocks[0].Kind != BlockTable {
		t.Fatalf("got %+v, want one table block", blocks)
	}
	tbl := blocks[0]
	wantHeaders := []Inline{plain("a"), plain("b")}
	if !reflect.DeepEqual(tbl.Headers, wantHeaders) {
		t.Errorf("headers = %+v, want %+v", tbl.Headers, wantHeaders)
	}
	wantRows := [][]Inline{{plain("1"), plain("2")}}
	if !reflect.DeepEqual(tbl.Rows, wantRows) {
		t.Errorf("rows = %+v, want %+v", tbl.Rows, wantRows)
	}
}

func TestRenderMarkdownTableRejection(t *testing.T) {
	// A single pipe line is not a table.
	blocks := RenderMarkdown("| lonely |")
	if len(blocks) != 1 || blocks[0].Kind != BlockParagraph {
		t.Fatalf("single pipe line: got %+v, want one paragraph", blocks)
	}

	// Two pipe lines with no separator dash fall through line by line.
	blocks = RenderMarkdown("| a |\n| b |")
	if len(blocks) != 2 {
		t.Fatalf("got %d blocks, want 2: %+v", len(blocks), blocks)
	}
	for i, b := range blocks {
		if b.Kind != BlockParagraph {
			t.Errorf("block %d kind = %s, want paragraph", i, b.Kind)
		}
	}
}

func TestRenderMarkdownPlainLine(t *testing.T) {
	line := "a line with no prefix and no pipes"
	blocks := RenderMarkdown(line)
	if len(blocks) != 1 || blocks[0].Kind != BlockParagraph {
		t.Fatalf("got %+v", blocks)
	}
	if blocks[0].Content.Plain != line {
		t.Errorf("content = %q, want the whole line", blocks[0].Content.Plain)
	}
	if blocks[0].Content.Spans != nil {
		t.Errorf("expected bare-string shape, got spans %+v", blocks[0].Content.Spans)
	}
}

func TestRenderMarkdownEmptyInput(t *testing.T) {
	if blocks := RenderMarkdown(""); len(blocks) != 0 {
		t.Errorf("empty input produced %+v", blocks)
	}
}

func TestRenderMarkdownInlineInCells(t *testing.T) {
	blocks := RenderMarkdown("| **h** |\n|---|\n| *v* |")
	if len(blocks) != 1 || blocks[0].Kind != BlockTable {
		t.Fatalf("got %+v", blocks)
	}
	h := blocks[0].Headers[0]
	if len(h.Spans) != 1 || h.Spans[0].Style != StyleBold || h.Spans[0].Text != "h" {
		t.Errorf("header cell = %+v", h)
	}
	v := blocks[0].Rows[0][0]
	if len(v.Spans) != 1 || v.Spans[0].Style != StyleItalic || v.Spans[0].Text != "v" {
		t.Errorf("row cell = %+v", v)
	}
}
