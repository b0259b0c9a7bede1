package authoring

import (
	"sort"

	"inkwell/api/internal/richtext"
)

// Selection addresses the text a style command acts on: an inclusive block
// range with rune offsets inside the edge blocks.
type Selection struct {
	StartBlock  int `json:"startBlock"`
	StartOffset int `json:"startOffset"`
	EndBlock    int `json:"endBlock"`
	EndOffset   int `json:"endOffset"`
}

// segment is the part of one block a selection covers.
type segment struct {
	block      int
	start, end int
}

func (sel Selection) segments(content richtext.Content) []segment {
	if sel.StartBlock > sel.EndBlock {
		return nil
	}
	var segs []segment
	for b := sel.StartBlock; b <= sel.EndBlock && b < len(content.Blocks); b++ {
		if b < 0 {
			continue
		}
		textLen := len([]rune(content.Blocks[b].Text))
		start, end := 0, textLen
		if b == sel.StartBlock {
			start = clamp(sel.StartOffset, 0, textLen)
		}
		if b == sel.EndBlock {
			end = clamp(sel.EndOffset, 0, textLen)
		}
		if end > start {
			segs = append(segs, segment{block: b, start: start, end: end})
		}
	}
	return segs
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// toggleInline applies or removes an inline style over the selection. When
// every selected character already carries the style the toggle removes it,
// otherwise it styles the whole selection.
func toggleInline(content *richtext.Content, style richtext.Style, sel Selection) {
	segs := sel.segments(*content)
	if len(segs) == 0 {
		return
	}

	allStyled := true
	for _, seg := range segs {
		if !rangeFullyStyled(content.Blocks[seg.block], style, seg.start, seg.end) {
			allStyled = false
			break
		}
	}

	for _, seg := range segs {
		block := &content.Blocks[seg.block]
		if allStyled {
			removeStyleRange(block, style, seg.start, seg.end)
		} else {
			addStyleRange(block, style, seg.start, seg.end)
		}
	}
}

// toggleBlock switches the kind of every selected block. Re-applying the
// kind every block already has reverts them to paragraphs.
func toggleBlock(content *richtext.Content, kind richtext.BlockKind, sel Selection) {
	start, end := sel.StartBlock, sel.EndBlock
	if start < 0 {
		start = 0
	}
	if end >= len(content.Blocks) {
		end = len(content.Blocks) - 1
	}
	if start > end {
		return
	}

	allKind := true
	for b := start; b <= end; b++ {
		if content.Blocks[b].Kind != kind {
			allKind = false
			break
		}
	}
	target := kind
	if allKind {
		target = richtext.KindParagraph
	}
	for b := start; b <= end; b++ {
		content.Blocks[b].Kind = target
	}
}

func rangeFullyStyled(block richtext.Block, style richtext.Style, start, end int) bool {
	// Styled intervals of one style never overlap, so covered length adds up.
	covered := 0
	for _, r := range block.Ranges {
		if r.Style != style {
			continue
		}
		lo, hi := max(r.Start, start), min(r.End, end)
		if hi > lo {
			covered += hi - lo
		}
	}
	return covered == end-start
}

func addStyleRange(block *richtext.Block, style richtext.Style, start, end int) {
	merged := []richtext.InlineRange{{Start: start, End: end, Style: style}}
	var rest []richtext.InlineRange
	for _, r := range block.Ranges {
		if r.Style != style {
			rest = append(rest, r)
			continue
		}
		// Merge touching or overlapping intervals into the new range.
		if r.End >= merged[0].Start && r.Start <= merged[0].End {
			merged[0].Start = min(merged[0].Start, r.Start)
			merged[0].End = max(merged[0].End, r.End)
		} else {
			merged = append(merged, r)
		}
	}
	block.Ranges = normalizeRanges(append(rest, merged...))
}

func removeStyleRange(block *richtext.Block, style richtext.Style, start, end int) {
	var kept []richtext.InlineRange
	for _, r := range block.Ranges {
		if r.Style != style || r.End <= start || r.Start >= end {
			kept = append(kept, r)
			continue
		}
		if r.Start < start {
			kept = append(kept, richtext.InlineRange{Start: r.Start, End: start, Style: style})
		}
		if r.End > end {
			kept = append(kept, richtext.InlineRange{Start: end, End: r.End, Style: style})
		}
	}
	block.Ranges = normalizeRanges(kept)
}

// normalizeRanges keeps the range list in a canonical order so equal
// formatting always serializes identically.
func normalizeRanges(ranges []richtext.InlineRange) []richtext.InlineRange {
	if len(ranges) == 0 {
		return nil
	}
	sort.SliceStable(ranges, func(i, j int) bool {
		if ranges[i].Start != ranges[j].Start {
			return ranges[i].Start < ranges[j].Start
		}
		if ranges[i].End != ranges[j].End {
			return ranges[i].End < ranges[j].End
		}
		return ranges[i].Style < ranges[j].Style
	})
	return ranges
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
