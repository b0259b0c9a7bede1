package richtext

import (
	"html"
	"sort"
	"strings"
	"unicode"
)

// Ellipsis marks truncated display markup.
const Ellipsis = "…"

// PlainText flattens content to its unformatted text, one line per block.
func PlainText(c Content) string {
	parts := make([]string, len(c.Blocks))
	for i, block := range c.Blocks {
		parts[i] = block.Text
	}
	return strings.Join(parts, "\n")
}

// DisplayMarkup renders content as escaped HTML for list and summary views,
// truncated to at most budget visible characters. Truncation happens only at
// a word boundary unless none exists before the budget, and appends Ellipsis.
// A budget <= 0 renders everything.
func DisplayMarkup(c Content, budget int) string {
	var out strings.Builder
	remaining := budget
	unlimited := budget <= 0

	var listKind BlockKind
	closeList := func() {
		switch listKind {
		case KindUnorderedItem:
			out.WriteString("</ul>\n")
		case KindOrderedItem:
			out.WriteString("</ol>\n")
		}
		listKind = ""
	}

	for _, block := range c.Blocks {
		text := block.Text
		ranges := block.Ranges
		truncated := false

		if !unlimited {
			if remaining <= 0 {
				out.WriteString(Ellipsis)
				closeList()
				return out.String()
			}
			cut, didCut := truncateAtWord(text, remaining)
			if didCut {
				ranges = clipRanges(ranges, len([]rune(cut)))
				text = cut
				truncated = true
			}
			remaining -= len([]rune(text))
		}

		// Consecutive list items share one enclosing list element.
		if block.Kind != listKind {
			closeList()
			switch block.Kind {
			case KindUnorderedItem:
				out.WriteString("<ul>\n")
				listKind = block.Kind
			case KindOrderedItem:
				out.WriteString("<ol>\n")
				listKind = block.Kind
			}
		}

		body := renderStyledText(text, ranges)
		if truncated {
			body += Ellipsis
		}
		switch block.Kind {
		case KindHeading2:
			out.WriteString("<h2>" + body + "</h2>\n")
		case KindHeading3:
			out.WriteString("<h3>" + body + "</h3>\n")
		case KindHeading4:
			out.WriteString("<h4>" + body + "</h4>\n")
		case KindUnorderedItem, KindOrderedItem:
			out.WriteString("<li>" + body + "</li>\n")
		case KindQuote:
			out.WriteString("<blockquote>" + body + "</blockquote>\n")
		default:
			out.WriteString("<p>" + body + "</p>\n")
		}

		if truncated {
			closeList()
			return out.String()
		}
	}
	closeList()
	return out.String()
}

// truncateAtWord cuts s to at most budget runes, backing up to the last word
// boundary inside the cut. When the cut contains no boundary the text is cut
// exactly at the budget.
func truncateAtWord(s string, budget int) (string, bool) {
	runes := []rune(s)
	if len(runes) <= budget {
		return s, false
	}
	if budget <= 0 {
		return "", true
	}
	// A cut that lands right before a space already ends on a whole word.
	if unicode.IsSpace(runes[budget]) {
		return strings.TrimRight(string(runes[:budget]), " \t"), true
	}
	cut := runes[:budget]
	boundary := -1
	for i := len(cut) - 1; i >= 0; i-- {
		if unicode.IsSpace(cut[i]) {
			boundary = i
			break
		}
	}
	if boundary < 0 {
		return string(cut), true
	}
	return strings.TrimRight(string(cut[:boundary]), " \t"), true
}

func clipRanges(ranges []InlineRange, limit int) []InlineRange {
	clipped := make([]InlineRange, 0, len(ranges))
	for _, r := range ranges {
		if r.Start >= limit {
			continue
		}
		if r.End > limit {
			r.End = limit
		}
		clipped = append(clipped, r)
	}
	return clipped
}

// renderStyledText escapes text and wraps styled segments. The text is split
// at every range boundary so overlapping styles nest cleanly.
func renderStyledText(text string, ranges []InlineRange) string {
	runes := []rune(text)
	if len(ranges) == 0 {
		return html.EscapeString(text)
	}

	boundarySet := map[int]struct{}{0: {}, len(runes): {}}
	for _, r := range ranges {
		boundarySet[r.Start] = struct{}{}
		boundarySet[r.End] = struct{}{}
	}
	boundaries := make([]int, 0, len(boundarySet))
	for b := range boundarySet {
		if b >= 0 && b <= len(runes) {
			boundaries = append(boundaries, b)
		}
	}
	sort.Ints(boundaries)

	var out strings.Builder
	for i := 0; i+1 < len(boundaries); i++ {
		start, end := boundaries[i], boundaries[i+1]
		if start == end {
			continue
		}
		segment := html.EscapeString(string(runes[start:end]))
		// Fixed nesting order keeps output deterministic.
		for _, style := range []Style{StyleStrikethrough, StyleUnderline, StyleItalic, StyleBold} {
			if covered(ranges, style, start, end) {
				segment = wrap(style, segment)
			}
		}
		out.WriteString(segment)
	}
	return out.String()
}

func covered(ranges []InlineRange, style Style, start, end int) bool {
	for _, r := range ranges {
		if r.Style == style && r.Start <= start && r.End >= end {
			return true
		}
	}
	return false
}

func wrap(style Style, segment string) string {
	switch style {
	case StyleBold:
		return "<strong>" + segment + "</strong>"
	case StyleItalic:
		return "<em>" + segment + "</em>"
	case StyleUnderline:
		return "<u>" + segment + "</u>"
	case StyleStrikethrough:
		return "<s>" + segment + "</s>"
	}
	return segment
}
