// Package richtext defines the block-structured content model used for post
// bodies and its lossless serialization codec.
package richtext

import (
	"encoding/json"
	"fmt"
	"strings"
)

// BlockKind identifies the structural role of a block.
type BlockKind string

const (
	KindParagraph     BlockKind = "paragraph"
	KindHeading2      BlockKind = "heading-2"
	KindHeading3      BlockKind = "heading-3"
	KindHeading4      BlockKind = "heading-4"
	KindUnorderedItem BlockKind = "unordered-item"
	KindOrderedItem   BlockKind = "ordered-item"
	KindQuote         BlockKind = "quote"
)

// Style is an inline formatting style applied over a range of text.
type Style string

const (
	StyleBold          Style = "bold"
	StyleItalic        Style = "italic"
	StyleUnderline     Style = "underline"
	StyleStrikethrough Style = "strikethrough"
)

// InlineRange marks [Start, End) rune offsets of a block's text carrying a
// style. Ranges for the same style never overlap and End > Start.
type InlineRange struct {
	Start int   `json:"start"`
	End   int   `json:"end"`
	Style Style `json:"style"`
}

// Block is one structural unit of rich content.
type Block struct {
	Kind   BlockKind     `json:"kind"`
	Text   string        `json:"text"`
	Ranges []InlineRange `json:"ranges,omitempty"`
}

// Content is an ordered sequence of blocks.
type Content struct {
	Blocks []Block `json:"blocks"`
}

// FormatError reports malformed stored content. It is returned, never
// panicked, so callers can fall back to an empty draft.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string {
	return "richtext: " + e.Reason
}

func formatErrorf(format string, args ...any) *FormatError {
	return &FormatError{Reason: fmt.Sprintf(format, args...)}
}

// envelope is the persisted wire shape. Version is carried so the codec can
// evolve without guessing at old payloads.
type envelope struct {
	Version int     `json:"version"`
	Blocks  []Block `json:"blocks"`
}

const codecVersion = 1

var validKinds = map[BlockKind]struct{}{
	KindParagraph:     {},
	KindHeading2:      {},
	KindHeading3:      {},
	KindHeading4:      {},
	KindUnorderedItem: {},
	KindOrderedItem:   {},
	KindQuote:         {},
}

var validStyles = map[Style]struct{}{
	StyleBold:          {},
	StyleItalic:        {},
	StyleUnderline:     {},
	StyleStrikethrough: {},
}

// Serialize encodes content into its persisted string form. The output of
// Serialize always deserializes back to a structurally equal value; an empty
// range slice is normalized to nil so equal content serializes to equal
// bytes.
func Serialize(c Content) (string, error) {
	if err := validate(c); err != nil {
		return "", err
	}
	blocks := make([]Block, len(c.Blocks))
	copy(blocks, c.Blocks)
	for i := range blocks {
		if len(blocks[i].Ranges) == 0 {
			blocks[i].Ranges = nil
		}
	}
	data, err := json.Marshal(envelope{Version: codecVersion, Blocks: blocks})
	if err != nil {
		return "", fmt.Errorf("marshal content: %w", err)
	}
	return string(data), nil
}

// Deserialize decodes a persisted body. Legacy bodies that carry no
// structural markup are treated as a single paragraph block rather than an
// error; structurally marked-up input that fails to decode returns a
// *FormatError.
func Deserialize(s string) (Content, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return Content{}, nil
	}
	if !strings.HasPrefix(trimmed, "{") {
		// Plain-text body written before the structured editor existed.
		return Content{Blocks: []Block{{Kind: KindParagraph, Text: s}}}, nil
	}

	var env envelope
	if err := json.Unmarshal([]byte(trimmed), &env); err != nil {
		return Content{}, formatErrorf("decode body: %v", err)
	}
	if env.Version != codecVersion {
		return Content{}, formatErrorf("unsupported content version %d", env.Version)
	}
	content := Content{Blocks: env.Blocks}
	if err := validate(content); err != nil {
		return Content{}, err
	}
	return content, nil
}

func validate(c Content) error {
	for i, block := range c.Blocks {
		if _, ok := validKinds[block.Kind]; !ok {
			return formatErrorf("block %d: unknown kind %q", i, block.Kind)
		}
		textLen := len([]rune(block.Text))
		perStyle := map[Style][]InlineRange{}
		for j, r := range c.Blocks[i].Ranges {
			if _, ok := validStyles[r.Style]; !ok {
				return formatErrorf("block %d range %d: unknown style %q", i, j, r.Style)
			}
			if r.End <= r.Start {
				return formatErrorf("block %d range %d: end %d not after start %d", i, j, r.End, r.Start)
			}
			if r.Start < 0 || r.End > textLen {
				return formatErrorf("block %d range %d: [%d,%d) outside text of length %d", i, j, r.Start, r.End, textLen)
			}
			for _, prev := range perStyle[r.Style] {
				if r.Start < prev.End && prev.Start < r.End {
					return formatErrorf("block %d range %d: overlapping %s ranges", i, j, r.Style)
				}
			}
			perStyle[r.Style] = append(perStyle[r.Style], r)
		}
	}
	return nil
}
