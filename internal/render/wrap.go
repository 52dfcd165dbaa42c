package render

import "strings"

// Measurer supplies text metrics for one font asset. Implementations exist
// over the merged font pack; tests may substitute fixed-width stubs.
type Measurer interface {
	// Advance returns the horizontal advance of text at the given style.
	Advance(text string, size int, bold bool) float64
	// LineHeight returns ascent+descent at the given size.
	LineHeight(size int) int
}

// Placed is a segment fragment positioned within its line.
type Placed struct {
	Seg Segment
	X   float64
}

// Line is one laid-out row. Spans may be empty for an explicit blank line,
// which still contributes Height to the total.
type Line struct {
	Spans  []Placed
	Height int
}

// WrapConfig bounds the layout.
type WrapConfig struct {
	MaxWidth    float64
	DefaultSize int // height source for blank lines
	// BoldFudge is added per rune to width estimates of bold words so the
	// stroke emulation cannot push a packed word past MaxWidth.
	BoldFudge float64
}

type wrapper struct {
	cfg WrapConfig
	m   Measurer

	lines []Line
	cur   []Placed
	curW  float64
}

// Wrap lays segments out into lines no wider than cfg.MaxWidth.
//
// Explicit newlines always flush the current line, even when empty, so
// vertical whitespace survives. Words are packed inclusively (an exact fit
// stays on the line). A single word wider than the whole budget is packed
// character by character rather than overflowing.
func Wrap(segs []Segment, cfg WrapConfig, m Measurer) []Line {
	w := &wrapper{cfg: cfg, m: m, lines: make([]Line, 0, 4)}

	for _, seg := range segs {
		for _, part := range splitKeepNewlines(seg.Text) {
			if part == "\n" {
				w.flush()
				continue
			}
			w.packWords(seg, part)
		}
	}
	if len(w.cur) > 0 {
		w.flush()
	}
	return w.lines
}

func (w *wrapper) packWords(seg Segment, part string) {
	words := strings.Split(part, " ")
	for i, word := range words {
		if i < len(words)-1 {
			word += " "
		}
		if word == "" {
			continue
		}
		ww := w.wordWidth(word, seg)
		switch {
		case w.curW+ww <= w.cfg.MaxWidth:
			w.append(seg, word, ww)
		case ww > w.cfg.MaxWidth:
			// The word alone beats the budget even on a fresh line.
			if len(w.cur) > 0 {
				w.flush()
			}
			w.packRunes(seg, word)
		default:
			w.flush()
			w.append(seg, word, ww)
		}
	}
}

// packRunes splits an oversized unbroken word into maximal fitting chunks.
// Only the oversized word is chunked; normal words keep word wrapping.
func (w *wrapper) packRunes(seg Segment, word string) {
	var chunk strings.Builder
	chunkW := 0.0
	for _, r := range word {
		rw := w.wordWidth(string(r), seg)
		if chunkW+rw > w.cfg.MaxWidth && chunk.Len() > 0 {
			w.append(seg, chunk.String(), chunkW)
			w.flush()
			chunk.Reset()
			chunkW = 0
		}
		chunk.WriteRune(r)
		chunkW += rw
	}
	if chunk.Len() > 0 {
		w.append(seg, chunk.String(), chunkW)
	}
}

func (w *wrapper) wordWidth(text string, seg Segment) float64 {
	ww := w.m.Advance(text, seg.Size, seg.Bold)
	if seg.Bold {
		ww += float64(len([]rune(text))) * w.cfg.BoldFudge
	}
	return ww
}

func (w *wrapper) append(seg Segment, text string, width float64) {
	placed := seg
	placed.Text = text
	// X offsets use the real advance; the bold fudge only guards packing.
	x := 0.0
	if n := len(w.cur); n > 0 {
		last := w.cur[n-1]
		x = last.X + w.m.Advance(last.Seg.Text, last.Seg.Size, last.Seg.Bold)
	}
	w.cur = append(w.cur, Placed{Seg: placed, X: x})
	w.curW += width
}

// flush commits the current line unconditionally, including empty ones.
func (w *wrapper) flush() {
	h := 0
	for _, p := range w.cur {
		if lh := w.m.LineHeight(p.Seg.Size); lh > h {
			h = lh
		}
	}
	if len(w.cur) == 0 {
		h = w.m.LineHeight(w.cfg.DefaultSize)
	}
	w.lines = append(w.lines, Line{Spans: w.cur, Height: h})
	w.cur = nil
	w.curW = 0
}

// splitKeepNewlines splits text on '\n', keeping each newline as its own
// element: "A\nB" -> ["A", "\n", "B"].
func splitKeepNewlines(text string) []string {
	parts := make([]string, 0, 4)
	start := 0
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			parts = append(parts, text[start:i], "\n")
			start = i + 1
		}
	}
	parts = append(parts, text[start:])
	return parts
}
