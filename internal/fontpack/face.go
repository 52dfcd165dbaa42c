package fontpack

import (
	"image"
	"strconv"

	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

// Face is a font.Face that resolves each rune against the pack's fonts in
// order, so mixed-script text renders with real glyphs instead of tofu.
//
// A Face is not safe for concurrent use; create one per goroutine (they are
// cheap, the parsed fonts are shared).
type Face struct {
	faces []font.Face
	pack  *Pack
	buf   sfnt.Buffer
}

// NewFace builds a fallback face at the given pixel size (72 DPI).
func (p *Pack) NewFace(size float64) (*Face, error) {
	faces := make([]font.Face, 0, len(p.fonts))
	for i, f := range p.fonts {
		face, err := opentype.NewFace(f, &opentype.FaceOptions{
			Size:    size,
			DPI:     72,
			Hinting: font.HintingFull,
		})
		if err != nil {
			return nil, fontErr("face for font "+strconv.Itoa(i), err)
		}
		faces = append(faces, face)
	}
	return &Face{faces: faces, pack: p}, nil
}

// pick returns the index of the first font covering r, or 0.
func (f *Face) pick(r rune) int {
	for i, fnt := range f.pack.fonts {
		gi, err := fnt.GlyphIndex(&f.buf, r)
		if err == nil && gi != 0 {
			return i
		}
	}
	return 0
}

// Close releases every sub-face.
func (f *Face) Close() error {
	var first error
	for _, face := range f.faces {
		if err := face.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (f *Face) Glyph(dot fixed.Point26_6, r rune) (image.Rectangle, image.Image, image.Point, fixed.Int26_6, bool) {
	return f.faces[f.pick(r)].Glyph(dot, r)
}

func (f *Face) GlyphBounds(r rune) (fixed.Rectangle26_6, fixed.Int26_6, bool) {
	return f.faces[f.pick(r)].GlyphBounds(r)
}

func (f *Face) GlyphAdvance(r rune) (fixed.Int26_6, bool) {
	return f.faces[f.pick(r)].GlyphAdvance(r)
}

// Kern applies only within a single source font; cross-font pairs get none.
func (f *Face) Kern(r0, r1 rune) fixed.Int26_6 {
	i0, i1 := f.pick(r0), f.pick(r1)
	if i0 != i1 {
		return 0
	}
	return f.faces[i0].Kern(r0, r1)
}

// Metrics reports the primary font's metrics; the Noto family keeps these
// consistent across scripts.
func (f *Face) Metrics() font.Metrics {
	return f.faces[0].Metrics()
}

// Advance measures the horizontal advance of s, kerning included.
func (f *Face) Advance(s string) fixed.Int26_6 {
	var total fixed.Int26_6
	prev := rune(-1)
	for _, r := range s {
		if prev >= 0 {
			total += f.Kern(prev, r)
		}
		a, ok := f.GlyphAdvance(r)
		if !ok {
			prev = r
			continue
		}
		total += a
		prev = r
	}
	return total
}

// LineHeight returns ascent+descent in whole pixels, rounded up.
func (f *Face) LineHeight() int {
	m := f.Metrics()
	return (m.Ascent + m.Descent).Ceil()
}

// Ascent returns the baseline offset from the top of the line box.
func (f *Face) Ascent() fixed.Int26_6 {
	return f.Metrics().Ascent
}
