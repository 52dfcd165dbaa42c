package render

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/srwiley/rasterx"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"shoutbox/internal/fontpack"
)

func fillRect(dst draw.Image, r image.Rectangle, c color.NRGBA) {
	draw.Draw(dst, r, image.NewUniform(c), image.Point{}, draw.Src)
}

func fillCircle(dst draw.Image, cx, cy, radius float64, c color.NRGBA) {
	b := dst.Bounds()
	scanner := rasterx.NewScannerGV(b.Dx(), b.Dy(), dst, b)
	filler := rasterx.NewFiller(b.Dx(), b.Dy(), scanner)
	filler.SetColor(c)
	rasterx.AddCircle(cx, cy, radius, filler)
	filler.Draw()
	filler.Clear()
}

func fillRoundRect(dst draw.Image, minX, minY, maxX, maxY, radius float64, c color.NRGBA) {
	b := dst.Bounds()
	scanner := rasterx.NewScannerGV(b.Dx(), b.Dy(), dst, b)
	filler := rasterx.NewFiller(b.Dx(), b.Dy(), scanner)
	filler.SetColor(c)
	if radius <= 0 {
		rasterx.AddRect(minX, minY, maxX, maxY, 0, filler)
	} else {
		rasterx.AddRoundRect(minX, minY, maxX, maxY, radius, radius, 0, rasterx.RoundGap, filler)
	}
	filler.Draw()
	filler.Clear()
}

// roundRectMask rasterizes an anti-aliased rounded-rectangle coverage mask.
func roundRectMask(w, h int, minX, minY, maxX, maxY, radius float64) *image.Alpha {
	mask := image.NewAlpha(image.Rect(0, 0, w, h))
	scanner := rasterx.NewScannerGV(w, h, mask, mask.Bounds())
	filler := rasterx.NewFiller(w, h, scanner)
	filler.SetColor(color.NRGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF})
	if radius <= 0 {
		rasterx.AddRect(minX, minY, maxX, maxY, 0, filler)
	} else {
		rasterx.AddRoundRect(minX, minY, maxX, maxY, radius, radius, 0, rasterx.RoundGap, filler)
	}
	filler.Draw()
	filler.Clear()
	return mask
}

// applyAlphaMask replaces dst's alpha channel with the mask coverage,
// mirroring an image paste-with-alpha in raster editors.
func applyAlphaMask(dst *image.NRGBA, mask *image.Alpha) {
	b := dst.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		di := dst.PixOffset(b.Min.X, y)
		mi := mask.PixOffset(b.Min.X, y)
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.Pix[di+3] = mask.Pix[mi]
			di += 4
			mi++
		}
	}
}

// drawText renders s with its baseline at (x, baseline). Bold runs get a 1px
// horizontal double-strike; layout advances are unaffected.
func drawText(dst draw.Image, face *fontpack.Face, s string, x float64, baseline fixed.Int26_6, c color.NRGBA, bold bool) {
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.Point26_6{X: floatToFixed(x), Y: baseline},
	}
	d.DrawString(s)
	if bold {
		d.Dot = fixed.Point26_6{X: floatToFixed(x) + fixed.I(1), Y: baseline}
		d.DrawString(s)
	}
}

func floatToFixed(f float64) fixed.Int26_6 {
	return fixed.Int26_6(f*64 + 0.5)
}

func fixedToFloat(v fixed.Int26_6) float64 {
	return float64(v) / 64
}
