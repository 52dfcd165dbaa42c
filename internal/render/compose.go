package render

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"unicode"

	"github.com/disintegration/imaging"
	"golang.org/x/image/math/fixed"

	"shoutbox/internal/fontpack"
)

// Layout constants, in pixels unless noted. The canvas itself is fixed; these
// describe how the header and chat group sit inside it.
const (
	headerHeight = CanvasHeight / 10

	headerPadX       = 50
	headerSideSize   = 36
	headerCenterSize = 42
	headerRuleWidth  = 2

	bodyPadX     = 50
	avatarSize   = 90
	avatarGapX   = 20
	usernameGapY = 15
	usernameSize = 36
	avatarFont   = 50

	bubblePadding = 35
	bubbleRadius  = 45
	lineSpacing   = 15
)

// bubbleLeft and maxTextWidth fall out of the fixed geometry.
const (
	bubbleLeft   = bodyPadX + avatarSize + avatarGapX
	maxTextWidth = CanvasWidth - bodyPadX - bubbleLeft - 2*bubblePadding
)

// Compositor renders Specs onto the fixed canvas using a resolved font pack.
// It performs no I/O of its own.
type Compositor struct {
	pack facePack
}

func NewCompositor(pack *fontpack.Pack) *Compositor {
	return &Compositor{pack: pack}
}

// Compose renders the spec into lossless PNG bytes (1080x1350 RGBA with
// alpha-rounded corners).
func (c *Compositor) Compose(spec Spec) ([]byte, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	o := spec.Options

	msg := Sanitize(spec.Message)
	clean := StripTags(msg)
	defaultSize := DynamicFontSize(len([]rune(clean)), o)

	fs := newFaceSet(c.pack)
	defer fs.Close()
	// Prime the default face up front: every later size failure falls back
	// to a built face, so drawing never sees a nil one.
	if fs.face(defaultSize) == nil {
		return nil, fs.err
	}

	content := image.NewRGBA(image.Rect(0, 0, CanvasWidth, CanvasHeight))
	fillRect(content, content.Bounds(), ParseHexColor(o.BackgroundColor))

	c.drawHeader(content, fs, spec)
	c.drawBody(content, fs, spec, msg, defaultSize)
	if fs.err != nil {
		return nil, fs.err
	}

	final := applyBorder(content, o)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, final, imaging.PNG); err != nil {
		return nil, fmt.Errorf("render: encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func (c *Compositor) drawHeader(dst draw.Image, fs *faceSet, spec Spec) {
	o := spec.Options
	fillRect(dst, image.Rect(0, 0, CanvasWidth, headerHeight), ParseHexColor(o.headerColor()))

	side := fs.face(headerSideSize)
	center := fs.face(headerCenterSize)
	sideColor := ParseHexColor(o.HeaderSideColor)

	yCenter := headerHeight / 2
	baselineFor := func(f *fontpack.Face) fixed.Int26_6 {
		m := f.Metrics()
		return fixed.I(yCenter) + (m.Ascent-m.Descent)/2
	}

	label := "#" + spec.PostLabel
	drawText(dst, side, label, headerPadX, baselineFor(side), sideColor, false)

	title := "@" + spec.Title
	titleW := fixedToFloat(center.Advance(title))
	drawText(dst, center, title, CanvasWidth/2-titleW/2, baselineFor(center), ParseHexColor(o.HeaderCenterColor), false)

	dateW := fixedToFloat(side.Advance(spec.ShortDate))
	drawText(dst, side, spec.ShortDate, CanvasWidth-headerPadX-dateW, baselineFor(side), sideColor, false)

	fillRect(dst, image.Rect(0, headerHeight-headerRuleWidth, CanvasWidth, headerHeight), ParseHexColor(o.HeaderRuleColor))
}

func (c *Compositor) drawBody(dst draw.Image, fs *faceSet, spec Spec, msg string, defaultSize int) {
	o := spec.Options

	segments := Parse(msg, defaultSize, ParseHexColor(o.MessageColor))
	lines := Wrap(segments, WrapConfig{
		MaxWidth:    maxTextWidth,
		DefaultSize: defaultSize,
		BoldFudge:   o.BoldFudge,
	}, fs)

	totalTextHeight := 0
	for _, ln := range lines {
		totalTextHeight += ln.Height
	}
	if len(lines) > 1 {
		totalTextHeight += (len(lines) - 1) * lineSpacing
	}

	uFace := fs.face(usernameSize)
	usernameHeight := uFace.LineHeight()

	bubbleW := maxTextWidth + 2*bubblePadding
	bubbleH := totalTextHeight + 2*bubblePadding
	groupH := usernameHeight + usernameGapY + bubbleH
	groupY := headerHeight + (CanvasHeight-headerHeight-groupH)/2

	// Avatar bottom-aligns with the bubble bottom.
	avatarY := groupY + groupH - avatarSize
	fillCircle(dst,
		bodyPadX+avatarSize/2, float64(avatarY)+avatarSize/2, avatarSize/2,
		ParseHexColor(o.AvatarColor))

	if initial := firstUpper(spec.Username); initial != "" {
		af := fs.face(avatarFont)
		m := af.Metrics()
		w := fixedToFloat(af.Advance(initial))
		cx := float64(bodyPadX) + avatarSize/2
		baseline := fixed.I(avatarY+avatarSize/2) + (m.Ascent-m.Descent)/2
		drawText(dst, af, initial, cx-w/2, baseline, ParseHexColor(o.AvatarTextColor), false)
	}

	drawText(dst, uFace, spec.Username,
		bubbleLeft+bubblePadding, fixed.I(groupY)+uFace.Ascent(),
		ParseHexColor(o.UsernameColor), false)

	bubbleY := groupY + usernameHeight + usernameGapY
	bubbleColor := ParseHexColor(o.BubbleColor)
	fillRoundRect(dst,
		bubbleLeft, float64(bubbleY),
		float64(bubbleLeft+bubbleW), float64(bubbleY+bubbleH),
		bubbleRadius, bubbleColor)
	// Square off the bottom-left corner: the chat-bubble tail.
	fillRect(dst, image.Rect(
		bubbleLeft, bubbleY+bubbleH-bubbleRadius,
		bubbleLeft+bubbleRadius, bubbleY+bubbleH,
	), bubbleColor)

	curY := bubbleY + bubblePadding
	for _, ln := range lines {
		for _, span := range ln.Spans {
			face := fs.face(span.Seg.Size)
			baseline := fixed.I(curY) + face.Ascent()
			drawText(dst, face, span.Seg.Text,
				float64(bubbleLeft+bubblePadding)+span.X, baseline,
				span.Seg.Color, span.Seg.Bold)
		}
		curY += ln.Height + lineSpacing
	}
}

// applyBorder pastes the content through an inset rounded mask onto a
// border-colored backdrop, then rounds the outer corners through the alpha
// channel, leaving a uniform border band.
func applyBorder(content *image.RGBA, o Options) *image.NRGBA {
	b := content.Bounds()
	final := image.NewNRGBA(b)
	fillRect(final, b, ParseHexColor(o.BorderColor))

	inset := float64(o.BorderWidth)
	innerRadius := o.BorderRadius - o.BorderWidth
	if innerRadius < 0 {
		innerRadius = 0
	}
	innerMask := roundRectMask(b.Dx(), b.Dy(),
		inset, inset, float64(b.Dx())-inset, float64(b.Dy())-inset, float64(innerRadius))
	draw.DrawMask(final, b, content, image.Point{}, innerMask, image.Point{}, draw.Over)

	outerMask := roundRectMask(b.Dx(), b.Dy(),
		0, 0, float64(b.Dx()), float64(b.Dy()), float64(o.BorderRadius))
	applyAlphaMask(final, outerMask)
	return final
}

func firstUpper(s string) string {
	for _, r := range s {
		return string(unicode.ToUpper(r))
	}
	return ""
}
