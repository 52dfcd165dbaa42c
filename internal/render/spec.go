package render

import (
	"image/color"
	"regexp"
	"strings"
)

// Canvas dimensions are fixed; the publish endpoint expects 4:5 portrait.
const (
	CanvasWidth  = 1080
	CanvasHeight = 1350
)

var hexColorRe = regexp.MustCompile(`^#(?:[A-Fa-f0-9]{3}){1,2}$`)

// Spec is the full input for one composed image.
type Spec struct {
	Username  string
	PostLabel string // rendered as "#<PostLabel>" in the header's left zone
	Message   string // raw text, may contain inline style tags
	ShortDate string
	Title     string // rendered as "@<Title>" centered in the header

	Options Options
}

// Options enumerates every recognized customization explicitly.
// Colors are hex strings ("#RGB" or "#RRGGBB"); geometry is non-negative.
type Options struct {
	BorderWidth  int
	BorderRadius int
	BorderColor  string

	BackgroundColor   string
	HeaderColor       string // defaults to BorderColor when left empty
	HeaderSideColor   string
	HeaderCenterColor string
	HeaderRuleColor   string

	AvatarColor     string
	AvatarTextColor string
	UsernameColor   string
	BubbleColor     string
	MessageColor    string

	// Dynamic sizing of the default message style.
	MinFontSize int
	MaxFontSize int
	MinLength   int
	MaxLength   int

	// BoldFudge widens width estimates for bold runs, per rune, to cover the
	// stroke emulation so bold words don't overflow the bubble.
	BoldFudge float64
}

// DefaultOptions returns the stock dark chat theme.
func DefaultOptions() Options {
	return Options{
		BorderWidth:  6,
		BorderRadius: 30,
		BorderColor:  "#FFFFFF",

		BackgroundColor:   "#1A1A1A",
		HeaderSideColor:   "#A0A0A0",
		HeaderCenterColor: "#3D3D3D",
		HeaderRuleColor:   "#333333",

		AvatarColor:     "#4169E1",
		AvatarTextColor: "#FFFFFF",
		UsernameColor:   "#A0A0A0",
		BubbleColor:     "#3E3E3E",
		MessageColor:    "#FFFFFF",

		MinFontSize: 34,
		MaxFontSize: 48,
		MinLength:   200,
		MaxLength:   750,

		BoldFudge: 0.5,
	}
}

// Validate checks every option. Invalid input is terminal, never coerced.
func (o *Options) Validate() error {
	if o.BorderWidth < 0 {
		return invalidParam("border_width", "must be a non-negative integer, got %d", o.BorderWidth)
	}
	if o.BorderRadius < 0 {
		return invalidParam("border_radius", "must be a non-negative integer, got %d", o.BorderRadius)
	}
	colors := []struct {
		name, val string
		required  bool
	}{
		{"border_color", o.BorderColor, true},
		{"background_color", o.BackgroundColor, true},
		{"header_color", o.HeaderColor, false},
		{"header_side_color", o.HeaderSideColor, true},
		{"header_center_color", o.HeaderCenterColor, true},
		{"header_rule_color", o.HeaderRuleColor, true},
		{"avatar_color", o.AvatarColor, true},
		{"avatar_text_color", o.AvatarTextColor, true},
		{"username_color", o.UsernameColor, true},
		{"bubble_color", o.BubbleColor, true},
		{"message_color", o.MessageColor, true},
	}
	for _, c := range colors {
		if c.val == "" && !c.required {
			continue
		}
		if !hexColorRe.MatchString(c.val) {
			return invalidParam(c.name, "invalid hex color format: %q", c.val)
		}
	}
	if o.MinFontSize <= 0 || o.MaxFontSize <= 0 || o.MinFontSize > o.MaxFontSize {
		return invalidParam("font_size", "need 0 < min <= max, got %d..%d", o.MinFontSize, o.MaxFontSize)
	}
	if o.MinLength < 0 || o.MaxLength <= o.MinLength {
		return invalidParam("length_bounds", "need 0 <= min < max, got %d..%d", o.MinLength, o.MaxLength)
	}
	return nil
}

// Validate checks the textual inputs.
func (s *Spec) Validate() error {
	if strings.TrimSpace(s.Username) == "" {
		return invalidParam("username", "must not be empty")
	}
	if strings.TrimSpace(s.PostLabel) == "" {
		return invalidParam("post_label", "must not be empty")
	}
	if strings.TrimSpace(s.Title) == "" {
		return invalidParam("title", "must not be empty")
	}
	return s.Options.Validate()
}

// headerColor resolves the header background, which tracks the border color
// unless explicitly overridden.
func (o *Options) headerColor() string {
	if o.HeaderColor != "" {
		return o.HeaderColor
	}
	return o.BorderColor
}

// ParseHexColor converts "#RGB" or "#RRGGBB" into an opaque color.
// The caller is expected to have validated the format already; invalid
// input yields opaque black.
func ParseHexColor(s string) color.NRGBA {
	c := color.NRGBA{A: 0xFF}
	if !hexColorRe.MatchString(s) {
		return c
	}
	hex := s[1:]
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	c.R = hexByte(hex[0], hex[1])
	c.G = hexByte(hex[2], hex[3])
	c.B = hexByte(hex[4], hex[5])
	return c
}

func hexByte(hi, lo byte) byte {
	return hexNibble(hi)<<4 | hexNibble(lo)
}

func hexNibble(b byte) byte {
	switch {
	case b >= '0' && b <= '9':
		return b - '0'
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10
	}
	return 0
}
