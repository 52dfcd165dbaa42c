package render

import (
	"image/color"
	"regexp"
	"strconv"
	"strings"
)

// Segment is a run of text sharing one style. Render order equals reading
// order; segments never span a style change.
type Segment struct {
	Text  string
	Color color.NRGBA
	Size  int
	Bold  bool
}

// Tag grammar. Anything not matching is literal text, including stray "<".
var tagRe = regexp.MustCompile(`(?i)<b>|</b>|<c:#[0-9a-fA-F]+>|</c>|<s:[0-9]+>|</s>`)

// stripTagsRe removes every <...> run to obtain the visible text used for
// dynamic sizing and captions.
var stripTagsRe = regexp.MustCompile(`<[^>]+>`)

const (
	maxMessageRunes = 2000
	truncationMark  = "..."
)

type style struct {
	bold  bool
	color color.NRGBA
	size  int
}

// Parse converts raw markup into styled segments.
//
// A per-call style stack starts at the default style; open tags push a copied
// frame, close tags pop. Popping the last frame (unmatched close) is a no-op,
// and recognized tags with invalid values (bad hex, unparsable size) are
// dropped keeping the prior style: malformed markup degrades, it never errors.
func Parse(raw string, defaultSize int, defaultColor color.NRGBA) []Segment {
	stack := []style{{bold: false, color: defaultColor, size: defaultSize}}
	segs := make([]Segment, 0, 8)

	emit := func(text string) {
		if text == "" {
			return
		}
		top := stack[len(stack)-1]
		segs = append(segs, Segment{Text: text, Color: top.color, Size: top.size, Bold: top.bold})
	}
	push := func(mut func(*style)) {
		top := stack[len(stack)-1]
		mut(&top)
		stack = append(stack, top)
	}
	pop := func() {
		if len(stack) > 1 {
			stack = stack[:len(stack)-1]
		}
	}

	pos := 0
	for _, loc := range tagRe.FindAllStringIndex(raw, -1) {
		emit(raw[pos:loc[0]])
		pos = loc[1]

		tag := raw[loc[0]:loc[1]]
		switch lower := strings.ToLower(tag); {
		case lower == "<b>":
			push(func(s *style) { s.bold = true })
		case lower == "</b>", lower == "</c>", lower == "</s>":
			pop()
		case strings.HasPrefix(lower, "<c:"):
			hex := tag[3 : len(tag)-1]
			if hexColorRe.MatchString(hex) {
				c := ParseHexColor(hex)
				push(func(s *style) { s.color = c })
			}
		case strings.HasPrefix(lower, "<s:"):
			if n, err := strconv.Atoi(tag[3 : len(tag)-1]); err == nil && n > 0 {
				push(func(s *style) { s.size = n })
			}
		}
	}
	emit(raw[pos:])

	return segs
}

// StripTags returns the visible text with every <...> tag removed.
func StripTags(text string) string {
	return stripTagsRe.ReplaceAllString(text, "")
}

// Sanitize prepares raw user input for parsing: emoji are removed
// (character class only, newlines untouched), outer whitespace is trimmed,
// and overly long input is truncated with an ellipsis. Tags survive
// sanitization intact.
func Sanitize(raw string) string {
	cleaned := strings.TrimSpace(RemoveEmoji(raw))
	runes := []rune(cleaned)
	if len(runes) > maxMessageRunes {
		return string(runes[:maxMessageRunes]) + truncationMark
	}
	return cleaned
}

// RemoveEmoji drops emoji and pictograph runes. It operates strictly on
// character classes so newlines and other whitespace are preserved.
func RemoveEmoji(text string) string {
	if !strings.ContainsFunc(text, isEmoji) {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if !isEmoji(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isEmoji(r rune) bool {
	switch {
	case r >= 0x1F600 && r <= 0x1F64F: // emoticons
		return true
	case r >= 0x1F300 && r <= 0x1F5FF: // symbols & pictographs
		return true
	case r >= 0x1F680 && r <= 0x1F6FF: // transport & map
		return true
	case r >= 0x1F700 && r <= 0x1FAFF: // alchemical through extended-A
		return true
	case r >= 0x2702 && r <= 0x27B0: // dingbats
		return true
	case r >= 0x24C2 && r <= 0x1F251: // enclosed characters
		return true
	}
	return false
}
