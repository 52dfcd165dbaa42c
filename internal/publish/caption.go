package publish

import "strings"

// DefaultCaptionSuffix is appended to captions when none is configured.
const DefaultCaptionSuffix = "Submit your own post through the link in bio.\n\n" +
	"All posts are anonymous and submitted by followers. " +
	"They do not reflect the views of this page."

// BuildCaption joins the clean post text with the boilerplate suffix.
// The image carries the styled rendering; the caption is plain text.
func BuildCaption(text, suffix string) string {
	text = strings.TrimSpace(text)
	if suffix == "" {
		suffix = DefaultCaptionSuffix
	}
	if text == "" {
		return suffix
	}
	return text + "\n\n" + suffix
}
