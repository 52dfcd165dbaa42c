package render

// DynamicFontSize computes the default message font size from the visible
// (tag-stripped) character count: maximum size below MinLength, minimum size
// above MaxLength, linear in between.
func DynamicFontSize(visibleLen int, o Options) int {
	if visibleLen < o.MinLength {
		return o.MaxFontSize
	}
	if visibleLen > o.MaxLength {
		return o.MinFontSize
	}
	slope := float64(o.MinFontSize-o.MaxFontSize) / float64(o.MaxLength-o.MinLength)
	return int(float64(o.MaxFontSize) + slope*float64(visibleLen-o.MinLength))
}
