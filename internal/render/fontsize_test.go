package render

import "testing"

func TestDynamicFontSize(t *testing.T) {
	o := DefaultOptions()
	tests := []struct {
		length int
		want   int
	}{
		{0, 48},
		{100, 48},
		{199, 48},
		{200, 48}, // boundary: interpolation starts here at the max size
		{475, 41}, // midpoint
		{750, 34},
		{751, 34},
		{1000, 34},
	}
	for _, tt := range tests {
		if got := DynamicFontSize(tt.length, o); got != tt.want {
			t.Fatalf("DynamicFontSize(%d) = %d, want %d", tt.length, got, tt.want)
		}
	}
}

func TestDynamicFontSizeMonotonic(t *testing.T) {
	o := DefaultOptions()
	prev := DynamicFontSize(0, o)
	for n := 1; n <= 1000; n++ {
		cur := DynamicFontSize(n, o)
		if cur > prev {
			t.Fatalf("size grew from %d to %d at length %d", prev, cur, n)
		}
		prev = cur
	}
}
