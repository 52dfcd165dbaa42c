package fontpack

import (
	"testing"

	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/goregular"
)

func TestFaceMeasuresText(t *testing.T) {
	pack, err := FromBytes(goregular.TTF)
	if err != nil {
		t.Fatal(err)
	}
	face, err := pack.NewFace(40)
	if err != nil {
		t.Fatalf("face: %v", err)
	}
	defer face.Close()

	short := face.Advance("hi")
	long := face.Advance("hello there")
	if short <= 0 || long <= short {
		t.Fatalf("advances: short=%v long=%v", short, long)
	}
	if face.LineHeight() <= 0 {
		t.Fatalf("line height = %d", face.LineHeight())
	}
	if face.Ascent() <= 0 {
		t.Fatalf("ascent = %v", face.Ascent())
	}
}

func TestFaceScalesWithSize(t *testing.T) {
	pack, err := FromBytes(goregular.TTF)
	if err != nil {
		t.Fatal(err)
	}
	small, err := pack.NewFace(20)
	if err != nil {
		t.Fatal(err)
	}
	defer small.Close()
	big, err := pack.NewFace(48)
	if err != nil {
		t.Fatal(err)
	}
	defer big.Close()

	if small.Advance("sample") >= big.Advance("sample") {
		t.Fatal("bigger size should advance further")
	}
	if small.LineHeight() >= big.LineHeight() {
		t.Fatal("bigger size should be taller")
	}
}

func TestFacePicksCoveringFont(t *testing.T) {
	pack, err := FromBytes(goregular.TTF, goitalic.TTF)
	if err != nil {
		t.Fatal(err)
	}
	face, err := pack.NewFace(40)
	if err != nil {
		t.Fatal(err)
	}
	defer face.Close()

	// A covered rune resolves to the first font.
	if got := face.pick('A'); got != 0 {
		t.Fatalf("pick('A') = %d, want 0", got)
	}
	// A rune no font covers falls back to the primary.
	if got := face.pick('ਐ'); got != 0 {
		t.Fatalf("pick(uncovered) = %d, want 0", got)
	}

	if _, ok := face.GlyphAdvance('A'); !ok {
		t.Fatal("glyph advance for covered rune failed")
	}
}
