package render

import (
	"errors"
	"testing"

	"shoutbox/internal/fontpack"
)

// flakyPack fails face construction for selected sizes, or for everything.
type flakyPack struct {
	real      *fontpack.Pack
	failAll   bool
	failSizes map[int]bool
}

func (p *flakyPack) NewFace(size float64) (*fontpack.Face, error) {
	if p.failAll || p.failSizes[int(size)] {
		return nil, errors.New("face build failed")
	}
	return p.real.NewFace(size)
}

func TestFaceSetDegradesToBuiltFace(t *testing.T) {
	fs := newFaceSet(&flakyPack{real: testPack(t), failSizes: map[int]bool{36: true}})
	defer fs.Close()

	primary := fs.face(48)
	if primary == nil {
		t.Fatal("primary face not built")
	}
	if got := fs.face(36); got != primary {
		t.Fatalf("degraded face = %p, want the built one %p", got, primary)
	}
	if fs.err == nil {
		t.Fatal("failure was not recorded")
	}
}

func TestFaceSetReturnsNilWhenNothingBuilds(t *testing.T) {
	fs := newFaceSet(&flakyPack{failAll: true})
	if got := fs.face(48); got != nil {
		t.Fatalf("face = %v, want nil", got)
	}
	if fs.err == nil {
		t.Fatal("failure was not recorded")
	}
	// A nil face must never be cached as if it were usable.
	if got := fs.face(48); got != nil {
		t.Fatalf("second call face = %v, want nil", got)
	}
}

func TestComposeFailsWhenNoFaceBuilds(t *testing.T) {
	c := &Compositor{pack: &flakyPack{failAll: true}}
	if _, err := c.Compose(testSpec("hello")); err == nil {
		t.Fatal("expected error")
	}
}

func TestComposeSurvivesPartialFaceFailure(t *testing.T) {
	// Header faces fail, the default body face builds: the pass completes
	// degraded and reports the recorded failure.
	c := &Compositor{pack: &flakyPack{
		real:      testPack(t),
		failSizes: map[int]bool{headerSideSize: true, headerCenterSize: true},
	}}
	if _, err := c.Compose(testSpec("hello")); err == nil {
		t.Fatal("expected the recorded face error")
	}
}
