package render

import "shoutbox/internal/fontpack"

// facePack builds faces at a given pixel size. Satisfied by *fontpack.Pack;
// layout tests substitute failing implementations.
type facePack interface {
	NewFace(size float64) (*fontpack.Face, error)
}

// faceSet lazily builds and caches one fallback face per font size for a
// single compose pass. It implements Measurer for the wrap engine.
//
// The first face must be built through face() before any drawing starts;
// once one face exists, later failures degrade to it instead of returning
// nil. Not safe for concurrent use; each Compose call owns its own set.
type faceSet struct {
	pack  facePack
	faces map[int]*fontpack.Face
	err   error
}

func newFaceSet(pack facePack) *faceSet {
	return &faceSet{pack: pack, faces: make(map[int]*fontpack.Face, 4)}
}

func (fs *faceSet) face(size int) *fontpack.Face {
	if size <= 0 {
		size = 1
	}
	if f, ok := fs.faces[size]; ok {
		return f
	}
	f, err := fs.pack.NewFace(float64(size))
	if err != nil {
		if fs.err == nil {
			fs.err = err
		}
		// Degrade to an already built face rather than crash mid-layout;
		// the recorded error surfaces after the pass. With nothing built
		// yet there is nothing to degrade to, and the caller must stop.
		for _, cached := range fs.faces {
			return cached
		}
		return nil
	}
	fs.faces[size] = f
	return f
}

func (fs *faceSet) Advance(text string, size int, bold bool) float64 {
	_ = bold // the wrap engine applies its own bold fudge
	return fixedToFloat(fs.face(size).Advance(text))
}

func (fs *faceSet) LineHeight(size int) int {
	return fs.face(size).LineHeight()
}

func (fs *faceSet) Close() {
	for _, f := range fs.faces {
		_ = f.Close()
	}
}
