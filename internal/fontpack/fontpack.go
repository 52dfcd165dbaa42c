// Package fontpack resolves the multi-script font asset used by the
// compositor.
//
// The per-script source fonts are merged once into a single pack file that
// provides glyph fallback across scripts. The pack is a disk cache: safe to
// delete, regenerated on next use, immutable once written.
package fontpack

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/image/font/sfnt"
	"golang.org/x/sync/singleflight"
)

// PackFileName is the merged asset inside the fonts directory.
const PackFileName = "merged.fontpack"

// SourceFonts is the fixed, ordered list of per-script sources. Order is
// load-bearing: glyph lookup falls back through the fonts in this order.
var SourceFonts = []string{
	"NotoSans-Regular.ttf",
	"NotoSansGurmukhi-Regular.ttf",
	"NotoSansDevanagari-Regular.ttf",
}

// FontError reports missing or corrupt font assets. It is fatal for the
// process: rendering correctness depends on the exact merged set, so callers
// must not substitute a different font.
type FontError struct {
	Op  string
	Err error
}

func (e *FontError) Error() string { return fmt.Sprintf("fontpack: %s: %v", e.Op, e.Err) }
func (e *FontError) Unwrap() error { return e.Err }

func fontErr(op string, err error) error {
	return &FontError{Op: op, Err: err}
}

// Pack is a parsed, ordered collection of fonts acting as one
// fallback-capable asset.
type Pack struct {
	fonts []*sfnt.Font
	data  [][]byte
}

// NumFonts returns the number of merged sources.
func (p *Pack) NumFonts() int { return len(p.fonts) }

var (
	ensureFlight singleflight.Group

	cacheMu sync.Mutex
	cache   = map[string]*Pack{}
)

// Ensure returns the merged pack for dir, building and persisting it on
// first use. Concurrent first-time callers are collapsed into a single
// build; the written file is treated as immutable afterwards.
func Ensure(dir string) (*Pack, error) {
	cacheMu.Lock()
	if p, ok := cache[dir]; ok {
		cacheMu.Unlock()
		return p, nil
	}
	cacheMu.Unlock()

	v, err, _ := ensureFlight.Do(dir, func() (any, error) {
		p, err := ensure(dir)
		if err != nil {
			return nil, err
		}
		cacheMu.Lock()
		cache[dir] = p
		cacheMu.Unlock()
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Pack), nil
}

func ensure(dir string) (*Pack, error) {
	path := filepath.Join(dir, PackFileName)
	if _, err := os.Stat(path); err == nil {
		return LoadFile(path)
	}

	blobs := make([][]byte, 0, len(SourceFonts))
	for _, name := range SourceFonts {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fontErr("required source font "+name, err)
		}
		blobs = append(blobs, b)
	}

	p, err := FromBytes(blobs...)
	if err != nil {
		return nil, err
	}
	if err := writePack(path, blobs); err != nil {
		return nil, fontErr("persist merged pack", err)
	}
	return p, nil
}

// LoadFile parses an existing pack file.
func LoadFile(path string) (*Pack, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fontErr("read merged pack", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return nil, fontErr("open merged pack", err)
	}
	if len(zr.File) == 0 {
		return nil, fontErr("open merged pack", errors.New("pack holds no fonts"))
	}
	blobs := make([][]byte, 0, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return nil, fontErr("read packed font "+f.Name, err)
		}
		fb, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return nil, fontErr("read packed font "+f.Name, err)
		}
		blobs = append(blobs, fb)
	}
	return FromBytes(blobs...)
}

// FromBytes builds a pack directly from font bytes, in fallback order.
// The bytes must not be modified while the pack is in use.
func FromBytes(blobs ...[]byte) (*Pack, error) {
	if len(blobs) == 0 {
		return nil, fontErr("parse", errors.New("no fonts given"))
	}
	p := &Pack{
		fonts: make([]*sfnt.Font, 0, len(blobs)),
		data:  append([][]byte(nil), blobs...),
	}
	for i, b := range blobs {
		f, err := sfnt.Parse(b)
		if err != nil {
			return nil, fontErr(fmt.Sprintf("parse font %d", i), err)
		}
		p.fonts = append(p.fonts, f)
	}
	return p, nil
}

// writePack persists the ordered blobs via temp-file rename so a crashed
// writer never leaves a half-written pack behind.
func writePack(path string, blobs [][]byte) error {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for i, b := range blobs {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:   fmt.Sprintf("%02d.ttf", i), // zip entry order is the fallback order
			Method: zip.Store,                  // TTFs gain little from deflate
		})
		if err != nil {
			return err
		}
		if _, err := w.Write(b); err != nil {
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".fontpack-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}
