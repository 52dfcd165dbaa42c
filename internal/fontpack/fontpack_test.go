package fontpack

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"golang.org/x/image/font/gofont/goregular"
)

// seedSources writes the regular Go font under each required source name,
// giving Ensure a complete directory without shipping Noto files.
func seedSources(t *testing.T, dir string) {
	t.Helper()
	for _, name := range SourceFonts {
		if err := os.WriteFile(filepath.Join(dir, name), goregular.TTF, 0o644); err != nil {
			t.Fatalf("seed %s: %v", name, err)
		}
	}
}

func TestEnsureBuildsAndPersistsPack(t *testing.T) {
	dir := t.TempDir()
	seedSources(t, dir)

	pack, err := Ensure(dir)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if pack.NumFonts() != len(SourceFonts) {
		t.Fatalf("fonts = %d, want %d", pack.NumFonts(), len(SourceFonts))
	}
	if _, err := os.Stat(filepath.Join(dir, PackFileName)); err != nil {
		t.Fatalf("pack file not written: %v", err)
	}
}

func TestEnsureMissingSourceIsFontError(t *testing.T) {
	dir := t.TempDir()
	// Only the first source present.
	if err := os.WriteFile(filepath.Join(dir, SourceFonts[0]), goregular.TTF, 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Ensure(dir)
	if err == nil {
		t.Fatal("expected error")
	}
	var fErr *FontError
	if !errors.As(err, &fErr) {
		t.Fatalf("error type %T: %v", err, err)
	}
}

func TestEnsureLoadsExistingPackWithoutSources(t *testing.T) {
	src := t.TempDir()
	seedSources(t, src)
	if _, err := Ensure(src); err != nil {
		t.Fatalf("build: %v", err)
	}

	// A directory holding only the pack file must load fine: the sources
	// are not needed once the pack exists.
	dst := t.TempDir()
	b, err := os.ReadFile(filepath.Join(src, PackFileName))
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dst, PackFileName), b, 0o644); err != nil {
		t.Fatal(err)
	}

	pack, err := Ensure(dst)
	if err != nil {
		t.Fatalf("ensure from pack: %v", err)
	}
	if pack.NumFonts() != len(SourceFonts) {
		t.Fatalf("fonts = %d, want %d", pack.NumFonts(), len(SourceFonts))
	}
}

func TestEnsureCachesPerDir(t *testing.T) {
	dir := t.TempDir()
	seedSources(t, dir)

	p1, err := Ensure(dir)
	if err != nil {
		t.Fatal(err)
	}
	p2, err := Ensure(dir)
	if err != nil {
		t.Fatal(err)
	}
	if p1 != p2 {
		t.Fatal("second Ensure returned a different pack")
	}
}

func TestEnsureConcurrentFirstBuild(t *testing.T) {
	dir := t.TempDir()
	seedSources(t, dir)

	const n = 8
	packs := make([]*Pack, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := Ensure(dir)
			if err != nil {
				t.Errorf("ensure: %v", err)
				return
			}
			packs[i] = p
		}(i)
	}
	wg.Wait()
	for i := 1; i < n; i++ {
		if packs[i] != packs[0] {
			t.Fatal("concurrent callers received different packs")
		}
	}
}

func TestLoadFileRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, PackFileName)
	if err := os.WriteFile(path, []byte("not a pack"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected error")
	}
}

func TestFromBytesRequiresFonts(t *testing.T) {
	if _, err := FromBytes(); err == nil {
		t.Fatal("expected error")
	}
	if _, err := FromBytes([]byte("junk")); err == nil {
		t.Fatal("expected parse error")
	}
}
