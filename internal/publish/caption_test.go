package publish

import (
	"strings"
	"sync"
	"testing"
)

func TestBuildCaption(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		suffix string
		want   string
	}{
		{
			name:   "text plus custom suffix",
			text:   "hello",
			suffix: "follow us",
			want:   "hello\n\nfollow us",
		},
		{
			name: "default suffix",
			text: "hello",
			want: "hello\n\n" + DefaultCaptionSuffix,
		},
		{
			name:   "empty text is just the suffix",
			text:   "",
			suffix: "follow us",
			want:   "follow us",
		},
		{
			name:   "whitespace trimmed",
			text:   "  padded  ",
			suffix: "s",
			want:   "padded\n\ns",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BuildCaption(tt.text, tt.suffix); got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKeyLockSerializesPerKey(t *testing.T) {
	kl := newKeyLock()

	var mu sync.Mutex
	inside := map[int64]int{}
	peak := map[int64]int{}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := int64(i % 2)
			unlock := kl.lock(key)
			mu.Lock()
			inside[key]++
			if inside[key] > peak[key] {
				peak[key] = inside[key]
			}
			mu.Unlock()

			mu.Lock()
			inside[key]--
			mu.Unlock()
			unlock()
		}(i)
	}
	wg.Wait()

	for key, p := range peak {
		if p != 1 {
			t.Fatalf("key %d reached %d concurrent holders", key, p)
		}
	}
	if len(kl.locks) != 0 {
		t.Fatalf("lock table leaked %d entries", len(kl.locks))
	}
}

func TestDefaultSuffixMentionsAnonymity(t *testing.T) {
	if !strings.Contains(DefaultCaptionSuffix, "anonymous") {
		t.Fatal("disclaimer missing")
	}
}
