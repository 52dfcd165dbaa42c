package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	logx "shoutbox/pkg/logx"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()
	sq, err := Open(Config{Path: filepath.Join(t.TempDir(), "posts.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = sq.Close() })
	return map[string]Store{
		"sqlite": sq,
		"memory": NewMemory(),
	}
}

func mustCreate(t *testing.T, s Store, p *Post) *Post {
	t.Helper()
	if err := s.CreatePost(context.Background(), p); err != nil {
		t.Fatalf("create: %v", err)
	}
	return p
}

func TestCreateAssignsNumbersFromFloor(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			p1 := mustCreate(t, s, &Post{TextContent: "one"})
			p2 := mustCreate(t, s, &Post{TextContent: "two"})

			if p1.PostNumber != FirstPostNumber {
				t.Fatalf("first number = %d, want %d", p1.PostNumber, FirstPostNumber)
			}
			if p2.PostNumber != FirstPostNumber+1 {
				t.Fatalf("second number = %d", p2.PostNumber)
			}
			if p1.ID == 0 || p1.ID == p2.ID {
				t.Fatalf("ids: %d, %d", p1.ID, p2.ID)
			}

			got, err := s.GetPost(ctx, p1.ID)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if got.Status != StatusScheduled || got.TextContent != "one" {
				t.Fatalf("got %+v", got)
			}
		})
	}
}

func TestGetPostNotFound(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.GetPost(context.Background(), 9999); !errors.Is(err, ErrNotFound) {
				t.Fatalf("err = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestStatusAndArtifactUpdates(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			p := mustCreate(t, s, &Post{TextContent: "x"})

			if err := s.SetStatus(ctx, p.ID, StatusProcessing); err != nil {
				t.Fatalf("set status: %v", err)
			}
			url, err := s.SetArtifact(ctx, p.ID, "https://cdn.example/posts/a.png")
			if err != nil {
				t.Fatalf("set artifact: %v", err)
			}
			if url != "https://cdn.example/posts/a.png" {
				t.Fatalf("effective url = %q", url)
			}

			// A second artifact commit loses to the first.
			url, err = s.SetArtifact(ctx, p.ID, "https://cdn.example/posts/b.png")
			if err != nil {
				t.Fatal(err)
			}
			if url != "https://cdn.example/posts/a.png" {
				t.Fatalf("first-writer-wins violated: %q", url)
			}

			got, err := s.GetPost(ctx, p.ID)
			if err != nil {
				t.Fatal(err)
			}
			if got.Status != StatusProcessing || got.ImageURL != "https://cdn.example/posts/a.png" {
				t.Fatalf("got %+v", got)
			}

			if err := s.SetStatus(ctx, 9999, StatusFailed); !errors.Is(err, ErrNotFound) {
				t.Fatalf("missing id err = %v", err)
			}
			if _, err := s.SetArtifact(ctx, 9999, "u"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("missing id artifact err = %v", err)
			}
		})
	}
}

func TestCommitPublishedFirstWins(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			p := mustCreate(t, s, &Post{TextContent: "x"})

			won, err := s.CommitPublished(ctx, p.ID, "media-1", time.Now())
			if err != nil || !won {
				t.Fatalf("first commit: won=%v err=%v", won, err)
			}
			won, err = s.CommitPublished(ctx, p.ID, "media-2", time.Now())
			if err != nil {
				t.Fatal(err)
			}
			if won {
				t.Fatal("second commit must lose")
			}

			got, err := s.GetPost(ctx, p.ID)
			if err != nil {
				t.Fatal(err)
			}
			if got.Status != StatusPublished || got.MediaID != "media-1" {
				t.Fatalf("got %+v", got)
			}
			if got.PostedAt == nil {
				t.Fatal("posted_at not set")
			}
		})
	}
}

func TestCommitPublishedClearsPriorFailure(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			p := mustCreate(t, s, &Post{TextContent: "x"})

			if _, err := s.CommitFailed(ctx, p.ID, "boom", 500); err != nil {
				t.Fatal(err)
			}
			won, err := s.CommitPublished(ctx, p.ID, "media-9", time.Now())
			if err != nil || !won {
				t.Fatalf("won=%v err=%v", won, err)
			}

			got, err := s.GetPost(ctx, p.ID)
			if err != nil {
				t.Fatal(err)
			}
			if got.APIError != "" || got.APIStatus != 0 {
				t.Fatalf("failure not cleared: %+v", got)
			}
		})
	}
}

func TestCommitFailedNeverDowngradesPublished(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			p := mustCreate(t, s, &Post{TextContent: "x"})

			if _, err := s.CommitPublished(ctx, p.ID, "media-1", time.Now()); err != nil {
				t.Fatal(err)
			}
			committed, err := s.CommitFailed(ctx, p.ID, "late failure", 500)
			if err != nil {
				t.Fatal(err)
			}
			if committed {
				t.Fatal("failure overwrote a published post")
			}

			got, _ := s.GetPost(ctx, p.ID)
			if got.Status != StatusPublished || got.MediaID != "media-1" {
				t.Fatalf("got %+v", got)
			}
		})
	}
}

func TestDueScheduled(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			now := time.Now()
			past := now.Add(-time.Hour)
			soon := now.Add(time.Minute)
			far := now.Add(time.Hour)

			due := mustCreate(t, s, &Post{TextContent: "due", ScheduledAt: &past})
			withinTol := mustCreate(t, s, &Post{TextContent: "soon", ScheduledAt: &soon})
			mustCreate(t, s, &Post{TextContent: "far", ScheduledAt: &far})
			mustCreate(t, s, &Post{TextContent: "unscheduled"})

			ids, err := s.DueScheduled(ctx, now, 2*time.Minute, 10)
			if err != nil {
				t.Fatal(err)
			}
			if len(ids) != 2 {
				t.Fatalf("ids = %v", ids)
			}
			seen := map[int64]bool{ids[0]: true, ids[1]: true}
			if !seen[due.ID] || !seen[withinTol.ID] {
				t.Fatalf("ids = %v, want %d and %d", ids, due.ID, withinTol.ID)
			}

			// Published posts drop out of the due set.
			if _, err := s.CommitPublished(ctx, due.ID, "m", time.Now()); err != nil {
				t.Fatal(err)
			}
			ids, err = s.DueScheduled(ctx, now, 2*time.Minute, 10)
			if err != nil {
				t.Fatal(err)
			}
			if len(ids) != 1 || ids[0] != withinTol.ID {
				t.Fatalf("ids = %v", ids)
			}
		})
	}
}

func TestStaleProcessing(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			stuck := mustCreate(t, s, &Post{TextContent: "stuck"})
			fresh := mustCreate(t, s, &Post{TextContent: "fresh"})

			if err := s.SetStatus(ctx, stuck.ID, StatusProcessing); err != nil {
				t.Fatal(err)
			}
			if err := s.SetStatus(ctx, fresh.ID, StatusProcessing); err != nil {
				t.Fatal(err)
			}

			// A cutoff in the future catches both; one in the past catches none.
			ids, err := s.StaleProcessing(ctx, time.Now().Add(time.Minute), 10)
			if err != nil {
				t.Fatal(err)
			}
			if len(ids) != 2 {
				t.Fatalf("ids = %v", ids)
			}
			ids, err = s.StaleProcessing(ctx, time.Now().Add(-time.Hour), 10)
			if err != nil {
				t.Fatal(err)
			}
			if len(ids) != 0 {
				t.Fatalf("ids = %v", ids)
			}
		})
	}
}

func TestNextPostNumberRespectsExisting(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			n, err := s.NextPostNumber(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if n != FirstPostNumber {
				t.Fatalf("empty store: %d", n)
			}

			mustCreate(t, s, &Post{TextContent: "x", PostNumber: 3000})
			n, err = s.NextPostNumber(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if n != 3001 {
				t.Fatalf("n = %d, want 3001", n)
			}
		})
	}
}

func TestRoundTripFields(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			sched := time.Now().Add(time.Hour).Truncate(time.Millisecond)
			p := mustCreate(t, s, &Post{
				Author:      "someone",
				TextContent: "clean text",
				RawMarkup:   "<b>clean</b> text",
				ScheduledAt: &sched,
			})

			got, err := s.GetPost(ctx, p.ID)
			if err != nil {
				t.Fatal(err)
			}
			if got.Author != "someone" || got.RawMarkup != "<b>clean</b> text" {
				t.Fatalf("got %+v", got)
			}
			if got.ScheduledAt == nil || !got.ScheduledAt.Equal(sched) {
				t.Fatalf("scheduled_at = %v, want %v", got.ScheduledAt, sched)
			}
			if got.CreatedAt.IsZero() {
				t.Fatal("created_at not set")
			}
		})
	}
}

func TestDueScheduledAcrossTimeZones(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			east := time.FixedZone("UTC+14", 14*60*60)
			west := time.FixedZone("UTC-11", -11*60*60)
			now := time.Now()

			// Both posts are an hour overdue; only the offsets differ.
			// Stored timestamps must compare by instant, not by the local
			// clock reading.
			pastEast := now.Add(-time.Hour).In(east)
			pastWest := now.Add(-time.Hour).In(west)
			a := mustCreate(t, s, &Post{TextContent: "east", ScheduledAt: &pastEast})
			b := mustCreate(t, s, &Post{TextContent: "west", ScheduledAt: &pastWest})

			future := now.Add(time.Hour).In(east)
			mustCreate(t, s, &Post{TextContent: "future", ScheduledAt: &future})

			ids, err := s.DueScheduled(ctx, now.In(west), 0, 10)
			if err != nil {
				t.Fatal(err)
			}
			seen := map[int64]bool{}
			for _, id := range ids {
				seen[id] = true
			}
			if len(ids) != 2 || !seen[a.ID] || !seen[b.ID] {
				t.Fatalf("ids = %v, want %d and %d", ids, a.ID, b.ID)
			}

			got, err := s.GetPost(ctx, a.ID)
			if err != nil {
				t.Fatal(err)
			}
			if got.ScheduledAt == nil || !got.ScheduledAt.Equal(pastEast) {
				t.Fatalf("scheduled_at = %v, want instant %v", got.ScheduledAt, pastEast)
			}
		})
	}
}
