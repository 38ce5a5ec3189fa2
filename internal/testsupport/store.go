package testsupport

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"shortsfactory/internal/config"
	"shortsfactory/internal/records"
)

// MustOpenStore opens a records.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *records.Store {
	t.Helper()

	store, err := records.Open(cfg)
	if err != nil {
		t.Fatalf("records.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewVideo writes a small work file and inserts a collected record for it.
func NewVideo(t testing.TB, store *records.Store, cfg *config.Config, id, title string) *records.Video {
	t.Helper()

	path := filepath.Join(cfg.Paths.WorkDir(), id+".mp4")
	WriteFile(t, path, 2048)
	inserted, err := store.InsertIfAbsent(context.Background(), id, path, title)
	if err != nil {
		t.Fatalf("store.InsertIfAbsent: %v", err)
	}
	if !inserted {
		t.Fatalf("store.InsertIfAbsent: %s already exists", id)
	}
	return MustGet(t, store, id)
}

// AdvanceTo drives a record through claim and commit until it reaches target.
// Transcribed records get the given transcript; artifacts keep the current path.
func AdvanceTo(t testing.TB, store *records.Store, id string, target records.Status, transcript records.Transcript) *records.Video {
	t.Helper()

	ctx := context.Background()
	for {
		video := MustGet(t, store, id)
		if video.Status == target {
			return video
		}
		next, ok := records.AllowedNext(video.Status)
		if !ok || next == records.StatusDeleted {
			t.Fatalf("cannot advance %s from %s to %s", id, video.Status, target)
		}
		token := "testsupport-" + id
		var claim *records.Claim
		var err error
		if next == records.StatusPublished {
			charge := records.QuotaCharge{Date: store.Today(time.Now()), Max: 1 << 20}
			claim, err = store.ClaimByIDWithQuota(ctx, id, video.Status, token, charge)
		} else {
			claim, err = store.ClaimByID(ctx, id, video.Status, token)
		}
		if err != nil || claim == nil {
			t.Fatalf("claim %s from %s: %v", id, video.Status, err)
		}
		tr := records.Transition{Claim: claim, To: next}
		switch next {
		case records.StatusTranscribed:
			encoded, err := transcript.Encode()
			if err != nil {
				t.Fatalf("encode transcript: %v", err)
			}
			tr.Transcription = &encoded
		case records.StatusPublished:
			now := time.Now()
			tr.PublishedAt = &now
		}
		if err := store.Commit(ctx, tr); err != nil {
			t.Fatalf("commit %s -> %s: %v", id, next, err)
		}
	}
}

// MustGet fetches a record that must exist.
func MustGet(t testing.TB, store *records.Store, id string) *records.Video {
	t.Helper()

	video, err := store.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("store.GetByID: %v", err)
	}
	if video == nil {
		t.Fatalf("record %s not found", id)
	}
	return video
}
