package state

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.json")
	store, err := Open(path, nil, opts...)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestMarkProcessedRoundTrip(t *testing.T) {
	store := newTestStore(t)

	if err := store.MarkProcessed("abc123", allSteps(), "Episode 42", ""); err != nil {
		t.Fatalf("MarkProcessed failed: %v", err)
	}

	rec, ok := store.VideoState("abc123")
	if !ok {
		t.Fatal("VideoState did not find the record")
	}
	if rec.Title != "Episode 42" {
		t.Errorf("Title: got %q, want %q", rec.Title, "Episode 42")
	}
	if rec.Status != StatusCompleted {
		t.Errorf("Status: got %q, want %q", rec.Status, StatusCompleted)
	}
	if !rec.Steps.Completed() {
		t.Error("all step flags should be true")
	}
	if rec.Error != "" {
		t.Errorf("completed record should carry no error, got %q", rec.Error)
	}
	if rec.ProcessedAt.IsZero() {
		t.Error("ProcessedAt should be stamped")
	}
	if rec.ProcessedAt.Location() != time.UTC {
		t.Errorf("ProcessedAt should be UTC, got %v", rec.ProcessedAt.Location())
	}
}

func TestIsProcessedOnlyForCompletedRecords(t *testing.T) {
	store := newTestStore(t)

	if store.IsProcessed("unknown") {
		t.Error("unknown video should not be processed")
	}

	if err := store.MarkProcessed("partial", Steps{Transcript: true}, "Partial", "chapter generation failed"); err != nil {
		t.Fatalf("MarkProcessed failed: %v", err)
	}
	if store.IsProcessed("partial") {
		t.Error("failed video should not count as processed")
	}

	if err := store.MarkProcessed("done", allSteps(), "Done", ""); err != nil {
		t.Fatalf("MarkProcessed failed: %v", err)
	}
	if !store.IsProcessed("done") {
		t.Error("completed video should count as processed")
	}

	// Read-only queries must not change the answer.
	for i := 0; i < 3; i++ {
		if !store.IsProcessed("done") || store.IsProcessed("partial") {
			t.Fatal("IsProcessed answer changed across repeated calls")
		}
	}
}

func TestMarkProcessedReplacesPreviousRecord(t *testing.T) {
	store := newTestStore(t)

	if err := store.MarkProcessed("abc123", Steps{Transcript: true}, "Draft", "thumbnail upload failed"); err != nil {
		t.Fatalf("MarkProcessed failed: %v", err)
	}
	rec, _ := store.VideoState("abc123")
	if rec.Status != StatusFailed || rec.Error == "" {
		t.Fatalf("first record should be failed with error, got %+v", rec)
	}

	if err := store.MarkProcessed("abc123", allSteps(), "Final", "stale error text"); err != nil {
		t.Fatalf("MarkProcessed failed: %v", err)
	}
	rec, _ = store.VideoState("abc123")
	if rec.Status != StatusCompleted {
		t.Errorf("Status: got %q, want %q", rec.Status, StatusCompleted)
	}
	if rec.Title != "Final" {
		t.Errorf("Title: got %q, want %q", rec.Title, "Final")
	}
	if rec.Error != "" {
		t.Errorf("completed record must drop error text, got %q", rec.Error)
	}
}

func TestMarkProcessedRejectsEmptyVideoID(t *testing.T) {
	store := newTestStore(t)

	if err := store.MarkProcessed("  ", allSteps(), "Title", ""); err == nil {
		t.Error("blank video ID should be rejected")
	}
}

func TestReprocessingDowngradesCompletedVideo(t *testing.T) {
	store := newTestStore(t)

	if err := store.MarkProcessed("abc123", allSteps(), "Episodio 42", ""); err != nil {
		t.Fatalf("MarkProcessed failed: %v", err)
	}
	if !store.IsProcessed("abc123") {
		t.Fatal("completed video should count as processed")
	}

	if err := store.MarkProcessed("abc123", Steps{Transcript: true}, "Episodio 42", "metadata: model unavailable"); err != nil {
		t.Fatalf("MarkProcessed failed: %v", err)
	}
	if store.IsProcessed("abc123") {
		t.Error("downgraded video should no longer count as processed")
	}
	failed := store.FailedVideos()
	if len(failed) != 1 || failed[0] != "abc123" {
		t.Errorf("FailedVideos: got %v, want [abc123]", failed)
	}
	rec, _ := store.VideoState("abc123")
	if rec.Error != "metadata: model unavailable" {
		t.Errorf("Error: got %q, want the metadata failure", rec.Error)
	}
}

func TestFailedVideosSorted(t *testing.T) {
	store := newTestStore(t)

	for _, id := range []string{"zzz", "aaa", "mmm"} {
		if err := store.MarkProcessed(id, Steps{}, "", "boom"); err != nil {
			t.Fatalf("MarkProcessed failed: %v", err)
		}
	}
	if err := store.MarkProcessed("ok1", allSteps(), "", ""); err != nil {
		t.Fatalf("MarkProcessed failed: %v", err)
	}

	got := store.FailedVideos()
	want := []string{"aaa", "mmm", "zzz"}
	if len(got) != len(want) {
		t.Fatalf("failed count: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("failed[%d]: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRetryFailedRemovesExactlyFailedRecords(t *testing.T) {
	store := newTestStore(t)

	if err := store.MarkProcessed("keep", allSteps(), "Keep", ""); err != nil {
		t.Fatalf("MarkProcessed failed: %v", err)
	}
	for _, id := range []string{"bad2", "bad1"} {
		if err := store.MarkProcessed(id, Steps{Transcript: true}, "", "api error"); err != nil {
			t.Fatalf("MarkProcessed failed: %v", err)
		}
	}

	removed, err := store.RetryFailed()
	if err != nil {
		t.Fatalf("RetryFailed failed: %v", err)
	}
	want := []string{"bad1", "bad2"}
	if len(removed) != len(want) {
		t.Fatalf("removed count: got %d, want %d", len(removed), len(want))
	}
	for i := range want {
		if removed[i] != want[i] {
			t.Errorf("removed[%d]: got %q, want %q", i, removed[i], want[i])
		}
	}

	if _, ok := store.VideoState("bad1"); ok {
		t.Error("bad1 should be gone after RetryFailed")
	}
	if _, ok := store.VideoState("bad2"); ok {
		t.Error("bad2 should be gone after RetryFailed")
	}
	if !store.IsProcessed("keep") {
		t.Error("completed record must survive RetryFailed")
	}

	// Second pass with nothing to do leaves the store unchanged.
	removed, err = store.RetryFailed()
	if err != nil {
		t.Fatalf("RetryFailed failed: %v", err)
	}
	if len(removed) != 0 {
		t.Errorf("second RetryFailed should remove nothing, got %v", removed)
	}
	if stats := store.Statistics(); stats.Total != 1 {
		t.Errorf("Total: got %d, want 1", stats.Total)
	}
}

func TestUpdateLastCheck(t *testing.T) {
	fixed := time.Date(2024, 6, 1, 12, 30, 0, 0, time.UTC)
	store := newTestStore(t, WithClock(func() time.Time { return fixed }))

	if _, ok := store.LastCheck(); ok {
		t.Error("fresh store should have no last check")
	}
	if err := store.UpdateLastCheck(); err != nil {
		t.Fatalf("UpdateLastCheck failed: %v", err)
	}
	got, ok := store.LastCheck()
	if !ok {
		t.Fatal("LastCheck should be set")
	}
	if !got.Equal(fixed) {
		t.Errorf("LastCheck: got %v, want %v", got, fixed)
	}
}

func TestStatistics(t *testing.T) {
	store := newTestStore(t)

	stats := store.Statistics()
	if stats.Total != 0 || stats.SuccessRate != 0 {
		t.Errorf("empty store stats: got %+v", stats)
	}

	if err := store.MarkProcessed("a", allSteps(), "", ""); err != nil {
		t.Fatalf("MarkProcessed failed: %v", err)
	}
	if err := store.MarkProcessed("b", allSteps(), "", ""); err != nil {
		t.Fatalf("MarkProcessed failed: %v", err)
	}
	if err := store.MarkProcessed("c", Steps{}, "", "failed"); err != nil {
		t.Fatalf("MarkProcessed failed: %v", err)
	}

	stats = store.Statistics()
	if stats.Total != 3 || stats.Completed != 2 || stats.Failed != 1 {
		t.Errorf("stats: got %+v", stats)
	}
	if want := float64(2) / float64(3) * 100; stats.SuccessRate != want {
		t.Errorf("SuccessRate: got %v, want %v", stats.SuccessRate, want)
	}
}

func TestCleanOldEntriesBoundary(t *testing.T) {
	current := time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC)
	store := newTestStore(t, WithClock(func() time.Time { return current }))

	if err := store.MarkProcessed("old", allSteps(), "Old", ""); err != nil {
		t.Fatalf("MarkProcessed failed: %v", err)
	}
	current = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := store.MarkProcessed("edge", allSteps(), "Edge", ""); err != nil {
		t.Fatalf("MarkProcessed failed: %v", err)
	}
	current = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	if err := store.MarkProcessed("recent", allSteps(), "Recent", ""); err != nil {
		t.Fatalf("MarkProcessed failed: %v", err)
	}

	// Cutoff lands exactly on 2024-01-01T00:00:00Z.
	current = time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	removed, err := store.CleanOldEntries(30)
	if err != nil {
		t.Fatalf("CleanOldEntries failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed: got %d, want 1", removed)
	}
	if _, ok := store.VideoState("old"); ok {
		t.Error("record older than cutoff should be removed")
	}
	if _, ok := store.VideoState("edge"); !ok {
		t.Error("record exactly at cutoff should be retained")
	}
	if _, ok := store.VideoState("recent"); !ok {
		t.Error("record newer than cutoff should be retained")
	}
}

func TestCleanOldEntriesRejectsNonPositiveDays(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.CleanOldEntries(0); err == nil {
		t.Error("zero days should be rejected")
	}
	if _, err := store.CleanOldEntries(-1); err == nil {
		t.Error("negative days should be rejected")
	}
}

func TestStateSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	store, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := store.MarkProcessed("abc123", allSteps(), "Episodio 7", ""); err != nil {
		t.Fatalf("MarkProcessed failed: %v", err)
	}
	if err := store.UpdateLastCheck(); err != nil {
		t.Fatalf("UpdateLastCheck failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := Open(path, nil)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	if !reopened.IsProcessed("abc123") {
		t.Error("completed record should survive reopen")
	}
	rec, ok := reopened.VideoState("abc123")
	if !ok || rec.Title != "Episodio 7" {
		t.Errorf("record after reopen: got %+v", rec)
	}
	if _, ok := reopened.LastCheck(); !ok {
		t.Error("last check should survive reopen")
	}
}

func TestStateFileIsIndentedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	store, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer store.Close()

	if err := store.MarkProcessed("abc123", allSteps(), "Title", ""); err != nil {
		t.Fatalf("MarkProcessed failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read state file: %v", err)
	}
	text := string(data)
	for _, key := range []string{`"last_check"`, `"processed_videos"`, `"abc123"`, `"transcript": true`} {
		if !strings.Contains(text, key) {
			t.Errorf("state file missing %s:\n%s", key, text)
		}
	}
	if !strings.Contains(text, "\n  ") {
		t.Error("state file should be indented")
	}
	if !strings.HasSuffix(text, "\n") {
		t.Error("state file should end with a newline")
	}
}

func TestOpenToleratesCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	store, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open should tolerate corrupt file, got %v", err)
	}
	defer store.Close()

	if stats := store.Statistics(); stats.Total != 0 {
		t.Errorf("corrupt file should yield empty store, got %+v", stats)
	}
	if err := store.MarkProcessed("fresh", allSteps(), "", ""); err != nil {
		t.Fatalf("MarkProcessed after corrupt load failed: %v", err)
	}
}

func TestOpenMissingFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "state.json")

	store, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer store.Close()

	if stats := store.Statistics(); stats.Total != 0 {
		t.Errorf("missing file should yield empty store, got %+v", stats)
	}
}

func TestOpenRefusesSecondHolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	first, err := Open(path, nil)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	defer first.Close()

	if _, err := Open(path, nil); err == nil {
		t.Fatal("second Open should fail while the lock is held")
	} else if !strings.Contains(err.Error(), "another postcast process") {
		t.Errorf("lock error should name the cause, got %v", err)
	}
}

func TestEntriesNewestFirst(t *testing.T) {
	current := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	store := newTestStore(t, WithClock(func() time.Time { return current }))

	if err := store.MarkProcessed("first", allSteps(), "", ""); err != nil {
		t.Fatalf("MarkProcessed failed: %v", err)
	}
	current = current.Add(time.Hour)
	if err := store.MarkProcessed("second", allSteps(), "", ""); err != nil {
		t.Fatalf("MarkProcessed failed: %v", err)
	}

	entries := store.Entries()
	if len(entries) != 2 {
		t.Fatalf("entry count: got %d, want 2", len(entries))
	}
	if entries[0].VideoID != "second" || entries[1].VideoID != "first" {
		t.Errorf("entries should be newest first, got %q then %q", entries[0].VideoID, entries[1].VideoID)
	}
}
