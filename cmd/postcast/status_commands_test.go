package main

import (
	"strings"
	"testing"
	"time"

	"postcast/internal/state"
)

func TestStatusShowsCompletedRecord(t *testing.T) {
	env := setupCLITestEnv(t)
	withStoreFile(t, env, nil, func(store *state.Store) {
		if err := store.MarkProcessed("abc123", allSteps(), "Black Friday e IA", ""); err != nil {
			t.Fatalf("MarkProcessed: %v", err)
		}
	})

	stdout, _, err := runCLI(t, []string{"status", "abc123"}, env.configPath)
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	requireContains(t, stdout, "Video:     abc123")
	requireContains(t, stdout, "Title:     Black Friday e IA")
	requireContains(t, stdout, "Status:    Completed")
	requireContains(t, stdout, "Steps:     transcript,metadata,thumbnail,captions")
	if strings.Contains(stdout, "Missing:") {
		t.Fatalf("completed record should not list missing steps:\n%s", stdout)
	}
}

func TestStatusShowsFailedRecordWithMissingSteps(t *testing.T) {
	env := setupCLITestEnv(t)
	withStoreFile(t, env, nil, func(store *state.Store) {
		steps := state.Steps{Transcript: true}
		if err := store.MarkProcessed("bad111", steps, "Episodio roto", "metadata: model unavailable"); err != nil {
			t.Fatalf("MarkProcessed: %v", err)
		}
	})

	stdout, _, err := runCLI(t, []string{"status", "bad111"}, env.configPath)
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	requireContains(t, stdout, "Status:    Failed")
	requireContains(t, stdout, "Error:     metadata: model unavailable")
	requireContains(t, stdout, "Missing:   metadata,thumbnail,captions")
}

func TestStatusUnknownVideo(t *testing.T) {
	env := setupCLITestEnv(t)

	stdout, _, err := runCLI(t, []string{"status", "nope"}, env.configPath)
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	requireContains(t, stdout, "No record for nope")
}

func TestListOrdersNewestFirst(t *testing.T) {
	env := setupCLITestEnv(t)
	older := time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)

	withStoreFile(t, env, []state.Option{state.WithClock(func() time.Time { return older })}, func(store *state.Store) {
		if err := store.MarkProcessed("old111", allSteps(), "Hackathons", ""); err != nil {
			t.Fatalf("MarkProcessed: %v", err)
		}
	})
	withStoreFile(t, env, []state.Option{state.WithClock(func() time.Time { return newer })}, func(store *state.Store) {
		if err := store.MarkProcessed("new222", state.Steps{Transcript: true}, "Agentes", "chapters failed"); err != nil {
			t.Fatalf("MarkProcessed: %v", err)
		}
	})

	stdout, _, err := runCLI(t, []string{"list"}, env.configPath)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	requireContains(t, stdout, "old111")
	requireContains(t, stdout, "new222")
	requireContains(t, stdout, "2026-08-20 10:00")
	if strings.Index(stdout, "new222") > strings.Index(stdout, "old111") {
		t.Fatalf("expected new222 before old111:\n%s", stdout)
	}
}

func TestListFailedFilter(t *testing.T) {
	env := setupCLITestEnv(t)
	withStoreFile(t, env, nil, func(store *state.Store) {
		if err := store.MarkProcessed("good11", allSteps(), "Completado", ""); err != nil {
			t.Fatalf("MarkProcessed: %v", err)
		}
		if err := store.MarkProcessed("bad222", state.Steps{}, "Roto", "boom"); err != nil {
			t.Fatalf("MarkProcessed: %v", err)
		}
	})

	stdout, _, err := runCLI(t, []string{"list", "--failed"}, env.configPath)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	requireContains(t, stdout, "bad222")
	if strings.Contains(stdout, "good11") {
		t.Fatalf("completed record should be filtered out:\n%s", stdout)
	}
}

func TestListEmptyStore(t *testing.T) {
	env := setupCLITestEnv(t)

	stdout, _, err := runCLI(t, []string{"list"}, env.configPath)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	requireContains(t, stdout, "No processing records")
}

func TestStatsSummarizesStore(t *testing.T) {
	env := setupCLITestEnv(t)
	mark := time.Date(2026, 8, 24, 6, 30, 0, 0, time.UTC)
	withStoreFile(t, env, []state.Option{state.WithClock(func() time.Time { return mark })}, func(store *state.Store) {
		if err := store.MarkProcessed("vid001", allSteps(), "Uno", ""); err != nil {
			t.Fatalf("MarkProcessed: %v", err)
		}
		if err := store.MarkProcessed("vid002", allSteps(), "Dos", ""); err != nil {
			t.Fatalf("MarkProcessed: %v", err)
		}
		if err := store.MarkProcessed("vid003", state.Steps{}, "Tres", "boom"); err != nil {
			t.Fatalf("MarkProcessed: %v", err)
		}
		if err := store.UpdateLastCheck(); err != nil {
			t.Fatalf("UpdateLastCheck: %v", err)
		}
	})

	stdout, _, err := runCLI(t, []string{"stats"}, env.configPath)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	requireContains(t, stdout, "Total")
	requireContains(t, stdout, "66.7%")
	requireContains(t, stdout, "2026-08-24 06:30")
}
