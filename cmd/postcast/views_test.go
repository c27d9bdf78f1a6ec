package main

import (
	"strings"
	"testing"
	"time"

	"postcast/internal/pipeline"
	"postcast/internal/state"
	"postcast/internal/youtube"
)

func TestFormatSteps(t *testing.T) {
	tests := []struct {
		name  string
		steps state.Steps
		want  string
	}{
		{"none", state.Steps{}, "-"},
		{"partial", state.Steps{Transcript: true, Thumbnail: true}, "transcript,thumbnail"},
		{"all", allSteps(), "transcript,metadata,thumbnail,captions"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatSteps(tt.steps); got != tt.want {
				t.Errorf("formatSteps() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatStatusLabel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"completed", "Completed"},
		{"failed", "Failed"},
		{"transcript_ready", "Transcript Ready"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := formatStatusLabel(tt.in); got != tt.want {
			t.Errorf("formatStatusLabel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPrintProcessResult(t *testing.T) {
	var b strings.Builder
	printProcessResult(&b, pipeline.Result{
		VideoID:      "vid123",
		Title:        "Mejor título",
		State:        pipeline.StateCompleted,
		ChapterCount: 7,
	})
	out := b.String()
	requireContains(t, out, "Processed vid123")
	requireContains(t, out, "Title:    Mejor título")
	requireContains(t, out, "Chapters: 7")

	b.Reset()
	printProcessResult(&b, pipeline.Result{VideoID: "vid123", Skipped: true})
	requireContains(t, b.String(), "already processed")

	b.Reset()
	printProcessResult(&b, pipeline.Result{
		VideoID: "vid123",
		State:   pipeline.StateFailed,
		Steps:   state.Steps{Transcript: true},
	})
	requireContains(t, b.String(), "Processing vid123 failed; completed steps: transcript")
}

func TestPrintScanResults(t *testing.T) {
	var b strings.Builder
	printScanResults(&b, nil)
	requireContains(t, b.String(), "No new uploads since the last check")

	b.Reset()
	printScanResults(&b, []pipeline.Result{
		{VideoID: "aaa", State: pipeline.StateCompleted, Title: "Uno"},
		{VideoID: "bbb", Skipped: true},
		{VideoID: "ccc", State: pipeline.StateFailed},
	})
	out := b.String()
	requireContains(t, out, "done  aaa  Uno")
	requireContains(t, out, "skip  bbb (already processed)")
	requireContains(t, out, "fail  ccc")
	requireContains(t, out, "Scan finished: 1 processed, 1 skipped, 1 failed")
}

func TestBuildUploadRows(t *testing.T) {
	uploads := []youtube.Video{
		{ID: "vid30", Title: "G33K TEAM - S1E30 | Black Friday", PublishedAt: time.Date(2026, 8, 20, 18, 0, 0, 0, time.UTC)},
		{ID: "vid29", Title: "G33K TEAM - S1E29 | Agentes", PublishedAt: time.Date(2026, 7, 15, 18, 0, 0, 0, time.UTC)},
	}
	rows := buildUploadRows(uploads, func(id string) bool { return id == "vid29" })

	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "2026-08-20" || rows[0][1] != "vid30" || rows[0][3] != "no" {
		t.Errorf("unexpected first row: %v", rows[0])
	}
	if rows[1][3] != "yes" {
		t.Errorf("vid29 should be marked processed: %v", rows[1])
	}
}
