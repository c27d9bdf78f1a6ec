package main

import (
	"fmt"
	"io"
	"strings"

	"postcast/internal/pipeline"
	"postcast/internal/state"
	"postcast/internal/textutil"
	"postcast/internal/youtube"
)

func buildRecordRows(entries []state.Entry) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, []string{
			entry.VideoID,
			textutil.Truncate(entry.Record.Title, 45),
			formatStatusLabel(string(entry.Record.Status)),
			formatSteps(entry.Record.Steps),
			entry.Record.ProcessedAt.UTC().Format("2006-01-02 15:04"),
		})
	}
	return rows
}

func buildUploadRows(uploads []youtube.Video, processed func(string) bool) [][]string {
	rows := make([][]string, 0, len(uploads))
	for _, video := range uploads {
		rows = append(rows, []string{
			video.PublishedAt.UTC().Format("2006-01-02"),
			video.ID,
			textutil.Truncate(video.Title, 50),
			yesNo(processed(video.ID)),
		})
	}
	return rows
}

func filterFailed(entries []state.Entry) []state.Entry {
	var failed []state.Entry
	for _, entry := range entries {
		if entry.Record.Status == state.StatusFailed {
			failed = append(failed, entry)
		}
	}
	return failed
}

// formatSteps lists the completed step flags in pipeline order, e.g.
// "transcript,metadata", or "-" when nothing succeeded.
func formatSteps(steps state.Steps) string {
	var done []string
	for _, id := range state.StepOrder {
		if steps.Done(id) {
			done = append(done, string(id))
		}
	}
	if len(done) == 0 {
		return "-"
	}
	return strings.Join(done, ",")
}

func joinSteps(ids []state.StepID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, ",")
}

func formatStatusLabel(status string) string {
	status = strings.TrimSpace(status)
	if status == "" {
		return ""
	}
	parts := strings.Split(status, "_")
	for i, part := range parts {
		lower := strings.ToLower(part)
		if lower == "" {
			continue
		}
		parts[i] = strings.ToUpper(lower[:1]) + lower[1:]
	}
	return strings.Join(parts, " ")
}

func printRecord(out io.Writer, videoID string, rec state.Record) {
	fmt.Fprintf(out, "Video:     %s\n", videoID)
	if rec.Title != "" {
		fmt.Fprintf(out, "Title:     %s\n", rec.Title)
	}
	fmt.Fprintf(out, "Status:    %s\n", formatStatusLabel(string(rec.Status)))
	fmt.Fprintf(out, "Processed: %s\n", rec.ProcessedAt.UTC().Format("2006-01-02 15:04"))
	fmt.Fprintf(out, "Steps:     %s\n", formatSteps(rec.Steps))
	if rec.Error != "" {
		fmt.Fprintf(out, "Error:     %s\n", rec.Error)
	}
	if missing := rec.Steps.Missing(); len(missing) > 0 && !rec.Completed() {
		fmt.Fprintf(out, "Missing:   %s\n", joinSteps(missing))
	}
}

func printProcessResult(out io.Writer, res pipeline.Result) {
	switch {
	case res.Skipped:
		fmt.Fprintf(out, "Video %s is already processed; use --force to repeat it\n", res.VideoID)
	case res.State == pipeline.StateCompleted:
		fmt.Fprintf(out, "Processed %s\n", res.VideoID)
		if res.Title != "" {
			fmt.Fprintf(out, "  Title:    %s\n", res.Title)
		}
		if res.ChapterCount > 0 {
			fmt.Fprintf(out, "  Chapters: %d\n", res.ChapterCount)
		}
	case res.State == pipeline.StateFailed:
		fmt.Fprintf(out, "Processing %s failed; completed steps: %s\n", res.VideoID, formatSteps(res.Steps))
	}
}

func printScanResults(out io.Writer, results []pipeline.Result) {
	if len(results) == 0 {
		fmt.Fprintln(out, "No new uploads since the last check")
		return
	}

	var processed, skipped, failed int
	for _, res := range results {
		switch {
		case res.Skipped:
			skipped++
			fmt.Fprintf(out, "skip  %s (already processed)\n", res.VideoID)
		case res.State == pipeline.StateCompleted:
			processed++
			fmt.Fprintf(out, "done  %s  %s\n", res.VideoID, res.Title)
		default:
			failed++
			fmt.Fprintf(out, "fail  %s\n", res.VideoID)
		}
	}
	fmt.Fprintf(out, "Scan finished: %d processed, %d skipped, %d failed\n", processed, skipped, failed)
}

func printCleared(out io.Writer, cleared []string) {
	if len(cleared) == 0 {
		fmt.Fprintln(out, "No failed records to retry")
		return
	}
	fmt.Fprintf(out, "Cleared %d failed records: %s\n", len(cleared), strings.Join(cleared, ", "))
}
