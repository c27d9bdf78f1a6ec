package transcript

import (
	"fmt"
	"strings"
	"time"

	"postcast/internal/services"
)

// Segment is one timed snippet of a video transcript.
type Segment struct {
	Start    time.Duration
	Duration time.Duration
	Text     string
}

// End returns the segment's end time. Segments without a duration get a two
// second display window, matching how the caption tracks are rendered.
func (s Segment) End() time.Duration {
	d := s.Duration
	if d <= 0 {
		d = 2 * time.Second
	}
	return s.Start + d
}

// Transcript is a fetched caption track for one video.
type Transcript struct {
	VideoID   string
	Language  string
	Generated bool // true when the track is speech-recognition output
	Segments  []Segment
}

// PlainText returns the transcript as plain text, one segment per line.
func (t *Transcript) PlainText() string {
	lines := make([]string, 0, len(t.Segments))
	for _, seg := range t.Segments {
		lines = append(lines, seg.Text)
	}
	return strings.Join(lines, "\n")
}

// TimedLines renders the transcript as "[M:SS] text" lines, sampling roughly
// one line per interval so long episodes stay within prompt budgets.
func (t *Transcript) TimedLines(interval time.Duration) string {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	var b strings.Builder
	var threshold time.Duration
	for _, seg := range t.Segments {
		if seg.Start < threshold {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteByte('[')
		b.WriteString(FormatTimestamp(seg.Start))
		b.WriteString("] ")
		b.WriteString(seg.Text)
		threshold += interval
	}
	return b.String()
}

// ToSRT renders the transcript as an SRT caption file.
func (t *Transcript) ToSRT() string {
	var b strings.Builder
	for i, seg := range t.Segments {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n",
			i+1, srtTimestamp(seg.Start), srtTimestamp(seg.End()), seg.Text)
	}
	return b.String()
}

// TotalDuration returns the span from the first segment to the end of the
// last one.
func (t *Transcript) TotalDuration() time.Duration {
	if len(t.Segments) == 0 {
		return 0
	}
	return t.Segments[len(t.Segments)-1].End() - t.Segments[0].Start
}

// WordCount counts the words across all segments.
func (t *Transcript) WordCount() int {
	count := 0
	for _, seg := range t.Segments {
		count += len(strings.Fields(seg.Text))
	}
	return count
}

// Validate checks that the transcript is substantial enough to feed the
// generation steps. Very short transcripts usually mean the track was cut
// off mid-generation.
func (t *Transcript) Validate(minChars int) error {
	if len(t.Segments) == 0 {
		return services.Wrap(services.ErrValidation, "transcript", "validate", "transcript has no segments", nil)
	}
	if chars := len(t.PlainText()); chars < minChars {
		return services.Wrap(services.ErrValidation, "transcript", "validate",
			fmt.Sprintf("transcript too short: %d chars, need at least %d", chars, minChars), nil)
	}
	return nil
}

// FormatTimestamp renders a duration as M:SS, or H:MM:SS past the first
// hour. This is the timestamp style used in video descriptions.
func FormatTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Second)
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}

// srtTimestamp renders a duration in the HH:MM:SS,mmm form SRT requires.
func srtTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	ms := d.Milliseconds()
	hours := ms / 3_600_000
	minutes := (ms % 3_600_000) / 60_000
	seconds := (ms % 60_000) / 1000
	millis := ms % 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, seconds, millis)
}
