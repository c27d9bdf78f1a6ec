package newsletter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Episode is one digest entry. The JSON field names are the sidecar's
// published schema and are consumed by external newsletter tooling.
type Episode struct {
	Number  int    `json:"episodio"`
	Date    string `json:"fecha"`
	Title   string `json:"titulo"`
	VideoID string `json:"video_id"`
	Summary string `json:"resumen"`
}

// Digest is the result of one newsletter run.
type Digest struct {
	Episodes []Episode
	Markdown string
	// MarkdownPath and JSONPath point at the written digest files.
	MarkdownPath string
	JSONPath     string
	// Skipped counts episodes left out because their transcript or
	// summary failed.
	Skipped int
}

func renderMarkdown(show string, episodes []Episode, generated time.Time) string {
	var b strings.Builder

	heading := "# Newsletter"
	if show != "" {
		heading = "# Newsletter de " + show
	}
	b.WriteString(heading + "\n\n")
	fmt.Fprintf(&b, "_Generado el %s con %d episodios._\n", generated.Format("2006-01-02"), len(episodes))

	for _, ep := range episodes {
		fmt.Fprintf(&b, "\n## Episodio %d: %s\n\n", ep.Number, headline(ep.Title, show))
		fmt.Fprintf(&b, "_%s_ · https://www.youtube.com/watch?v=%s\n\n", ep.Date, ep.VideoID)
		b.WriteString(ep.Summary + "\n")
	}
	return b.String()
}

// headline drops the "SHOW - S1E30 | " style prefix from a title so the
// section heading does not repeat the show name and episode number.
func headline(title, show string) string {
	if show == "" {
		return title
	}
	prefix, rest, found := strings.Cut(title, " | ")
	if found && strings.Contains(prefix, show) && strings.TrimSpace(rest) != "" {
		return strings.TrimSpace(rest)
	}
	return title
}

// writeDigest persists the Markdown digest and its JSON sidecar, filling
// in the digest paths.
func (g *Generator) writeDigest(digest *Digest) error {
	if err := os.MkdirAll(g.cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create newsletter dir: %w", err)
	}

	stamp := g.now().Format("2006-01-02")
	mdPath := filepath.Join(g.cfg.OutputDir, "newsletter_"+stamp+".md")
	if err := os.WriteFile(mdPath, []byte(digest.Markdown), 0o644); err != nil {
		return fmt.Errorf("write newsletter: %w", err)
	}

	// The sidecar keeps accents and emoji readable, so no HTML escaping.
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(digest.Episodes); err != nil {
		return fmt.Errorf("encode newsletter sidecar: %w", err)
	}
	jsonPath := filepath.Join(g.cfg.OutputDir, "newsletter_"+stamp+".json")
	if err := os.WriteFile(jsonPath, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write newsletter sidecar: %w", err)
	}

	digest.MarkdownPath = mdPath
	digest.JSONPath = jsonPath
	return nil
}
