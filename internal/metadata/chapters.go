package metadata

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"postcast/internal/logging"
	"postcast/internal/textutil"
	"postcast/internal/transcript"
)

// Chapters asks the text model for chapter markers over a time-sampled view
// of the transcript and returns one "M:SS Título" line per chapter. Model
// failures are not fatal: the caller gets a single full-video chapter so the
// description can still be published.
func (g *Generator) Chapters(ctx context.Context, tr *transcript.Transcript) (string, error) {
	if tr == nil || len(tr.Segments) == 0 {
		return "", errors.New("generate chapters: transcript required")
	}

	timed := textutil.Clip(tr.TimedLines(chaptersSampleInterval), chaptersPromptLimit)
	raw, err := g.ai.GenerateText(ctx, chaptersPrompt(timed))
	if err != nil {
		if ctx != nil && ctx.Err() != nil {
			return "", fmt.Errorf("generate chapters: %w", err)
		}
		logging.WarnWithContext(g.logger, "chapter generation failed, using single-chapter fallback", "chapters_fallback",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check gemini api access and quota"),
			logging.String(logging.FieldImpact, "description will carry one full-video chapter"))
		return chaptersFallback, nil
	}

	chapters := formatChapters(raw)
	g.logger.Debug("chapters generated",
		logging.Int("chapter_count", strings.Count(chapters, "\n")+1))
	return chapters, nil
}

func chaptersPrompt(timedTranscript string) string {
	return fmt.Sprintf(`Analiza esta transcripción con marcas de tiempo de un episodio de podcast en español.

TRANSCRIPCIÓN:
%s

INSTRUCCIONES:
- Identifica entre 5 y 10 momentos clave del episodio
- El primer capítulo DEBE empezar en 0:00
- Usa únicamente tiempos que aparezcan en la transcripción
- Títulos cortos y descriptivos (máximo 6 palabras)

FORMATO (una línea por capítulo, sin texto adicional):
0:00 Introducción
2:15 Primer tema
15:30 Segundo tema

Responde solo con las líneas de capítulos:`, timedTranscript)
}

// formatChapters keeps the model lines that look like chapters: a valid
// timestamp, a non-empty title, and a start time that never goes backwards.
// A "0:00" opener is inserted when the model forgot one.
func formatChapters(raw string) string {
	var (
		valid []string
		last  = -1
	)
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		stamp, title, ok := strings.Cut(line, " ")
		if !ok || strings.TrimSpace(title) == "" {
			continue
		}
		seconds, ok := timestampSeconds(stamp)
		if !ok || seconds < last {
			continue
		}
		last = seconds
		valid = append(valid, stamp+" "+strings.TrimSpace(title))
	}
	if len(valid) == 0 || !strings.HasPrefix(valid[0], "0:00") {
		valid = append([]string{"0:00 Introducción"}, valid...)
	}
	return strings.Join(valid, "\n")
}

// timestampSeconds parses "M:SS" or "H:MM:SS" and reports the total seconds.
func timestampSeconds(stamp string) (int, bool) {
	parts := strings.Split(stamp, ":")
	switch len(parts) {
	case 2:
		minutes, errM := strconv.Atoi(parts[0])
		seconds, errS := strconv.Atoi(parts[1])
		if errM != nil || errS != nil || minutes < 0 || seconds < 0 || seconds > 59 {
			return 0, false
		}
		return minutes*60 + seconds, true
	case 3:
		hours, errH := strconv.Atoi(parts[0])
		minutes, errM := strconv.Atoi(parts[1])
		seconds, errS := strconv.Atoi(parts[2])
		if errH != nil || errM != nil || errS != nil ||
			hours < 0 || minutes < 0 || minutes > 59 || seconds < 0 || seconds > 59 {
			return 0, false
		}
		return hours*3600 + minutes*60 + seconds, true
	default:
		return 0, false
	}
}
