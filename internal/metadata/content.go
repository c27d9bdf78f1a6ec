package metadata

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"postcast/internal/gemini"
	"postcast/internal/logging"
	"postcast/internal/textutil"
	"postcast/internal/transcript"
)

// Title generates an optimized video title from the transcript. When a show
// name is configured and the current title carries an episode marker, the
// result keeps the "SHOW - S1EN | ..." format; otherwise a plain descriptive
// title is produced. The result never exceeds the platform title limit.
func (g *Generator) Title(ctx context.Context, tr *transcript.Transcript, currentTitle string) (string, error) {
	if tr == nil || len(tr.Segments) == 0 {
		return "", errors.New("generate title: transcript required")
	}

	sample := textutil.Clip(tr.PlainText(), titlePromptLimit)
	show := strings.TrimSpace(g.cfg.ShowName)
	episode, hasEpisode := EpisodeNumber(currentTitle)

	prompt := plainTitlePrompt(sample)
	if show != "" && hasEpisode {
		prompt = showTitlePrompt(sample, show, episode)
	}

	raw, err := g.ai.GenerateText(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("generate title: %w", err)
	}
	title := strings.Trim(strings.TrimSpace(raw), `"'`)
	if title == "" {
		return "", errors.New("generate title: model returned no title")
	}
	if show != "" && hasEpisode && !strings.HasPrefix(title, show) {
		title = fmt.Sprintf("%s - S1E%d | %s", show, episode, title)
	}
	title = textutil.Truncate(title, maxTitleLength)

	g.logger.Debug("title generated", logging.Int("title_length", len([]rune(title))))
	return title, nil
}

func showTitlePrompt(sample, show string, episode int) string {
	return fmt.Sprintf(`Basándote en esta transcripción de un episodio de podcast en español, genera un título atractivo para YouTube.

TRANSCRIPCIÓN:
%s

El formato debe ser:
%s - S1E%d | [Tema Principal]: [Subtema] [2-3 emojis]

REGLAS:
- Máximo 80 caracteres después de "S1E%d |"
- Usa el tema más interesante del episodio
- Incluye 2-3 emojis relevantes al tema

Responde solo con el título:`, sample, show, episode, episode)
}

func plainTitlePrompt(sample string) string {
	return fmt.Sprintf(`Basándote en esta transcripción de un episodio de podcast en español, genera un título atractivo y descriptivo para YouTube.

TRANSCRIPCIÓN:
%s

REGLAS:
- Máximo 100 caracteres
- Destaca el tema principal del episodio
- Sin comillas

Responde solo con el título:`, sample)
}

type descriptionPayload struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Description generates the long description body from the transcript and
// assembles the final text: body, chapter block, show footer and hashtags.
func (g *Generator) Description(ctx context.Context, tr *transcript.Transcript, chapters, title string) (string, error) {
	if tr == nil || len(tr.Segments) == 0 {
		return "", errors.New("generate description: transcript required")
	}

	sample := textutil.Clip(tr.PlainText(), metadataPromptLimit)
	raw, err := g.ai.GenerateText(ctx, descriptionPrompt(sample))
	if err != nil {
		return "", fmt.Errorf("generate description: %w", err)
	}
	var payload descriptionPayload
	if err := gemini.DecodeJSON(raw, &payload); err != nil {
		return "", fmt.Errorf("generate description: %w", err)
	}
	body := strings.TrimSpace(payload.Description)
	if body == "" {
		return "", errors.New("generate description: model returned no description")
	}
	if len([]rune(body)) < 50 {
		g.logger.Warn("generated description is unusually short",
			logging.Int("description_length", len([]rune(body))))
	}

	sections := []string{body}
	if chapters = strings.TrimSpace(chapters); chapters != "" {
		sections = append(sections, "⏱️ CAPÍTULOS:\n"+chapters)
	}
	if footer := g.footer(title); footer != "" {
		sections = append(sections, footer)
	}
	if tags := hashtagLine(g.cfg.Hashtags); tags != "" {
		sections = append(sections, tags)
	}
	return strings.Join(sections, "\n\n"), nil
}

func descriptionPrompt(sample string) string {
	return fmt.Sprintf(`Basándote en esta transcripción de un episodio de podcast en español, genera metadatos para YouTube.

TRANSCRIPCIÓN:
%s

Responde SOLO con un objeto JSON válido, sin texto adicional:
{"title": "título atractivo del episodio", "description": "descripción de 2-3 párrafos que resuma los temas tratados"}`, sample)
}

// StaticDescription composes a description from already-generated chapters
// without calling the model, for republishing stored artifacts. The layout
// matches Description minus the generated body.
func (g *Generator) StaticDescription(chapters, title string) string {
	var sections []string
	if chapters = strings.TrimSpace(chapters); chapters != "" {
		sections = append(sections, "⏱️ CAPÍTULOS:\n"+chapters)
	}
	if footer := g.footer(title); footer != "" {
		sections = append(sections, footer)
	}
	if tags := hashtagLine(g.cfg.Hashtags); tags != "" {
		sections = append(sections, tags)
	}
	return strings.Join(sections, "\n\n")
}

// EpisodeSummary condenses the transcript into the short summary used by the
// newsletter digest.
func (g *Generator) EpisodeSummary(ctx context.Context, title string, tr *transcript.Transcript) (string, error) {
	if tr == nil || len(tr.Segments) == 0 {
		return "", errors.New("generate summary: transcript required")
	}

	sample := textutil.Clip(tr.PlainText(), summaryPromptLimit)
	raw, err := g.ai.GenerateText(ctx, summaryPrompt(title, sample))
	if err != nil {
		return "", fmt.Errorf("generate summary: %w", err)
	}
	summary := strings.TrimSpace(raw)
	if summary == "" {
		return "", errors.New("generate summary: model returned no summary")
	}
	return summary, nil
}

func summaryPrompt(title, sample string) string {
	return fmt.Sprintf(`Resume esta transcripción de un episodio de podcast de tecnología en español.

EPISODIO: %s

TRANSCRIPCIÓN:
%s

Genera un resumen de 2-3 oraciones (máximo 100 palabras) que capture los temas principales.
Solo devuelve el resumen:`, title, sample)
}

// Topic distills the transcript into the short visual theme used by thumbnail
// prompts. It never fails: on any model problem it falls back to the video
// title, or to a generic theme when no title is available either.
func (g *Generator) Topic(ctx context.Context, tr *transcript.Transcript, fallbackTitle string) string {
	fallback := strings.TrimSpace(fallbackTitle)
	if fallback == "" {
		fallback = topicFallback
	}
	if tr == nil || len(tr.Segments) == 0 {
		return fallback
	}

	sample := textutil.Clip(tr.PlainText(), topicPromptLimit)
	raw, err := g.ai.GenerateText(ctx, topicPrompt(sample))
	if err != nil {
		logging.WarnWithContext(g.logger, "topic generation failed, using fallback", "topic_fallback",
			logging.Error(err),
			logging.String(logging.FieldImpact, "thumbnail prompt falls back to the video title"))
		return fallback
	}
	topic, _, _ := strings.Cut(strings.TrimSpace(raw), "\n")
	topic = strings.Trim(strings.TrimSpace(topic), `"'`)
	if topic == "" {
		return fallback
	}
	return textutil.Clip(topic, 80)
}

func topicPrompt(sample string) string {
	return fmt.Sprintf(`Lee este fragmento de la transcripción de un episodio de podcast de tecnología.

TRANSCRIPCIÓN:
%s

Responde en una sola línea (máximo 8 palabras) con el tema principal del episodio, sin comillas:`, sample)
}

// footer builds the fixed description block after the chapters: the custom
// footer when configured, otherwise a show signature with the episode number
// when the title carries one.
func (g *Generator) footer(title string) string {
	if custom := strings.TrimSpace(g.cfg.DescriptionFooter); custom != "" {
		return custom
	}
	show := strings.TrimSpace(g.cfg.ShowName)
	if show == "" {
		return ""
	}
	line := "🎙️ " + show
	if episode, ok := EpisodeNumber(title); ok {
		line = fmt.Sprintf("🎙️ %s - Temporada 1, Episodio %d", show, episode)
	}
	return "---\n" + line + "\n📺 ¡Suscríbete para más contenido tech!"
}

func hashtagLine(tags []string) string {
	var cleaned []string
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if !strings.HasPrefix(tag, "#") {
			tag = "#" + tag
		}
		cleaned = append(cleaned, tag)
	}
	return strings.Join(cleaned, " ")
}
