package thumbnail

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"

	"postcast/internal/textutil"
)

// TopicInfo is what the video title contributes to the thumbnail: the label
// text and the keywords shown on the monitors in the artwork.
type TopicInfo struct {
	Topic    string
	Keywords []string
}

var episodePrefixPattern = regexp.MustCompile(`^.*S1E\d+\s*\|\s*`)

// emojiStripper drops pictographic symbols plus the variation selector and
// zero-width joiner that ride along with them.
var emojiStripper = runes.Remove(runes.Predicate(func(r rune) bool {
	return unicode.Is(unicode.So, r) || r == '️' || r == '‍'
}))

// ExtractTopicInfo derives the thumbnail topic and monitor keywords from a
// video title: the episode prefix and emoji are stripped, the topic is the
// text before the first ':' or ',', and the keywords are the comma-ish
// separated fragments longer than two runes, capped at five.
func ExtractTopicInfo(title string) TopicInfo {
	clean := episodePrefixPattern.ReplaceAllString(title, "")
	if stripped, _, err := transform.String(emojiStripper, clean); err == nil {
		clean = stripped
	}
	clean = strings.Join(strings.Fields(clean), " ")

	topic := clean
	if idx := strings.IndexAny(clean, ":,"); idx >= 0 {
		topic = clean[:idx]
	}
	topic = textutil.Clip(strings.TrimSpace(topic), 35)

	separators := strings.NewReplacer(":", ",", "&", ",", " y ", ",", "+", ",")
	var keywords []string
	for _, part := range strings.Split(separators.Replace(clean), ",") {
		part = strings.TrimSpace(part)
		if len([]rune(part)) > 2 {
			keywords = append(keywords, part)
		}
		if len(keywords) == 5 {
			break
		}
	}
	return TopicInfo{Topic: topic, Keywords: keywords}
}

var monitorPositions = []string{
	"Left monitor", "Center monitor", "Right monitor", "Far left laptop", "Far right screen",
}

func monitorLines(keywords []string) string {
	if len(keywords) == 0 {
		return "  - Monitors showing tech/podcast related content"
	}
	lines := make([]string, 0, len(keywords))
	for i, keyword := range keywords {
		if i >= len(monitorPositions) {
			break
		}
		lines = append(lines, fmt.Sprintf("  - %s: %q with a relevant icon", monitorPositions[i], strings.ToUpper(keyword)))
	}
	return strings.Join(lines, "\n")
}

// referencePrompt asks the model to repaint the reference image's style with
// this episode's theme. Text is left out of the artwork: the badge and label
// are composited afterwards.
func referencePrompt(show, theme string, info TopicInfo) string {
	keywords := strings.Join(info.Keywords, ", ")
	if keywords == "" {
		keywords = theme
	}
	logo := ""
	if show != "" {
		logo = fmt.Sprintf("\n- LOGO: %q text at top center, exactly as in the reference", show)
	}
	return fmt.Sprintf(`Generate a YouTube thumbnail image in the EXACT same visual style as the reference image.

STYLE ELEMENTS TO COPY EXACTLY:
- COLOR PALETTE: the same warm tones as the reference (no cold blue backgrounds)
- BACKGROUND: the same workspace aesthetic%s
- CHARACTERS: the exact same cartoon characters at the bottom, same positions and expressions
- Flat cartoon illustration style with clean lines

TOPIC FOR THIS EPISODE: %q
KEYWORDS: %s

REQUIREMENTS:
- Size: 1280x720 pixels (16:9)
- MIDDLE: computer monitors showing topic-related visuals:
%s
- Decorative elements related to the topic BEHIND the characters, never covering them
- BOTTOM: the same characters from the reference in the same arrangement
- DO NOT add text overlays, episode badges or watermarks, they are composited separately

Generate an image matching the reference aesthetic exactly.`, logo, theme, keywords, monitorLines(info.Keywords))
}

// standalonePrompt generates without a reference image; the cast description
// stays generic because there is no style source to copy from.
func standalonePrompt(theme string, info TopicInfo) string {
	return fmt.Sprintf(`Create a professional YouTube thumbnail (16:9) for a podcast episode about: %s

CHARACTERS:
- The podcast hosts as a row of friendly cartoon characters
- Cartoon style with warm skin tones and approachable expressions

BACKGROUND:
- Theme-related elements, icons or scenery BEHIND the characters
- Computer monitors showing topic visuals:
%s
- Elements must complement, never hide, the characters
- Use visual metaphors related to: %s

STYLE:
- Flat cartoon illustration with clean lines and subtle shading
- Warm color palette with high contrast
- Modern, polished, eye-catching

DO NOT:
- Add text overlays, watermarks or logos
- Use photorealistic style
- Make the background so busy it hides the characters`, theme, monitorLines(info.Keywords), theme)
}
