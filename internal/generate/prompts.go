package generate

import (
	"strings"

	"github.com/hyperifyio/goarticle/internal/style"
)

const translationSystemPrompt = `You are a professional multilingual translator.

Your task:
- Translate the provided content into Simplified Chinese
- Preserve meaning, tone, and structure
- Keep paragraph breaks - separate paragraphs clearly with blank lines
- Do NOT summarize or add commentary
- Do NOT omit information
- Do NOT include metadata, JSON, images, or CSS
- Output ONLY clean translated text
- Use clear, natural Chinese suitable for educated readers
- Each paragraph should be clearly separated by a blank line

Output ONLY the translated text in clean paragraphs.`

func buildTranslationUser(text string) string {
	var sb strings.Builder
	sb.WriteString("Translate the following content into Simplified Chinese. ")
	sb.WriteString("Extract and translate only the main article text, ignoring any metadata, images, JSON, or CSS:\n\n")
	sb.WriteString(text)
	return sb.String()
}

func buildCommentarySystem(cfg style.Config) string {
	var sb strings.Builder
	sb.WriteString("You are an expert writer and analyst writing for a Chinese-speaking audience, following the \"")
	sb.WriteString(cfg.DisplayName)
	sb.WriteString("\" style.\n\n")
	sb.WriteString("**Core Goal**: ")
	sb.WriteString(cfg.Description)
	sb.WriteString("\n\n**Tone**: ")
	sb.WriteString(cfg.Tone)
	sb.WriteString("\n\n**Structure Requirements**:\n")
	sb.WriteString(cfg.Structure.Opening)
	sb.WriteString("\n\n")
	sb.WriteString(cfg.Structure.Body)
	sb.WriteString("\n\n")
	sb.WriteString(cfg.Structure.Ending)
	sb.WriteString("\n\n**Rhetorical Devices to Use**:")
	writeBullets(&sb, cfg.RhetoricalDevices)
	sb.WriteString("\n\n**Sentence Style**: ")
	sb.WriteString(cfg.SentenceStyle)
	sb.WriteString("\n\n**What to Avoid**:")
	writeBullets(&sb, cfg.Avoid)
	sb.WriteString("\n\n**Important Guidelines**:")
	writeBullets(&sb, []string{
		"Write naturally in Simplified Chinese",
		"Use evidence and examples to support your points",
		"Always include boundaries/limitations for your arguments",
		"End with exactly 3 actionable suggestions or thought-provoking questions",
		"Make the content engaging and less robotic",
		"Vary sentence length for rhythm",
		`Use transitions naturally ("后来我发现...", "其实...", "你有没有...")`,
	})
	return sb.String()
}

func buildCommentaryUser(translated string, cfg style.Config) string {
	var sb strings.Builder
	sb.WriteString("Based on the following translated article, write an insightful interpretation following the \"")
	sb.WriteString(cfg.DisplayName)
	sb.WriteString("\" style.\n\n**Article to analyze:**\n")
	sb.WriteString(translated)
	sb.WriteString("\n\n**Your task:**")
	sb.WriteString("\n1. Write an engaging opening (2-3 sentences) that hooks the reader")
	sb.WriteString("\n2. Develop 3 main sections with clear subheadings, each containing:")
	sb.WriteString("\n   - A clear viewpoint")
	sb.WriteString("\n   - Supporting evidence (examples, scenarios, or logical reasoning)")
	sb.WriteString("\n   - Boundaries/limitations (when this doesn't apply)")
	sb.WriteString("\n3. End with exactly 3 actionable suggestions or thought-provoking questions")
	sb.WriteString("\n\n**Remember:**")
	writeBullets(&sb, []string{
		"Write in a natural, engaging style - avoid robotic or formulaic language",
		"Use the rhetorical devices and sentence style specified for this archetype",
		"Make it feel like a thoughtful human wrote this, not an AI",
		"Vary your language and structure throughout",
	})
	return sb.String()
}

func writeBullets(sb *strings.Builder, items []string) {
	for _, it := range items {
		sb.WriteString("\n- ")
		sb.WriteString(it)
	}
}
