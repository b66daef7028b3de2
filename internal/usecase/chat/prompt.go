package chat

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/asksite/internal/config"
	"github.com/kailas-cloud/asksite/internal/rag"
)

const (
	maxContextPackLen = 1800
	maxCompactFAQ     = 6
	compactFAQQLen    = 120
	compactFAQALen    = 180
)

const toolGuidance = "You have two tools: search_website (finds pages) and get_page (loads page content). If the provided context is not enough, use search_website first, then get_page for the best matches. get_page may return Content status: support_enriched when the target page is thin but related evidence exists; in that case answer directly from the supporting evidence, without leading with limitations and without labeling the answer as an inference. Never ask the visitor to paste URLs, text, screenshots, or other site content that can be retrieved via tools. Only if no substantive evidence exists after tool use, provide one concise best-effort inference (label it as an inference) and stop. For inferred statements, do not present text as a direct quote from the target page."

const contextPriorityGuidance = "Context priority: 1) CURRENT_PAGE (high), 2) WP_SEARCH (medium), 3) FAQ_MATCHES (low)."

const formattingGuidance = "Formatting support in the chat UI includes headings, nested lists, blockquotes, tables, horizontal rules, fenced code blocks, links, and Markdown images with absolute URLs. Use these only when they improve readability. Do not paste bare URLs in the answer body unless the visitor explicitly asks for direct links; source pills are shown separately."

const imageGuidance = "The latest visitor message includes an attached image. Analyze that image directly and combine its details with website context in your answer."

const noContextGuidance = "No context is available for this query. Be transparent about this and suggest contacting directly."

// BuildSystemPrompt assembles the per-turn system prompt from the admin
// instructions, retrieval context, and capability guidance.
func BuildSystemPrompt(cfg config.ChatConfig, contextText, pageTitle string, useTools, hasImage bool) string {
	instructions := strings.TrimSpace(cfg.SystemInstructions)
	if instructions == "" {
		instructions = config.DefaultSystemInstructions
	}
	instructions = strings.ReplaceAll(instructions, "{bot_name}", cfg.BotName)

	parts := []string{instructions}

	if useTools {
		parts = append(parts, toolGuidance)
	} else {
		parts = append(parts, contextPriorityGuidance)
	}

	parts = append(parts, formattingGuidance)
	if hasImage {
		parts = append(parts, imageGuidance)
	}

	if pack := sanitizeParagraph(cfg.ContextPack, maxContextPackLen); pack != "" {
		parts = append(parts, "Background context:\n"+pack)
	}

	if faq := compactFAQ(cfg.FAQRaw, maxCompactFAQ); faq != "" {
		parts = append(parts, "FAQ highlights:\n"+faq)
	}

	if pageTitle != "" {
		parts = append(parts, "Current page: "+pageTitle)
	}

	if contextText != "" {
		parts = append(parts, "Context:\n"+contextText)
	} else {
		parts = append(parts, noContextGuidance)
	}

	return strings.Join(parts, "\n\n")
}

// compactFAQ condenses the first FAQ pairs into one-line bullets for the
// prompt preamble, independent of per-turn FAQ matching.
func compactFAQ(faqRaw string, maxItems int) string {
	pairs := rag.ParseFAQ(faqRaw)
	if len(pairs) == 0 {
		return ""
	}
	if len(pairs) > maxItems {
		pairs = pairs[:maxItems]
	}

	lines := make([]string, 0, len(pairs))
	for _, pair := range pairs {
		lines = append(lines, fmt.Sprintf("- %s: %s",
			rag.Substr(pair.Question, compactFAQQLen),
			rag.Substr(pair.Answer, compactFAQALen)))
	}
	return strings.Join(lines, "\n")
}

// sanitizeParagraph strips markup but keeps line structure.
func sanitizeParagraph(value string, maxLen int) string {
	return rag.Substr(strings.TrimSpace(rag.StripHTML(value)), maxLen)
}
