package chat

import (
	"regexp"
	"strings"
)

// Canned replies for turns that never reach the model.
const (
	injectionReply = "I cannot help with that. Internal instructions, system prompts, and API keys are confidential. If you have a question about our services, I am happy to help."

	genericFailureReply = "I cannot generate a reliable response right now. Please try again later or contact us directly."
	streamFailureReply  = "Unable to generate a response. Please try again later."
)

// Status pings the widget sends around its contact form.
const (
	formOpenedPing    = "[FORM_OPENED]"
	formSubmittedPing = "[FORM_SUBMITTED]"
)

// injectionNeedles are lowercase substrings that mark prompt-extraction
// attempts, in English and German.
var injectionNeedles = []string{
	"ignore all previous",
	"ignore all prior",
	"ignore your instructions",
	"disregard your instructions",
	"system prompt",
	"system-prompt",
	"internal rules",
	"developer mode",
	"dev mode",
	"jailbreak",
	"prompt injection",
	"bypass",
	"api-key",
	"api key",
	"reveal your",
	"show me your prompt",
	"what are your instructions",
	"ignoriere alle",
	"interne regeln",
	"offenlege",
	"verrate",
}

var (
	injectionPairRe   = regexp.MustCompile(`(?i)\b(system|developer)\b.{0,40}\b(prompt|instructions?|rules?)\b`)
	injectionBase64Re = regexp.MustCompile(`(?i)\b(prompt|system|rules?|instructions?)\b`)
)

// IsInjectionAttempt reports whether a visitor message tries to extract
// internal instructions or credentials.
func IsInjectionAttempt(message string) bool {
	lower := strings.ToLower(message)
	if lower == "" {
		return false
	}

	for _, needle := range injectionNeedles {
		if strings.Contains(lower, needle) {
			return true
		}
	}

	if injectionPairRe.MatchString(lower) {
		return true
	}

	if strings.Contains(lower, "base64") && injectionBase64Re.MatchString(lower) {
		return true
	}

	return false
}

// isStatusPing reports whether a message is a widget form lifecycle ping.
func isStatusPing(message string) bool {
	trimmed := strings.TrimSpace(message)
	return trimmed == formOpenedPing || trimmed == formSubmittedPing
}
