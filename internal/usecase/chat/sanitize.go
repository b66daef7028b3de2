package chat

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"

	"github.com/kailas-cloud/asksite/internal/domain"
	"github.com/kailas-cloud/asksite/internal/rag"
)

// History and payload caps mirror what the widget is allowed to send.
const (
	maxHistoryMessages     = 12
	maxUserMessageLen      = 1500
	maxAssistantMessageLen = 2000
	maxPageTitleLen        = 180

	maxPayloadBytes       = 50_000
	maxImagePayloadBytes  = 6 * 1024 * 1024
	maxImageBytes         = 2 * 1024 * 1024
	maxAttachmentNameLen  = 80
	imageAttachedMarker   = "[IMAGE_ATTACHED]"
	defaultImagePromptTxt = "Please analyze this image."
)

// Payload is the raw widget request body.
type Payload struct {
	Messages   []PayloadMessage   `json:"messages"`
	PageURL    string             `json:"page_url"`
	PageTitle  string             `json:"page_title"`
	StreamID   string             `json:"stream_id"`
	Attachment *AttachmentPayload `json:"attachment"`
}

// PayloadMessage is one raw history turn.
type PayloadMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AttachmentPayload is the raw image attachment.
type AttachmentPayload struct {
	DataURL string `json:"data_url"`
	Name    string `json:"name"`
}

// Attachment is a validated image attachment.
type Attachment struct {
	MIMEType  string
	Base64    string
	DataURL   string
	Name      string
	SizeBytes int
}

var dataURLRe = regexp.MustCompile(`(?i)^data:(image/(?:png|jpeg|jpg|webp|gif));base64,([A-Za-z0-9+/=\r\n]+)$`)

// ParseAttachment validates a raw attachment. A nil or empty payload yields
// nil without error; anything else must be a decodable same-request image.
func ParseAttachment(raw *AttachmentPayload, enabled bool) (*Attachment, error) {
	if raw == nil || strings.TrimSpace(raw.DataURL) == "" {
		return nil, nil
	}
	if !enabled {
		return nil, fmt.Errorf("image attachments are disabled on this site: %w", domain.ErrValidation)
	}

	match := dataURLRe.FindStringSubmatch(strings.TrimSpace(raw.DataURL))
	if match == nil {
		return nil, fmt.Errorf("unsupported image format, use PNG, JPEG, WEBP, or GIF: %w", domain.ErrValidation)
	}

	mimeType := strings.ToLower(match[1])
	if mimeType == "image/jpg" {
		mimeType = "image/jpeg"
	}

	encoded := strings.Map(func(r rune) rune {
		if r == '\r' || r == '\n' || r == ' ' {
			return -1
		}
		return r
	}, match[2])
	if encoded == "" {
		return nil, fmt.Errorf("image attachment is empty: %w", domain.ErrValidation)
	}

	binary, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || len(binary) == 0 {
		return nil, fmt.Errorf("image attachment could not be decoded: %w", domain.ErrValidation)
	}
	if len(binary) > maxImageBytes {
		return nil, fmt.Errorf("image is too large, maximum size is 2MB: %w", domain.ErrPayloadTooLarge)
	}

	name := rag.CleanText(raw.Name, maxAttachmentNameLen)
	if name == "" {
		name = "image"
	}

	return &Attachment{
		MIMEType:  mimeType,
		Base64:    encoded,
		DataURL:   "data:" + mimeType + ";base64," + encoded,
		Name:      name,
		SizeBytes: len(binary),
	}, nil
}

// MaxPayloadBytes returns the request body cap; image attachments raise it.
func MaxPayloadBytes(imagesEnabled bool) int {
	if imagesEnabled {
		return maxImagePayloadBytes
	}
	return maxPayloadBytes
}

// sanitizeHistory keeps the trailing window of valid turns, strips markup,
// and enforces per-role length caps. The second return value is the latest
// user message, the turn all retrieval keys off.
func sanitizeHistory(raw []PayloadMessage) ([]domain.Message, string) {
	if len(raw) > maxHistoryMessages {
		raw = raw[len(raw)-maxHistoryMessages:]
	}

	messages := make([]domain.Message, 0, len(raw))
	latestUser := ""

	for _, m := range raw {
		role := domain.Role(strings.ToLower(m.Role))
		if role != domain.RoleUser && role != domain.RoleAssistant {
			continue
		}

		maxLen := maxAssistantMessageLen
		if role == domain.RoleUser {
			maxLen = maxUserMessageLen
		}

		content := rag.CleanText(m.Content, maxLen)
		if content == "" {
			continue
		}

		messages = append(messages, domain.Message{Role: role, Content: content})
		if role == domain.RoleUser {
			latestUser = content
		}
	}

	return messages, latestUser
}

// attachImage converts the last user turn into a multimodal message
// carrying the attachment.
func attachImage(messages []domain.Message, att *Attachment) []domain.Message {
	if att == nil {
		return messages
	}

	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != domain.RoleUser {
			continue
		}

		text := strings.TrimSpace(messages[i].Content)
		if text == "" {
			text = defaultImagePromptTxt
		}

		messages[i].Parts = []domain.ContentPart{
			{Type: domain.PartText, Text: text},
			{
				Type:     domain.PartImage,
				MIMEType: att.MIMEType,
				DataURL:  att.DataURL,
				Base64:   att.Base64,
			},
		}
		break
	}

	return messages
}

var streamIDCleanRe = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// SanitizeStreamID strips everything outside the progress-key alphabet and
// caps the length. An empty result disables progress tracking.
func SanitizeStreamID(raw string) string {
	id := streamIDCleanRe.ReplaceAllString(raw, "")
	if len(id) > 96 {
		id = id[:96]
	}
	return id
}
