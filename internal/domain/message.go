package domain

import "strings"

// Role identifies the author of a chat message.
type Role string

// Message roles accepted from the widget. Anything else is dropped during
// sanitization.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// PartType tags a multimodal content part.
type PartType string

const (
	PartText  PartType = "text"
	PartImage PartType = "image"
)

// ContentPart is one element of a multimodal message.
type ContentPart struct {
	Type PartType
	// Text is set for PartText parts.
	Text string
	// Image fields are set for PartImage parts.
	MIMEType string
	DataURL  string
	Base64   string
}

// Message is a single vendor-neutral chat turn. Content carries plain text;
// Parts, when non-empty, carries the multimodal representation and takes
// precedence at the adapter boundary.
type Message struct {
	Role    Role
	Content string
	Parts   []ContentPart
}

// IsMultimodal reports whether the message carries content parts.
func (m Message) IsMultimodal() bool { return len(m.Parts) > 0 }

// Text returns the textual content of the message, joining text parts for
// multimodal turns.
func (m Message) Text() string {
	if !m.IsMultimodal() {
		return m.Content
	}
	var parts []string
	for _, p := range m.Parts {
		if p.Type == PartText && p.Text != "" {
			parts = append(parts, p.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// ToolCall is a vendor-normalized model-requested function invocation.
// Arguments holds the raw JSON argument object as emitted by the vendor.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// Usage holds token accounting for one or more provider rounds.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Add accumulates another round's usage into u.
func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.TotalTokens = u.InputTokens + u.OutputTokens
}

// IsZero reports whether no tokens were recorded.
func (u Usage) IsZero() bool { return u.TotalTokens == 0 }
