// Package composer injects the user's style instructions into OpenAI-style
// chat requests.
package composer

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kalambet/quill/internal/proxy"
)

const (
	defaultMaxInstructionTokens = 1000
	systemSeparator             = "\n\n---\n\n"
	customHeader                = "\n\n[Additional Instructions]\n"
)

// Composer places the style block and the user's custom instructions in the
// system message of a ChatRequest.
type Composer struct {
	MaxInstructionTokens int
}

// New creates a Composer with the given token budget for custom
// instructions. If maxInstructionTokens <= 0, the default (1000) is used.
func New(maxInstructionTokens int) *Composer {
	if maxInstructionTokens <= 0 {
		maxInstructionTokens = defaultMaxInstructionTokens
	}
	return &Composer{MaxInstructionTokens: maxInstructionTokens}
}

// Compose returns req with the style block placed ahead of the content of
// its system message, adding a system message when the request has none.
// Other messages and unknown message fields pass through untouched.
func (c *Composer) Compose(req proxy.ChatRequest, stylePrompt, customInstructions string) (proxy.ChatRequest, error) {
	block := c.buildInstructions(stylePrompt, customInstructions)
	if block == "" {
		return req, nil
	}

	var msgs []message
	if len(req.Messages) > 0 {
		if err := json.Unmarshal(req.Messages, &msgs); err != nil {
			return req, fmt.Errorf("parsing messages: %w", err)
		}
	}

	if len(msgs) > 0 && msgs[0].role() == "system" {
		if err := msgs[0].prependText(block + systemSeparator); err != nil {
			return req, err
		}
	} else {
		msgs = append([]message{systemMessage(block)}, msgs...)
	}

	raw, err := json.Marshal(msgs)
	if err != nil {
		return req, fmt.Errorf("encoding messages: %w", err)
	}
	req.Messages = raw
	return req, nil
}

// ForPrompt builds a single-turn request for prompt and composes it.
func (c *Composer) ForPrompt(model, prompt, stylePrompt, customInstructions string) (proxy.ChatRequest, error) {
	req, err := proxy.NewRequest(model, proxy.Message{Role: "user", Content: prompt})
	if err != nil {
		return proxy.ChatRequest{}, err
	}
	return c.Compose(req, stylePrompt, customInstructions)
}

// buildInstructions joins the style block and the custom instructions,
// cutting the latter to the token budget.
func (c *Composer) buildInstructions(stylePrompt, customInstructions string) string {
	style := strings.TrimSpace(stylePrompt)
	custom := strings.TrimSpace(customInstructions)
	if custom == "" {
		return style
	}
	if EstimateTokens(custom) > c.MaxInstructionTokens {
		custom = cutAt(custom, c.MaxInstructionTokens*4)
	}
	if style == "" {
		return strings.TrimLeft(customHeader, "\n") + custom
	}
	return style + customHeader + custom
}

// cutAt shortens s to at most n bytes without splitting a rune.
func cutAt(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// EstimateTokens approximates a token count at four bytes per token.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// message keeps every JSON field of a chat message so that names, tool
// calls and the like survive recomposition.
type message map[string]json.RawMessage

func systemMessage(text string) message {
	role, _ := json.Marshal("system")
	content, _ := json.Marshal(text)
	return message{"role": role, "content": content}
}

func (m message) role() string {
	var r string
	_ = json.Unmarshal(m["role"], &r)
	return r
}

// contentPart is one element of array-form content.
type contentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// prependText puts prefix in front of the message content. String content
// is extended in place; array content gains a leading text part.
func (m message) prependText(prefix string) error {
	raw := m["content"]
	if len(raw) == 0 || string(raw) == "null" {
		raw = json.RawMessage(`""`)
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		m["content"], _ = json.Marshal(prefix + text)
		return nil
	}

	var parts []json.RawMessage
	if err := json.Unmarshal(raw, &parts); err != nil {
		return fmt.Errorf("system message content is neither text nor parts: %w", err)
	}
	lead, _ := json.Marshal(contentPart{Type: "text", Text: strings.TrimRight(prefix, "\n-")})
	m["content"], _ = json.Marshal(append([]json.RawMessage{lead}, parts...))
	return nil
}
