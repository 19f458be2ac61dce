package proxy

import (
	"encoding/json"
	"fmt"
	"maps"
)

// ChatRequest is an OpenAI-compatible chat completion request. Only the
// fields quill touches are typed; everything else (temperature, tools, ...)
// rides along in Extra unchanged.
type ChatRequest struct {
	Model    string                     `json:"model"`
	Messages json.RawMessage            `json:"messages"`
	Stream   bool                       `json:"stream,omitempty"`
	Extra    map[string]json.RawMessage `json:"-"`
}

func (r ChatRequest) MarshalJSON() ([]byte, error) {
	out := maps.Clone(r.Extra)
	if out == nil {
		out = make(map[string]json.RawMessage, 3)
	}
	if r.Model != "" {
		model, err := json.Marshal(r.Model)
		if err != nil {
			return nil, err
		}
		out["model"] = model
	}
	if r.Messages != nil {
		out["messages"] = r.Messages
	}
	if r.Stream {
		out["stream"] = json.RawMessage("true")
	}
	return json.Marshal(out)
}

func (r *ChatRequest) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	typed := map[string]any{"model": &r.Model, "stream": &r.Stream}
	for name, dst := range typed {
		raw, ok := fields[name]
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			return fmt.Errorf("field %s: %w", name, err)
		}
		delete(fields, name)
	}
	if raw, ok := fields["messages"]; ok {
		r.Messages = raw
		delete(fields, "messages")
	}
	r.Extra = fields
	return nil
}

// Message is a plain-text chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// NewRequest builds a non-streaming request from plain messages.
func NewRequest(model string, msgs ...Message) (ChatRequest, error) {
	raw, err := json.Marshal(msgs)
	if err != nil {
		return ChatRequest{}, err
	}
	return ChatRequest{Model: model, Messages: raw}, nil
}

// ChatResponse is the subset of a non-streaming completion quill reads.
type ChatResponse struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`
}

type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason,omitempty"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Text returns the content of the first choice.
func (r ChatResponse) Text() string {
	if len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}

// Model is one entry of GET /models.
type Model struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created,omitempty"`
	OwnedBy string `json:"owned_by,omitempty"`
}

// ModelList is the GET /models envelope.
type ModelList struct {
	Object string  `json:"object"`
	Data   []Model `json:"data"`
}
