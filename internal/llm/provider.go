package llm

import (
	"strings"

	"github.com/RichardoC/talkback/internal/models"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"

	// Preamble is sent ahead of the prompt to providers that accept it.
	Preamble = "You are a helpful assistant that provides concise and relevant responses."

	// NoResponseContent stands in for a reply whose first choice is empty.
	NoResponseContent = "No response content"

	reasoningEndMarker = "</think>"
)

type RoleMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Request struct {
	Model    models.ModelID `json:"model"`
	Messages []RoleMessage  `json:"messages"`
}

// MessageContent converts the request messages to langchaingo's form.
func (r Request) MessageContent() []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(r.Messages))
	for _, m := range r.Messages {
		var role schema.ChatMessageType
		switch m.Role {
		case RoleAssistant:
			role = schema.ChatMessageTypeAI
		case RoleSystem:
			role = schema.ChatMessageTypeSystem
		default:
			role = schema.ChatMessageTypeHuman
		}
		out = append(out, llms.TextParts(role, m.Content))
	}
	return out
}

// providerSpec describes how one provider is addressed and how its replies
// are read.
type providerSpec struct {
	baseURL string
	// userOnly providers reject a leading preamble; the request must be a
	// single user message.
	userOnly bool
	extract  func(content string) string
}

var providerSpecs = map[models.Provider]providerSpec{
	models.ProviderOpenAI: {
		extract: plainReply,
	},
	models.ProviderDeepSeek: {
		baseURL: "https://api.deepseek.com",
		extract: plainReply,
	},
	models.ProviderPerplexity: {
		baseURL:  "https://api.perplexity.ai",
		userOnly: true,
		extract:  stripReasoning,
	},
}

func specFor(p models.Provider) providerSpec {
	if spec, ok := providerSpecs[p]; ok {
		return spec
	}
	return providerSpecs[models.Providers[0]]
}

func plainReply(content string) string {
	return content
}

// stripReasoning drops a reasoning preamble ending in </think>, keeping only
// the visible answer after the last marker.
func stripReasoning(content string) string {
	i := strings.LastIndex(content, reasoningEndMarker)
	if i < 0 {
		return content
	}
	return strings.TrimSpace(content[i+len(reasoningEndMarker):])
}

// BuildRequest builds the message sequence for model and prompt.
func BuildRequest(model models.ModelID, prompt string) Request {
	spec := specFor(models.ProviderFor(model))
	if spec.userOnly {
		return Request{
			Model:    model,
			Messages: []RoleMessage{{Role: RoleUser, Content: prompt}},
		}
	}
	return Request{
		Model: model,
		Messages: []RoleMessage{
			{Role: RoleAssistant, Content: Preamble},
			{Role: RoleUser, Content: prompt},
		},
	}
}
