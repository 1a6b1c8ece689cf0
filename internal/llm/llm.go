// Package llm provides the streaming chat-completion client used for
// resume-fit analysis: a key pool that serializes access to a small set of
// API keys, a retrying SSE client with a primary and an optional fallback
// provider, and the parser that turns raw model output into a fit analysis.
package llm

import (
	"net/url"
	"strings"

	"github.com/jmylchreest/jobsift/internal/constants"
)

// ChatMessage is one message in a chat-completion request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest describes one chat completion. Zero Temperature and MaxTokens
// take the analysis defaults.
type ChatRequest struct {
	Messages    []ChatMessage
	Temperature float64
	MaxTokens   int
}

func (r ChatRequest) withDefaults() ChatRequest {
	if r.Temperature == 0 {
		r.Temperature = constants.AnalysisTemperature
	}
	if r.MaxTokens == 0 {
		r.MaxTokens = constants.AnalysisMaxTokens
	}
	return r
}

// Usage is the token accounting reported by the provider, when present.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResult is the accumulated output of one streaming chat completion.
type ChatResult struct {
	Content  string
	Usage    Usage
	Provider string
	Model    string
}

// provider is one chat-completions endpoint plus the model to request on it.
type provider struct {
	label   string
	baseURL string
	model   string
}

// providerLabel derives a short provider label from an endpoint URL, for
// logs and the provider column on stored analyses. "https://api.groq.com/
// openai/v1" becomes "groq.com".
func providerLabel(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return baseURL
	}
	return strings.TrimPrefix(u.Host, "api.")
}
