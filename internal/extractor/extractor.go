// Package extractor turns free-form user messages into atomic fact strings
// via an LLM. Extraction never fails the caller: on a completion error or
// malformed model output the original message is returned as a single fact.
package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog"
)

// Extractor is the fact-extraction contract consumed by the services layer.
type Extractor interface {
	// ExtractFacts returns the atomic facts stated in text.
	ExtractFacts(ctx context.Context, text string) ([]string, error)
	// ExtractDeletionFacts returns the positive form of facts the text says
	// no longer hold ("I stopped using Shram" -> "User uses Shram").
	ExtractDeletionFacts(ctx context.Context, text string) ([]string, error)
}

const extractSystemPrompt = `Extract atomic facts from the user's message.
Return only a JSON array of strings, each representing one fact.

Examples:
- Input: "I use Shram and Magnet as productivity tools"
- Output: ["User uses Shram as productivity tool", "User uses Magnet as productivity tool"]

- Input: "I don't use Magnet anymore"
- Output: ["User no longer uses Magnet"]

- Input: "My name is John and I live in New York"
- Output: ["User's name is John", "User lives in New York"]

Keep facts atomic and specific. Don't include unnecessary words.`

const deletionSystemPrompt = `Extract facts that should be deleted from the user's message.
Return only a JSON array of strings, each representing one fact to delete.

Examples:
- Input: "I don't use Magnet anymore"
- Output: ["User uses Magnet"]

- Input: "I stopped using Shram"
- Output: ["User uses Shram"]

- Input: "I no longer live in New York"
- Output: ["User lives in New York"]

Extract the positive version of what the user is saying they no longer do/have.`

// OpenAIExtractor implements Extractor with OpenAI chat completions.
type OpenAIExtractor struct {
	client openai.Client
	model  string
	logger zerolog.Logger
}

func NewOpenAIExtractor(apiKey, model string, logger zerolog.Logger, opts ...option.RequestOption) *OpenAIExtractor {
	clientOpts := append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &OpenAIExtractor{
		client: openai.NewClient(clientOpts...),
		model:  model,
		logger: logger,
	}
}

func (e *OpenAIExtractor) ExtractFacts(ctx context.Context, text string) ([]string, error) {
	return e.extract(ctx, extractSystemPrompt, fmt.Sprintf("Extract facts from: '%s'", text), text)
}

func (e *OpenAIExtractor) ExtractDeletionFacts(ctx context.Context, text string) ([]string, error) {
	return e.extract(ctx, deletionSystemPrompt, fmt.Sprintf("Extract deletion facts from: '%s'", text), text)
}

func (e *OpenAIExtractor) extract(ctx context.Context, system, user, original string) ([]string, error) {
	resp, err := e.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(e.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Temperature: openai.Float(0.1),
		MaxTokens:   openai.Int(500),
	})
	if err != nil {
		e.logger.Warn().Err(err).Msg("chat completion failed, keeping raw message as fact")
		return []string{original}, nil
	}
	if len(resp.Choices) == 0 {
		e.logger.Warn().Msg("chat completion returned no choices")
		return []string{original}, nil
	}
	return parseFactList(resp.Choices[0].Message.Content, original, e.logger), nil
}

// parseFactList decodes the model's JSON-array answer. Anything that is not
// a JSON array of strings falls back to the original input as one fact.
func parseFactList(content, original string, logger zerolog.Logger) []string {
	trimmed := strings.TrimSpace(content)
	trimmed = stripCodeFence(trimmed)

	var raw []interface{}
	if err := json.Unmarshal([]byte(trimmed), &raw); err != nil {
		logger.Warn().Str("content", content).Msg("fact response was not a JSON array")
		return []string{original}
	}

	facts := make([]string, 0, len(raw))
	for _, v := range raw {
		s := fmt.Sprintf("%v", v)
		if s != "" && v != nil {
			facts = append(facts, s)
		}
	}
	return facts
}

// stripCodeFence unwraps ```json ... ``` fences models sometimes add.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.IndexByte(s, '\n'); idx >= 0 && !strings.HasPrefix(s, "[") {
		s = s[idx+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
