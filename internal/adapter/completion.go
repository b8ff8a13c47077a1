// Package adapter wraps the OpenAI-compatible proxy behind the narrow
// clients the memory pipeline needs: structured chat completions, batched
// embeddings, and cross-encoder style reranking.
//
// Most proxies only implement the chat-completions endpoint, so structured
// output is obtained by injecting the target schema into the prompt and
// validating the raw reply, rather than relying on a vendor structured-output
// API.
package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	pkgerrors "ai4u-memory/pkg/errors"
	"ai4u-memory/pkg/logger"
)

// defaultMaxTokens caps completions when the caller does not set a budget.
const defaultMaxTokens = 8192

// codeFenceRe matches a reply wrapped entirely in a markdown code fence,
// optionally tagged json.
var codeFenceRe = regexp.MustCompile("(?s)^```(?:json)?\\s*\\n?(.*?)\\n?\\s*```$")

// Message is one instructional turn in a completion request.
type Message struct {
	Role    string
	Content string
}

// Schema is a named JSON-schema-like description of the object a structured
// completion must return.
type Schema struct {
	Name       string
	Definition map[string]interface{}
}

// TokenUsage is the provider-neutral usage record.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// StructuredRequest asks for a completion whose reply must satisfy Schema.
type StructuredRequest struct {
	Model       string
	Messages    []Message
	Schema      Schema
	Temperature float32
	MaxTokens   int
}

// CompletionRequest asks for a plain completion with no schema handling.
type CompletionRequest struct {
	Model       string
	Messages    []Message
	Temperature float32
	MaxTokens   int
}

// StructuredResult carries the validated reply body and normalized usage.
type StructuredResult struct {
	Data  json.RawMessage
	Usage TokenUsage
}

// CompletionShim adapts a chat-completions transport into the structured
// completion contract the extraction pipeline expects.
type CompletionShim struct {
	client *openai.Client
	logger *zap.Logger
}

// NewCompletionShim creates a shim over a shared OpenAI-compatible client
func NewCompletionShim(client *openai.Client) *CompletionShim {
	return &CompletionShim{
		client: client,
		logger: logger.Get(),
	}
}

// NewOpenAIClient builds the shared client for the configured proxy
func NewOpenAIClient(baseURL, apiKey string) *openai.Client {
	// Local proxies often run without credentials
	if apiKey == "" {
		apiKey = "dummy-key"
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(cfg)
}

// StructuredComplete issues one chat completion and parses the reply into a
// schema-validated object. It makes exactly one outbound call: retry policy,
// if any, belongs to the transport. A reply that cannot be parsed or does
// not satisfy the schema fails with ErrSchemaValidation carrying the raw
// text; partial results are never returned.
func (s *CompletionShim) StructuredComplete(ctx context.Context, req StructuredRequest) (*StructuredResult, error) {
	schemaJSON, err := json.MarshalIndent(req.Schema.Definition, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize schema %s: %w", req.Schema.Name, err)
	}

	instruction := fmt.Sprintf(
		"\n\nRespond with ONLY raw JSON (no markdown, no code fences, no ```). "+
			"The JSON must match this schema:\n%s", schemaJSON)

	messages := toOpenAIMessages(req.Messages)
	if len(messages) > 0 && messages[0].Role == openai.ChatMessageRoleSystem {
		messages[0].Content += instruction
	} else {
		messages = append([]openai.ChatCompletionMessage{{
			Role:    openai.ChatMessageRoleSystem,
			Content: instruction,
		}}, messages...)
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   maxTokens(req.MaxTokens),
		// Best-effort hint only; the reply is still validated below.
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("structured completion request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, pkgerrors.ErrEmptyCompletion
	}

	content := resp.Choices[0].Message.Content
	if content == "" {
		content = "{}"
	}
	stripped := stripCodeFences(content)

	var parsed map[string]interface{}
	if unmarshalErr := json.Unmarshal([]byte(stripped), &parsed); unmarshalErr != nil {
		return nil, pkgerrors.NewSchemaValidation("reply is not valid JSON", content, unmarshalErr)
	}
	if validationErr := validateValue(parsed, req.Schema.Definition); validationErr != nil {
		return nil, pkgerrors.NewSchemaValidation(validationErr.Error(), content, nil)
	}

	usage := TokenUsage{
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}

	s.logger.Debug("Structured completion succeeded",
		zap.String("model", req.Model),
		zap.String("schema", req.Schema.Name),
		zap.Int("input_tokens", usage.InputTokens),
		zap.Int("output_tokens", usage.OutputTokens),
	)

	return &StructuredResult{
		Data:  json.RawMessage(stripped),
		Usage: usage,
	}, nil
}

// Complete passes an unstructured completion through, still requesting
// JSON-object formatting as a hint. The raw provider response is returned.
func (s *CompletionShim) Complete(ctx context.Context, req CompletionRequest) (*openai.ChatCompletionResponse, error) {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    toOpenAIMessages(req.Messages),
		Temperature: req.Temperature,
		MaxTokens:   maxTokens(req.MaxTokens),
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("completion request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, pkgerrors.ErrEmptyCompletion
	}
	return &resp, nil
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	converted := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		converted = append(converted, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	return converted
}

func maxTokens(requested int) int {
	if requested > 0 {
		return requested
	}
	return defaultMaxTokens
}

// stripCodeFences removes markdown code fences from model JSON replies.
// A fully fenced reply keeps only the fenced body; a reply with just a
// leading fence line loses that line (and a bare trailing fence) rather
// than having content discarded.
func stripCodeFences(text string) string {
	text = strings.TrimSpace(text)
	if m := codeFenceRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	if strings.HasPrefix(text, "```") {
		lines := strings.Split(text, "\n")
		if strings.TrimSpace(lines[len(lines)-1]) == "```" {
			lines = lines[1 : len(lines)-1]
		} else {
			lines = lines[1:]
		}
		return strings.TrimSpace(strings.Join(lines, "\n"))
	}
	return text
}

// validateValue checks a decoded JSON value against a JSON-schema-like
// definition: object shape with required fields, declared property types,
// array item types, and numeric bounds. Fields present as null and fields
// the schema does not declare pass through unchecked.
func validateValue(value interface{}, schema map[string]interface{}) error {
	typeName, _ := schema["type"].(string)

	switch typeName {
	case "object", "":
		obj, ok := value.(map[string]interface{})
		if !ok {
			return fmt.Errorf("expected object, got %T", value)
		}
		for _, field := range requiredFields(schema) {
			if _, present := obj[field]; !present {
				return fmt.Errorf("missing required field %q", field)
			}
		}
		props, _ := schema["properties"].(map[string]interface{})
		for name, raw := range obj {
			propSchema, declared := props[name].(map[string]interface{})
			if !declared || raw == nil {
				continue
			}
			if err := validateValue(raw, propSchema); err != nil {
				return fmt.Errorf("field %q: %w", name, err)
			}
		}
	case "array":
		arr, ok := value.([]interface{})
		if !ok {
			return fmt.Errorf("expected array, got %T", value)
		}
		items, declared := schema["items"].(map[string]interface{})
		if declared {
			for i, el := range arr {
				if el == nil {
					continue
				}
				if err := validateValue(el, items); err != nil {
					return fmt.Errorf("index %d: %w", i, err)
				}
			}
		}
	case "string":
		if _, ok := value.(string); !ok {
			return fmt.Errorf("expected string, got %T", value)
		}
	case "integer":
		num, ok := value.(float64)
		if !ok || num != math.Trunc(num) {
			return fmt.Errorf("expected integer, got %v", value)
		}
		return checkBounds(num, schema)
	case "number":
		num, ok := value.(float64)
		if !ok {
			return fmt.Errorf("expected number, got %v", value)
		}
		return checkBounds(num, schema)
	case "boolean":
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("expected boolean, got %T", value)
		}
	}
	return nil
}

func checkBounds(num float64, schema map[string]interface{}) error {
	if min, ok := schemaNumber(schema["minimum"]); ok && num < min {
		return fmt.Errorf("value %v below minimum %v", num, min)
	}
	if max, ok := schemaNumber(schema["maximum"]); ok && num > max {
		return fmt.Errorf("value %v above maximum %v", num, max)
	}
	return nil
}

// schemaNumber reads a bound from a hand-built schema map, where numbers may
// be Go ints or float64s.
func schemaNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func requiredFields(schema map[string]interface{}) []string {
	switch req := schema["required"].(type) {
	case []string:
		return req
	case []interface{}:
		fields := make([]string, 0, len(req))
		for _, f := range req {
			if s, ok := f.(string); ok {
				fields = append(fields, s)
			}
		}
		return fields
	}
	return nil
}
