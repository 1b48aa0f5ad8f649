// Package anthropic adapts Anthropic's Claude API to the planner's
// chatmodel.ChatModel interface, grounded in the teacher's
// graph/model/anthropic adapter but narrowed to text-only completions
// (a planner never needs Claude's tool-calling round trip).
package anthropic

import (
	"context"
	"errors"
	"fmt"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/lmlang/graphlang/planner/chatmodel"
)

// ChatModel implements chatmodel.ChatModel using Anthropic's Messages API.
type ChatModel struct {
	apiKey    string
	modelName string
}

// NewChatModel returns a ChatModel for the given API key and model name
// (empty uses a default Claude Sonnet model).
func NewChatModel(apiKey, modelName string) *ChatModel {
	if modelName == "" {
		modelName = "claude-sonnet-4-5-20250929"
	}
	return &ChatModel{apiKey: apiKey, modelName: modelName}
}

// Chat implements chatmodel.ChatModel.
func (m *ChatModel) Chat(ctx context.Context, messages []chatmodel.Message) (string, error) {
	if m.apiKey == "" {
		return "", errors.New("anthropic: API key is required")
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	client := anthropicsdk.NewClient(option.WithAPIKey(m.apiKey))

	systemPrompt, conversation := extractSystemPrompt(messages)
	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(m.modelName),
		Messages:  convertMessages(conversation),
		MaxTokens: 4096,
	}
	if systemPrompt != "" {
		params.System = []anthropicsdk.TextBlockParam{{Text: systemPrompt}}
	}

	resp, err := client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic: message create failed: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if b, ok := block.AsAny().(anthropicsdk.TextBlock); ok {
			text += b.Text
		}
	}
	return text, nil
}

func extractSystemPrompt(messages []chatmodel.Message) (string, []chatmodel.Message) {
	var system string
	var rest []chatmodel.Message
	for _, msg := range messages {
		if msg.Role == chatmodel.RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += msg.Content
			continue
		}
		rest = append(rest, msg)
	}
	return system, rest
}

func convertMessages(messages []chatmodel.Message) []anthropicsdk.MessageParam {
	out := make([]anthropicsdk.MessageParam, len(messages))
	for i, msg := range messages {
		if msg.Role == chatmodel.RoleAssistant {
			out[i] = anthropicsdk.NewAssistantMessage(anthropicsdk.NewTextBlock(msg.Content))
		} else {
			out[i] = anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(msg.Content))
		}
	}
	return out
}
