// Package openai adapts OpenAI's Chat Completions API to the planner's
// chatmodel.ChatModel interface, grounded in the teacher's
// graph/model/openai adapter, narrowed to text-only completions.
package openai

import (
	"context"
	"errors"
	"fmt"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/lmlang/graphlang/planner/chatmodel"
)

// ChatModel implements chatmodel.ChatModel using OpenAI's Chat
// Completions API.
type ChatModel struct {
	apiKey    string
	modelName string
}

// NewChatModel returns a ChatModel for the given API key and model name
// (empty uses a default GPT-4o model).
func NewChatModel(apiKey, modelName string) *ChatModel {
	if modelName == "" {
		modelName = "gpt-4o"
	}
	return &ChatModel{apiKey: apiKey, modelName: modelName}
}

// Chat implements chatmodel.ChatModel.
func (m *ChatModel) Chat(ctx context.Context, messages []chatmodel.Message) (string, error) {
	if m.apiKey == "" {
		return "", errors.New("openai: API key is required")
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	client := openaisdk.NewClient(option.WithAPIKey(m.apiKey))

	params := openaisdk.ChatCompletionNewParams{
		Model:    openaisdk.ChatModel(m.modelName),
		Messages: convertMessages(messages),
	}

	resp, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai: chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

func convertMessages(messages []chatmodel.Message) []openaisdk.ChatCompletionMessageParamUnion {
	out := make([]openaisdk.ChatCompletionMessageParamUnion, len(messages))
	for i, msg := range messages {
		switch msg.Role {
		case chatmodel.RoleSystem:
			out[i] = openaisdk.SystemMessage(msg.Content)
		case chatmodel.RoleAssistant:
			out[i] = openaisdk.AssistantMessage(msg.Content)
		default:
			out[i] = openaisdk.UserMessage(msg.Content)
		}
	}
	return out
}
