// Package google adapts Google's Gemini API to the planner's
// chatmodel.ChatModel interface, grounded in the teacher's
// graph/model/google adapter, narrowed to text-only completions.
package google

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/lmlang/graphlang/planner/chatmodel"
)

// ChatModel implements chatmodel.ChatModel using Google's Gemini API.
type ChatModel struct {
	apiKey    string
	modelName string
}

// NewChatModel returns a ChatModel for the given API key and model name
// (empty uses a default Gemini Flash model).
func NewChatModel(apiKey, modelName string) *ChatModel {
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}
	return &ChatModel{apiKey: apiKey, modelName: modelName}
}

// Chat implements chatmodel.ChatModel.
func (m *ChatModel) Chat(ctx context.Context, messages []chatmodel.Message) (string, error) {
	if m.apiKey == "" {
		return "", errors.New("google: API key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(m.apiKey))
	if err != nil {
		return "", fmt.Errorf("google: client creation failed: %w", err)
	}
	defer client.Close()

	genModel := client.GenerativeModel(m.modelName)
	system, parts := splitSystemInstruction(messages)
	if system != "" {
		genModel.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}

	resp, err := genModel.GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("google: generate content failed: %w", err)
	}

	return extractText(resp), nil
}

func splitSystemInstruction(messages []chatmodel.Message) (string, []genai.Part) {
	var system string
	var parts []genai.Part
	for _, msg := range messages {
		if msg.Role == chatmodel.RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += msg.Content
			continue
		}
		if msg.Content != "" {
			parts = append(parts, genai.Text(msg.Content))
		}
	}
	return system, parts
}

func extractText(resp *genai.GenerateContentResponse) string {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var text string
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text += string(t)
		}
	}
	return text
}
