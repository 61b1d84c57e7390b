package translate

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"github.com/sashabaranov/go-openai"

	yaOpenai "github.com/visionex-project/docrecon/pkg/openai"
)

type GeminiModel string

const (
	GeminiModelFlash   GeminiModel = "gemini-1.5-flash"
	GeminiModelFlash25 GeminiModel = "gemini-2.5-flash"
)

// geminiGenerator sends one chat turn on top of a history.
type geminiGenerator interface {
	SendMessage(ctx context.Context, history []*genai.Content, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// gemini serves OpenAI-style chat completion requests with Gemini.
type gemini struct {
	// Replaced by a fake session in tests.
	generator func(model string) geminiGenerator
}

// NewGemini adapts a genai client to the chat completion interface.
func NewGemini(genaiClient *genai.Client) yaOpenai.Client {
	return &gemini{generator: func(model string) geminiGenerator {
		return &geminiSession{model: genaiClient.GenerativeModel(model)}
	}}
}

type geminiSession struct {
	model *genai.GenerativeModel
}

func (s *geminiSession) SendMessage(ctx context.Context, history []*genai.Content, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	chatSession := s.model.StartChat()
	chatSession.History = history
	return chatSession.SendMessage(ctx, parts...)
}

func (g *gemini) CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	if err := validateModel(request.Model); err != nil {
		return openai.ChatCompletionResponse{}, err
	}
	if len(request.Messages) == 0 {
		return openai.ChatCompletionResponse{}, errors.New("no messages in request")
	}

	history := []*genai.Content{}
	for _, message := range request.Messages[:len(request.Messages)-1] {
		if message.Role == openai.ChatMessageRoleSystem {
			// System messages become regular user messages
			history = append(history, &genai.Content{
				Parts: []genai.Part{genai.Text("System: " + message.Content)},
				Role:  "user",
			})
			continue
		}
		history = append(history, &genai.Content{
			Parts: toGenaiParts(message),
			Role:  toGenaiRole(message.Role),
		})
	}

	resp, err := g.generator(request.Model).SendMessage(ctx, history, toGenaiParts(request.Messages[len(request.Messages)-1])...)
	if err != nil {
		return openai.ChatCompletionResponse{}, err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return openai.ChatCompletionResponse{}, errors.New("no response from model")
	}

	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{
				Message: openai.ChatCompletionMessage{
					Role:    openai.ChatMessageRoleAssistant,
					Content: fmt.Sprintf("%s", resp.Candidates[0].Content.Parts[0]),
				},
			},
		},
	}, nil
}

func toGenaiParts(message openai.ChatCompletionMessage) []genai.Part {
	var parts []genai.Part
	for _, content := range message.MultiContent {
		parts = append(parts, genai.Text(content.Text))
	}
	if len(parts) == 0 && message.Content != "" {
		parts = append(parts, genai.Text(message.Content))
	}
	return parts
}

func toGenaiRole(role string) string {
	switch role {
	case openai.ChatMessageRoleAssistant:
		return "model"
	default:
		return "user"
	}
}

func validateModel(model string) error {
	switch GeminiModel(model) {
	case GeminiModelFlash, GeminiModelFlash25:
		return nil
	default:
		return fmt.Errorf("invalid model %q", model)
	}
}
