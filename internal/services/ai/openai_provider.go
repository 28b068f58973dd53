// File: internal/services/ai/openai_provider.go
package ai

import (
	"context"
	"errors"
	"io"

	openai "github.com/sashabaranov/go-openai"
)

type OpenAIProvider struct {
	config          *Config
	embeddingClient *openai.Client
	llmClient       *openai.Client
}

func NewOpenAIProvider(config *Config) *OpenAIProvider {
	llmConfig := openai.DefaultConfig(config.LLMKey)
	if config.LLMBaseURL != "" {
		llmConfig.BaseURL = config.LLMBaseURL
	}
	llmClient := openai.NewClientWithConfig(llmConfig)

	embeddingKey := config.EmbeddingKey
	if embeddingKey == "" {
		embeddingKey = config.LLMKey
	}
	embeddingConfig := openai.DefaultConfig(embeddingKey)
	switch {
	case config.EmbeddingBaseURL != "":
		embeddingConfig.BaseURL = config.EmbeddingBaseURL
	case config.LLMBaseURL != "":
		embeddingConfig.BaseURL = config.LLMBaseURL
	}

	return &OpenAIProvider{
		config:          config,
		embeddingClient: openai.NewClientWithConfig(embeddingConfig),
		llmClient:       llmClient,
	}
}

func (p *OpenAIProvider) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	resp, err := p.embeddingClient.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(p.config.EmbeddingModel),
	})
	if err != nil {
		return nil, classify("embedding", p.config.EmbeddingModel, err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, &AIError{Type: ErrTypeProvider, Operation: "embedding", Message: "empty embedding response"}
	}
	return resp.Data[0].Embedding, nil
}

// OpenStream starts a streamed completion. Errors returned here happen before
// any delta was produced; errors from Recv happen mid-stream.
func (p *OpenAIProvider) OpenStream(ctx context.Context, req StreamRequest) (Stream, error) {
	model := req.Model
	if model == "" {
		model = p.config.Model
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = p.config.Temperature
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	stream, err := p.llmClient.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: temperature,
		TopP:        p.config.TopP,
		Stream:      true,
	})
	if err != nil {
		return nil, classify("streaming", model, err)
	}
	return &openAIStream{stream: stream, model: model}, nil
}

type openAIStream struct {
	stream *openai.ChatCompletionStream
	model  string
}

func (s *openAIStream) Recv() (string, error) {
	for {
		response, err := s.stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", io.EOF
			}
			return "", &AIError{Type: ErrTypeStream, Operation: "streaming", Model: s.model, Message: "stream receive error", Cause: err}
		}
		if len(response.Choices) == 0 {
			continue
		}
		if delta := response.Choices[0].Delta.Content; delta != "" {
			return delta, nil
		}
	}
}

func (s *openAIStream) Close() error {
	return s.stream.Close()
}
