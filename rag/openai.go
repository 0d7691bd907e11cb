package rag

import (
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// NewOpenAI returns the chat model and embedder backed by the OpenAI API.
func NewOpenAI(apiKey, chatModel, embeddingModel string) (*openai.LLM, embeddings.Embedder, error) {
	if apiKey == "" {
		return nil, nil, fmt.Errorf("rag: OPENAI_API_KEY is not set")
	}

	llm, err := openai.New(
		openai.WithToken(apiKey),
		openai.WithModel(chatModel),
		openai.WithEmbeddingModel(embeddingModel),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("rag: openai client: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(llm, embeddings.WithBatchSize(embedBatchSize))
	if err != nil {
		return nil, nil, fmt.Errorf("rag: embedder: %w", err)
	}
	return llm, embedder, nil
}
