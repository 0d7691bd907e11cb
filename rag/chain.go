package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/prompts"
	"github.com/tmc/langchaingo/schema"
)

const promptTemplate = `You are an assistant for question-answering tasks.
Use the following pieces of retrieved context to answer the question.
If you don't know the answer, just say that you don't know.
Answer in Korean.
The retrieved context describes monthly-rent listings with these columns:
Deposit ('prc'), Monthly Rent ('rentPrc'), Supply Area (공급면적, 'spc1'),
Exclusive Use Area (전용면적, 'spc2'), Listing type such as apartment, studio or
officetel ('rletTpNm'), District ('region'), deposit per area ('prc/spc1',
'prc/spc2') and rent per area ('rentPrc/spc1', 'rentPrc/spc2').
Prices are in units of 10,000 KRW. All listings are in Seongdong-gu, Seoul,
near Hanyang University.

#Question:
{{.question}}

#Context:
{{.context}}

#Answer:
`

// Chain answers a question by retrieving context and prompting the LLM.
type Chain struct {
	retriever   schema.Retriever
	llm         llms.Model
	prompt      prompts.PromptTemplate
	temperature float64
}

func NewChain(retriever schema.Retriever, llm llms.Model, temperature float64) *Chain {
	return &Chain{
		retriever:   retriever,
		llm:         llm,
		prompt:      prompts.NewPromptTemplate(promptTemplate, []string{"question", "context"}),
		temperature: temperature,
	}
}

func (c *Chain) Invoke(ctx context.Context, question string) (string, error) {
	docs, err := c.retriever.GetRelevantDocuments(ctx, question)
	if err != nil {
		return "", fmt.Errorf("rag: retrieve: %w", err)
	}

	prompt, err := c.prompt.Format(map[string]any{
		"question": question,
		"context":  joinDocuments(docs),
	})
	if err != nil {
		return "", fmt.Errorf("rag: format prompt: %w", err)
	}

	answer, err := llms.GenerateFromSinglePrompt(ctx, c.llm, prompt, llms.WithTemperature(c.temperature))
	if err != nil {
		return "", fmt.Errorf("rag: generate: %w", err)
	}
	return strings.TrimSpace(answer), nil
}

func (c *Chain) Retrieve(ctx context.Context, question string) ([]schema.Document, error) {
	return c.retriever.GetRelevantDocuments(ctx, question)
}

func joinDocuments(docs []schema.Document) string {
	parts := make([]string, len(docs))
	for i, d := range docs {
		parts[i] = d.PageContent
	}
	return strings.Join(parts, "\n\n")
}
