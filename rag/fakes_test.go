package rag

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/tmc/langchaingo/llms"

	"naver-estate/utils"
)

var vocabulary = []string{"성수", "옥수", "아파트", "원룸", "오피스텔"}

// keywordEmbedder maps text onto keyword counts so that similarity is
// predictable without a network call.
type keywordEmbedder struct {
	docCalls atomic.Int32
}

func (e *keywordEmbedder) vector(text string) []float32 {
	v := make([]float32, len(vocabulary)+1)
	for i, w := range vocabulary {
		v[i] = float32(strings.Count(text, w))
	}
	v[len(vocabulary)] = 0.1
	return v
}

func (e *keywordEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	e.docCalls.Add(1)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vector(t)
	}
	return out, nil
}

func (e *keywordEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return e.vector(text), nil
}

// recordingLLM returns a fixed answer and remembers the last prompt.
type recordingLLM struct {
	answer string

	mu          sync.Mutex
	prompt      string
	temperature float64
}

func (l *recordingLLM) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	var opts llms.CallOptions
	for _, o := range options {
		o(&opts)
	}

	var sb strings.Builder
	for _, m := range messages {
		for _, p := range m.Parts {
			if tc, ok := p.(llms.TextContent); ok {
				sb.WriteString(tc.Text)
			}
		}
	}

	l.mu.Lock()
	l.prompt = sb.String()
	l.temperature = opts.Temperature
	l.mu.Unlock()

	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: "  " + l.answer + "\n"}}}, nil
}

func (l *recordingLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, l, prompt, options...)
}

func (l *recordingLLM) lastPrompt() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.prompt
}

func quietLogger() *utils.Logger {
	return utils.NewLoggerWithOptions(utils.LoggerOptions{Level: "error"})
}
