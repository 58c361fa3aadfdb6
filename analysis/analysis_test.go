package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

type fakeModel struct {
	resp *llms.ContentResponse
	err  error
	got  []llms.MessageContent
	opts llms.CallOptions
}

func (f *fakeModel) GenerateContent(_ context.Context, msgs []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.got = msgs
	for _, o := range options {
		o(&f.opts)
	}
	return f.resp, f.err
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func TestAnalyzeSendsSystemAndDocument(t *testing.T) {
	m := &fakeModel{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: "  A short summary.  "}}}}
	a := New(m, DefaultConfig())

	out, err := a.Analyze(context.Background(), "document text")
	require.NoError(t, err)
	assert.Equal(t, "A short summary.", out)

	require.Len(t, m.got, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, m.got[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, m.got[1].Role)
	assert.Equal(t, llms.TextContent{Text: "document text"}, m.got[1].Parts[0])
	assert.Equal(t, 800, m.opts.MaxTokens)
}

func TestAnalyzeErrors(t *testing.T) {
	boom := errors.New("rate limited")
	_, err := New(&fakeModel{err: boom}, DefaultConfig()).Analyze(context.Background(), "x")
	assert.ErrorIs(t, err, boom)

	_, err = New(&fakeModel{resp: &llms.ContentResponse{}}, DefaultConfig()).Analyze(context.Background(), "x")
	assert.ErrorIs(t, err, ErrEmptyResponse)

	blank := &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: " "}}}
	_, err = New(&fakeModel{resp: blank}, DefaultConfig()).Analyze(context.Background(), "x")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}
