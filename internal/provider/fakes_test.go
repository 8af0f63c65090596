package provider

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/geo-benchmark/internal/model"
	"github.com/sells-group/geo-benchmark/pkg/anthropic"
	"github.com/sells-group/geo-benchmark/pkg/openai"
	"github.com/sells-group/geo-benchmark/pkg/responses"
)

type fakeResponses struct {
	mu   sync.Mutex
	reqs []responses.Request
	resp *responses.Response
	err  error
}

func (f *fakeResponses) Create(_ context.Context, req responses.Request) (*responses.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

type fakeChat struct {
	reqs []openai.ChatRequest
	resp *openai.ChatResponse
	err  error
}

func (f *fakeChat) Complete(_ context.Context, req openai.ChatRequest) (*openai.ChatResponse, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

// mockAnthropic is a testify mock of anthropic.Client.
type mockAnthropic struct {
	mock.Mock
}

func (m *mockAnthropic) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if resp := args.Get(0); resp != nil {
		return resp.(*anthropic.MessageResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

// scriptedClient returns queued outcomes in order, repeating the last one.
type scriptedClient struct {
	name  model.Provider
	mu    sync.Mutex
	calls int
	errs  []error
}

func (s *scriptedClient) Name() model.Provider { return s.name }

func (s *scriptedClient) Query(context.Context, string) (*RawResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	if i >= len(s.errs) {
		i = len(s.errs) - 1
	}
	if err := s.errs[i]; err != nil {
		return nil, err
	}
	return &RawResult{Text: "answer", Model: "m"}, nil
}

func grokResponse() *responses.Response {
	return &responses.Response{
		Model: "grok-4-0709",
		Output: []responses.OutputItem{{
			Type: "message",
			Content: []responses.OutputContent{{
				Type: "output_text",
				Text: "ON24 is the leading enterprise webinar platform.",
				Annotations: []responses.Annotation{
					{Type: "url_citation", URL: "https://www.on24.com/", Title: "ON24"},
					{Type: "url_citation", URL: "https://www.g2.com/webinar", Title: "G2"},
					{Type: "url_citation", URL: "https://www.on24.com/", Title: "duplicate"},
					{Type: "url_citation", URL: "", Title: "empty"},
				},
			}},
		}},
		Usage: responses.Usage{InputTokens: 1_000_000, OutputTokens: 0},
	}
}
