package inference

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/packages/ssestream"

	"github.com/teslashibe/go-coach/internal/httpc"
)

const providerOpenAI = "openai"

// OpenAI streams completions from any OpenAI-compatible endpoint.
type OpenAI struct {
	client openai.Client
	config *Config
	logger *slog.Logger
}

// NewOpenAI creates a generator. An API key is required.
func NewOpenAI(opts ...Option) (*OpenAI, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = httpc.NewClient(cfg.Timeout)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(hc),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &OpenAI{
		client: openai.NewClient(reqOpts...),
		config: cfg,
		logger: logger.With("component", "inference.openai"),
	}, nil
}

// Stream implements Generator. The SDK defers transport errors to the
// first read, so they surface from Recv.
func (o *OpenAI) Stream(ctx context.Context, req *ChatRequest) (Stream, error) {
	if req == nil || len(req.Messages) == 0 {
		return nil, WrapError(providerOpenAI, ErrNoMessages)
	}

	params := o.params(req)
	o.logger.Debug("stream request",
		"model", params.Model,
		"messages", len(params.Messages),
	)

	return &openAIStream{
		stream: o.client.Chat.Completions.NewStreaming(ctx, params),
	}, nil
}

func (o *OpenAI) params(req *ChatRequest) openai.ChatCompletionNewParams {
	model := req.Model
	if model == "" {
		model = o.config.Model
	}

	params := openai.ChatCompletionNewParams{
		Messages: toOpenAIMessages(req.Messages),
		Model:    model,
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = o.config.MaxTokens
	}
	if maxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(maxTokens))
	}

	temperature := req.Temperature
	if temperature == 0 {
		temperature = o.config.Temperature
	}
	if temperature > 0 {
		params.Temperature = param.NewOpt(temperature)
	}

	return params
}

func toOpenAIMessages(msgs []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

// openAIStream adapts the SDK's SSE stream to Stream.
type openAIStream struct {
	stream *ssestream.Stream[openai.ChatCompletionChunk]

	mu     sync.Mutex
	closed bool
}

func (s *openAIStream) Recv() (*StreamChunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStreamClosed
	}

	for s.stream.Next() {
		chunk := s.stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]
		if choice.Delta.Content == "" && choice.FinishReason == "" {
			continue
		}
		return &StreamChunk{
			ID:           chunk.ID,
			Delta:        choice.Delta.Content,
			FinishReason: choice.FinishReason,
		}, nil
	}

	if err := s.stream.Err(); err != nil {
		return nil, WrapError(providerOpenAI, err)
	}
	return nil, io.EOF
}

func (s *openAIStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.stream.Close()
}

var _ Generator = (*OpenAI)(nil)
