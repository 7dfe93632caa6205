// Package inference streams chat completions from a language model.
//
// Generators return a pull-based Stream: call Recv until it returns
// io.EOF, then Close. Any OpenAI-compatible endpoint works through the
// OpenAI generator; Mock serves tests.
//
// Example usage:
//
//	gen, _ := inference.NewOpenAI(
//	    inference.WithAPIKey(os.Getenv("OPENAI_API_KEY")),
//	    inference.WithModel("gpt-4o-mini"),
//	)
//
//	stream, _ := gen.Stream(ctx, &inference.ChatRequest{
//	    Messages: []inference.Message{inference.NewUserMessage("Hello!")},
//	})
//	defer stream.Close()
//	for {
//	    chunk, err := stream.Recv()
//	    if err == io.EOF {
//	        break
//	    }
//	    ...
//	}
package inference

import "context"

// Generator produces streaming chat completions.
type Generator interface {
	// Stream starts a completion for req. Errors that happen before the
	// first chunk may be returned here or from the first Recv.
	Stream(ctx context.Context, req *ChatRequest) (Stream, error)
}

// Stream is a pull-based completion stream.
type Stream interface {
	// Recv returns the next chunk, or io.EOF once the completion is done.
	Recv() (*StreamChunk, error)

	// Close stops the stream and releases resources. Safe to call twice.
	Close() error
}

// StreamChunk is one fragment of a streaming completion.
type StreamChunk struct {
	// ID is the completion ID reported by the provider.
	ID string `json:"id,omitempty"`

	// Delta is the incremental text content.
	Delta string `json:"delta"`

	// FinishReason is set on the last fragment (stop, length, content_filter).
	FinishReason string `json:"finish_reason,omitempty"`
}

// ChatRequest for chat completions.
type ChatRequest struct {
	// Messages is the conversation history, oldest first.
	Messages []Message

	// Model overrides the default model.
	Model string

	// MaxTokens limits the response length. Zero means provider default.
	MaxTokens int

	// Temperature controls randomness (0.0-2.0). Zero means provider default.
	Temperature float64
}

// Role is who authored a history entry.
type Role string

const (
	RoleSystem    Role = "system"    // persona and injected context such as metrics
	RoleUser      Role = "user"      // recognized speech
	RoleAssistant Role = "assistant" // coach replies
)

// Message is one entry of the conversation sent to the model.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// NewSystemMessage returns a system entry.
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// NewUserMessage returns a user entry.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage returns an assistant entry.
func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}
