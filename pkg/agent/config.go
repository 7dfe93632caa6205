package agent

import (
	"log/slog"
)

// DefaultInstructions is the coaching persona every session starts with.
const DefaultInstructions = "You are a cheerful fitness coach.\n" +
	"You will be given JSON metrics about reps and sets.\n" +
	"Rules:\n" +
	"• Motivate every 3–5 reps, referencing the current count.\n" +
	"• Congratulate on set/workout completion.\n" +
	"• Use ≤15 words, like a human trainer."

// Config holds agent settings. It is copied at construction and never
// changed afterwards.
type Config struct {
	// Instructions is the persona, seeded as the first system entry of
	// every session's history.
	Instructions string

	// LLMModel overrides the generator's default model.
	LLMModel string

	// MaxTokens caps each reply. Zero leaves it to the provider.
	MaxTokens int

	// Temperature for generation. Zero leaves it to the provider.
	Temperature float64

	// PendingTurns is how many finished utterances may wait while a
	// turn is running.
	PendingTurns int

	Logger *slog.Logger
}

// DefaultConfig returns the coaching defaults.
func DefaultConfig() Config {
	return Config{
		Instructions: DefaultInstructions,
		MaxTokens:    60,
		PendingTurns: 8,
	}
}
