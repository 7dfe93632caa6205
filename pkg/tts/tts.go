// Package tts turns coach replies into speech.
//
// Synthesizers return Ogg/Opus so the audio can go straight onto a WebRTC
// track without transcoding.
//
// Example usage:
//
//	synth, _ := tts.NewOpenAI(
//	    tts.WithAPIKey(os.Getenv("OPENAI_API_KEY")),
//	    tts.WithVoice(tts.VoiceAlloy),
//	)
//
//	audio, _ := synth.Stream(ctx, "Two more, you've got this!")
//	defer audio.Close()
//	// audio yields Ogg pages
package tts

import (
	"context"
	"io"
)

// Synthesizer converts text to Ogg/Opus audio.
type Synthesizer interface {
	// Stream starts synthesis. The caller must close the returned reader.
	Stream(ctx context.Context, text string) (io.ReadCloser, error)
}
