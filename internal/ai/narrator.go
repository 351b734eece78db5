package ai

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"
)

// Narrate submits text to the text-to-speech model and returns the audio
// as a data URI. Uploading to blob storage instead is a deployment concern;
// the data URI keeps the record self-contained.
func (c *Client) Narrate(ctx context.Context, text string) (string, error) {
	resp, err := c.api.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model: openai.TTSModel1,
		Voice: openai.VoiceAlloy,
		Input: text,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNarration, err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read audio stream: %v", ErrNarration, err)
	}
	if len(audio) == 0 {
		return "", fmt.Errorf("%w: empty audio response", ErrNarration)
	}

	return "data:audio/mpeg;base64," + base64.StdEncoding.EncodeToString(audio), nil
}
