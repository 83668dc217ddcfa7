package tts

import (
	"context"
	"fmt"
	"strings"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
)

// Google synthesizes MP3 audio with Cloud Text-to-Speech. Credentials come
// from GOOGLE_APPLICATION_CREDENTIALS.
type Google struct {
	client *texttospeech.Client
	voice  string
}

func NewGoogle(ctx context.Context, voice string) (*Google, error) {
	c, err := texttospeech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("tts client: %w", err)
	}
	return &Google{client: c, voice: voice}, nil
}

func (g *Google) Close() error { return g.client.Close() }

func (g *Google) Synthesize(ctx context.Context, text string) ([]byte, error) {
	resp, err := g.client.SynthesizeSpeech(ctx, &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: languageCode(g.voice),
			Name:         g.voice,
		},
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding: texttospeechpb.AudioEncoding_MP3,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("synthesize: %w", err)
	}
	return resp.AudioContent, nil
}

// languageCode extracts "en-US" from a voice name like "en-US-Neural2-F".
func languageCode(voice string) string {
	parts := strings.SplitN(voice, "-", 3)
	if len(parts) < 2 {
		return "en-US"
	}
	return parts[0] + "-" + parts[1]
}
