package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emitra-backend/internal/models"
)

type stubGenerator struct {
	resp  *genai.GenerateContentResponse
	err   error
	panic interface{}

	system  string
	history []*genai.Content
	parts   []genai.Part
	calls   int
}

func (g *stubGenerator) generate(ctx context.Context, systemInstruction string, history []*genai.Content, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	g.calls++
	g.system = systemInstruction
	g.history = history
	g.parts = parts
	if g.panic != nil {
		panic(g.panic)
	}
	return g.resp, g.err
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content:      &genai.Content{Role: "model", Parts: []genai.Part{genai.Text(text)}},
			FinishReason: genai.FinishReasonStop,
		}},
	}
}

func TestGeminiComplete_Ok(t *testing.T) {
	gen := &stubGenerator{resp: textResponse("  Stay where it is bright.  ")}
	svc := newGeminiService(gen, 1)

	result := svc.Complete(context.Background(), models.CompletionRequest{
		Persona: "persona",
		History: models.Transcript{
			{Role: models.RoleModel, Content: "Hi!"},
			{Role: models.RoleUser, Content: "Help"},
		},
		Message: "Where do I go?",
	})

	require.True(t, result.IsOk())
	assert.Equal(t, "Stay where it is bright.", result.Text)

	assert.Equal(t, "persona", gen.system)
	require.Len(t, gen.history, 2)
	assert.Equal(t, "model", gen.history[0].Role)
	assert.Equal(t, "user", gen.history[1].Role)
	assert.Equal(t, []genai.Part{genai.Text("Hi!")}, gen.history[0].Parts)
	assert.Equal(t, []genai.Part{genai.Text("Where do I go?")}, gen.parts)
}

func TestGeminiComplete_Failures(t *testing.T) {
	tests := []struct {
		name   string
		gen    *stubGenerator
		reason string
	}{
		{"api error", &stubGenerator{err: errors.New("quota exceeded")}, "quota exceeded"},
		{"empty text", &stubGenerator{resp: textResponse("   ")}, "no text returned"},
		{"nil response", &stubGenerator{}, "no text returned"},
		{"no candidates", &stubGenerator{resp: &genai.GenerateContentResponse{}}, "no text returned"},
		{"panic", &stubGenerator{panic: "sdk exploded"}, "sdk exploded"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := newGeminiService(tc.gen, 1)

			result := svc.Complete(context.Background(), models.CompletionRequest{Message: "hello"})

			assert.False(t, result.IsOk())
			assert.Equal(t, tc.reason, result.Reason)
		})
	}
}

func TestGeminiComplete_ReleasesSlotAfterPanic(t *testing.T) {
	gen := &stubGenerator{panic: "boom"}
	svc := newGeminiService(gen, 1)

	svc.Complete(context.Background(), models.CompletionRequest{Message: "hello"})

	gen.panic = nil
	gen.resp = textResponse("recovered")
	result := svc.Complete(context.Background(), models.CompletionRequest{Message: "hello"})
	assert.True(t, result.IsOk())
}

func TestGeminiComplete_CancelledWhileWaitingForSlot(t *testing.T) {
	gen := &stubGenerator{resp: textResponse("unused")}
	svc := newGeminiService(gen, 1)
	require.NoError(t, svc.acquireRate(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result := svc.Complete(ctx, models.CompletionRequest{Message: "hello"})

	assert.False(t, result.IsOk())
	assert.Equal(t, context.Canceled.Error(), result.Reason)
	assert.Zero(t, gen.calls)
}

func TestGeminiSafetyHelpers(t *testing.T) {
	gen := &stubGenerator{resp: textResponse("1. Move to a crowded place")}
	svc := newGeminiService(gen, 2)
	where := models.Position{Latitude: 28.61, Longitude: 77.2}.Describe()

	suggestions, err := svc.GenerateSafetySuggestions(context.Background(), where)
	require.NoError(t, err)
	assert.Equal(t, "1. Move to a crowded place", suggestions)
	assert.Empty(t, gen.system)
	assert.Nil(t, gen.history)
	require.Len(t, gen.parts, 1)
	assert.Contains(t, string(gen.parts[0].(genai.Text)), "User is at latitude 28.61 and longitude 77.2.")

	_, err = svc.GenerateSafetyTips(context.Background(), where)
	require.NoError(t, err)
	assert.Contains(t, string(gen.parts[0].(genai.Text)), "safety tips")

	_, err = svc.Translate(context.Background(), "Stay safe", "Hindi")
	require.NoError(t, err)
	assert.Contains(t, string(gen.parts[0].(genai.Text)), "into Hindi")
	assert.Contains(t, string(gen.parts[0].(genai.Text)), "Stay safe")
}

func TestGeminiSafetyHelpers_WrapFailures(t *testing.T) {
	svc := newGeminiService(&stubGenerator{err: errors.New("unavailable")}, 1)

	tests := []struct {
		name string
		call func() error
		want string
	}{
		{"suggestions", func() error {
			_, err := svc.GenerateSafetySuggestions(context.Background(), "x")
			return err
		}, "Failed to generate personalized safety suggestions."},
		{"tips", func() error {
			_, err := svc.GenerateSafetyTips(context.Background(), "x")
			return err
		}, "Failed to generate contextual safety tips."},
		{"translate", func() error {
			_, err := svc.Translate(context.Background(), "x", "Hindi")
			return err
		}, "Failed to translate text."},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.call()
			var aiErr *AIError
			require.ErrorAs(t, err, &aiErr)
			assert.Equal(t, tc.want, aiErr.Message)
			assert.ErrorContains(t, err, "unavailable")
		})
	}
}
