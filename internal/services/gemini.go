package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"emitra-backend/internal/logger"
	"emitra-backend/internal/models"
)

const noTextReturned = "no text returned"

// generator is the slice of the Gemini SDK the service relies on.
type generator interface {
	generate(ctx context.Context, systemInstruction string, history []*genai.Content, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

type clientGenerator struct {
	client    *genai.Client
	modelName string
}

// generate builds a fresh model per call; GenerativeModel carries mutable
// settings and must not be shared between concurrent requests.
func (g *clientGenerator) generate(ctx context.Context, systemInstruction string, history []*genai.Content, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	model := g.client.GenerativeModel(g.modelName)
	model.SetTemperature(0.4)
	model.SetTopP(0.95)
	if systemInstruction != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(systemInstruction))
	}

	if len(history) == 0 {
		return model.GenerateContent(ctx, parts...)
	}
	cs := model.StartChat()
	cs.History = history
	return cs.SendMessage(ctx, parts...)
}

type GeminiService struct {
	client   *genai.Client
	gen      generator
	rateChan chan struct{} // Token bucket
}

func NewGeminiService(apiKey, modelName string, concurrentReqs int) (*GeminiService, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	s := newGeminiService(&clientGenerator{client: client, modelName: modelName}, concurrentReqs)
	s.client = client
	return s, nil
}

func newGeminiService(gen generator, concurrentReqs int) *GeminiService {
	if concurrentReqs <= 0 {
		concurrentReqs = 1
	}
	rateChan := make(chan struct{}, concurrentReqs)
	for i := 0; i < concurrentReqs; i++ {
		rateChan <- struct{}{}
	}
	return &GeminiService{gen: gen, rateChan: rateChan}
}

func (s *GeminiService) Close() {
	if s.client != nil {
		s.client.Close()
	}
}

// acquireRate blocks until a rate slot is available
func (s *GeminiService) acquireRate(ctx context.Context) error {
	select {
	case <-s.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Minute):
		return fmt.Errorf("timeout waiting for Gemini rate slot")
	}
}

func (s *GeminiService) releaseRate() {
	s.rateChan <- struct{}{}
}

// Complete performs one chat exchange. Every failure, including a panic in
// the SDK, is returned as CompletionErr.
func (s *GeminiService) Complete(ctx context.Context, req models.CompletionRequest) (result models.CompletionResult) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("Gemini chat panicked: %v", r)
			result = models.CompletionErr(fmt.Sprint(r))
		}
	}()

	if err := s.acquireRate(ctx); err != nil {
		return models.CompletionErr(err.Error())
	}
	defer s.releaseRate()

	resp, err := s.gen.generate(ctx, req.Persona, toContents(req.History), genai.Text(req.Message))
	if err != nil {
		logger.Warnf("Gemini chat error: %v", err)
		return models.CompletionErr(err.Error())
	}

	text := strings.TrimSpace(extractText(resp))
	if text == "" {
		logFinishReasons(resp)
		return models.CompletionErr(noTextReturned)
	}
	return models.CompletionOk(text)
}

// GenerateSafetySuggestions produces actionable advice for a user in distress.
func (s *GeminiService) GenerateSafetySuggestions(ctx context.Context, locationDescription string) (string, error) {
	text, err := s.generateText(ctx, buildSuggestionsPrompt(locationDescription))
	if err != nil {
		return "", &AIError{Message: "Failed to generate personalized safety suggestions.", Err: err}
	}
	return text, nil
}

// GenerateSafetyTips produces general, location-aware safety tips.
func (s *GeminiService) GenerateSafetyTips(ctx context.Context, locationDescription string) (string, error) {
	text, err := s.generateText(ctx, buildSafetyTipsPrompt(locationDescription))
	if err != nil {
		return "", &AIError{Message: "Failed to generate contextual safety tips.", Err: err}
	}
	return text, nil
}

func (s *GeminiService) Translate(ctx context.Context, text, targetLanguage string) (string, error) {
	out, err := s.generateText(ctx, buildTranslatePrompt(text, targetLanguage))
	if err != nil {
		return "", &AIError{Message: "Failed to translate text.", Err: err}
	}
	return out, nil
}

func (s *GeminiService) generateText(ctx context.Context, prompt string) (string, error) {
	if err := s.acquireRate(ctx); err != nil {
		return "", err
	}
	defer s.releaseRate()

	resp, err := s.gen.generate(ctx, "", nil, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("Gemini API error: %w", err)
	}

	text := strings.TrimSpace(extractText(resp))
	if text == "" {
		logFinishReasons(resp)
		return "", fmt.Errorf("Gemini returned empty text")
	}
	return text, nil
}

// Helper functions

func toContents(history models.Transcript) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history))
	for _, t := range history {
		role := "user"
		if t.Role == models.RoleModel {
			role = "model"
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(t.Content)},
		})
	}
	return contents
}

func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}

func logFinishReasons(resp *genai.GenerateContentResponse) {
	if resp == nil {
		logger.Warnf("Gemini returned no response")
		return
	}
	for i, cand := range resp.Candidates {
		if cand.FinishReason != genai.FinishReasonStop {
			logger.Warnf("Gemini candidate %d stopped due to %s", i, cand.FinishReason)
		}
	}
}

func buildSuggestionsPrompt(locationDescription string) string {
	var b strings.Builder
	b.WriteString("You are a safety expert. A user is in distress and needs safety suggestions based on their current location.\n\n")
	b.WriteString(fmt.Sprintf("Location description: %s\n\n", locationDescription))
	b.WriteString("Provide a list of actionable safety suggestions the user can take to ensure their safety.\n")
	b.WriteString("Return plain text only, one suggestion per line.")
	return b.String()
}

func buildSafetyTipsPrompt(locationDescription string) string {
	var b strings.Builder
	b.WriteString("You are a safety expert providing context-aware safety tips.\n\n")
	b.WriteString("Based on the user's current location:\n")
	b.WriteString(fmt.Sprintf("Location Description: %s\n\n", locationDescription))
	b.WriteString("Provide a few concise and practical safety tips relevant to this location.\n")
	b.WriteString("Make sure the suggestions are applicable to the location provided and are easy to follow.\n")
	b.WriteString("Focus on general safety and awareness rather than specific threats.")
	return b.String()
}

func buildTranslatePrompt(text, targetLanguage string) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Translate the following text into %s.\n", targetLanguage))
	b.WriteString("Return only the translated text, without quotes, notes or explanations.\n\n")
	b.WriteString("---TEXT START---\n")
	b.WriteString(text)
	b.WriteString("\n---TEXT END---\n")
	return b.String()
}
