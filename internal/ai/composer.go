// README: Gemini-backed phrasing of rendered voice messages; the template text stays the fallback.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"weride/internal/modules/notify"
)

const maxSpokenLen = 480

var ErrRejected = errors.New("generated message rejected")

// generator is the slice of *genai.GenerativeModel the composer uses.
type generator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// GeminiComposer rephrases voice messages so repeated calls do not sound canned.
type GeminiComposer struct {
	client *genai.Client
	model  generator
}

func NewGeminiComposer(ctx context.Context, apiKey, modelName string) (*GeminiComposer, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	model := client.GenerativeModel(modelName)
	model.ResponseMIMEType = "application/json"
	model.SetTemperature(0.6)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt)}}
	return &GeminiComposer{client: client, model: model}, nil
}

func (c *GeminiComposer) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

type composed struct {
	Message string `json:"message"`
}

// Compose returns a rephrased body for m. Facts present in the template text
// (names, fares, plates, times) must survive the rewrite or the result is rejected.
func (c *GeminiComposer) Compose(ctx context.Context, m notify.Message) (string, error) {
	resp, err := c.model.GenerateContent(ctx, genai.Text(buildPrompt(m)))
	if err != nil {
		return "", fmt.Errorf("gemini generation error: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("no response candidates from Gemini")
	}
	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}

	var out composed
	raw := cleanJSONString(text.String())
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return "", fmt.Errorf("failed to parse JSON response: %w", err)
	}
	msg := strings.TrimSpace(out.Message)
	if msg == "" || len(msg) > maxSpokenLen {
		return "", fmt.Errorf("%w: length %d", ErrRejected, len(msg))
	}
	for _, fact := range facts(m) {
		if !strings.Contains(msg, fact) {
			return "", fmt.Errorf("%w: dropped %q", ErrRejected, fact)
		}
	}
	return msg, nil
}

const systemPrompt = `You write short phone-call scripts for WeRide, a ride-hailing service.
Rewrite the given message so it sounds natural when read aloud by a text-to-speech voice.
Rules:
- Keep every name, number, price, plate and place exactly as written.
- Keep any keypad instructions ("Press 1 ...") word for word.
- One to three sentences, no emojis, no markdown.
Reply as JSON: {"message": "<the rewritten message>"}`

func buildPrompt(m notify.Message) string {
	return fmt.Sprintf("Message type: %s\nOriginal message: %s", m.Template, m.Body)
}

// facts lists the variable values the rendered body actually contains, in a stable order.
func facts(m notify.Message) []string {
	var out []string
	for _, v := range m.Vars {
		if v != "" && strings.Contains(m.Body, v) {
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

func cleanJSONString(input string) string {
	s := strings.TrimSpace(input)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
