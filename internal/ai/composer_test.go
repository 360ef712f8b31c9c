package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/google/generative-ai-go/genai"

	"weride/internal/modules/notify"
)

type fakeModel struct {
	reply string
	err   error
	got   []genai.Part
}

func (f *fakeModel) GenerateContent(_ context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	f.got = parts
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []genai.Part{genai.Text(f.reply)}},
	}}}, nil
}

func arrivalMessage() notify.Message {
	return notify.Message{
		Template: notify.TemplateDriverArrived,
		Medium:   notify.MediumVoice,
		Body:     "Hello Ayesha, Bilal has arrived in a white Corolla, plate LEB-1234. Press 1 if you are coming out.",
		Vars: notify.Vars{
			notify.VarPassengerName: "Ayesha",
			notify.VarDriverName:    "Bilal",
			notify.VarPlate:         "LEB-1234",
		},
	}
}

func TestComposeKeepsFacts(t *testing.T) {
	f := &fakeModel{reply: "```json\n{\"message\": \"Hi Ayesha! Bilal is outside now, plate LEB-1234. Press 1 if you are coming out.\"}\n```"}
	c := &GeminiComposer{model: f}

	got, err := c.Compose(context.Background(), arrivalMessage())
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if got != "Hi Ayesha! Bilal is outside now, plate LEB-1234. Press 1 if you are coming out." {
		t.Fatalf("unexpected message %q", got)
	}
	if len(f.got) != 1 {
		t.Fatalf("expected one prompt part, got %d", len(f.got))
	}
}

func TestComposeRejects(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		err   error
		want  error
	}{
		{"dropped plate", `{"message": "Hi Ayesha, Bilal is outside."}`, nil, ErrRejected},
		{"empty", `{"message": "  "}`, nil, ErrRejected},
		{"not json", "Hi Ayesha", nil, nil},
		{"api error", "", errors.New("quota"), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &GeminiComposer{model: &fakeModel{reply: tt.reply, err: tt.err}}
			_, err := c.Compose(context.Background(), arrivalMessage())
			if err == nil {
				t.Fatal("expected an error so the template text is kept")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}
