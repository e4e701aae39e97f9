package assistant

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestSystemPromptCarriesIntakeContext(t *testing.T) {
	got := SystemPrompt(Intake{Emotion: "Ansioso", Message: "preciso conversar"})

	if !strings.Contains(got, "se sentindo: Ansioso") {
		t.Error("intake emotion missing from system prompt")
	}
	if !strings.Contains(got, "Mensagem inicial: preciso conversar") {
		t.Error("intake message missing from system prompt")
	}
	if !strings.Contains(got, "NUNCA dar diagnósticos") {
		t.Error("safety instructions missing from system prompt")
	}
}

func TestSystemPromptOmitsEmptyIntakeFields(t *testing.T) {
	got := SystemPrompt(Intake{})

	if strings.Contains(got, "se sentindo:") {
		t.Error("emotion line rendered for empty intake")
	}
	if strings.Contains(got, "Mensagem inicial:") {
		t.Error("initial message line rendered for empty intake")
	}
}

func TestClassifyGatewayErrors(t *testing.T) {
	cases := []struct {
		raw  string
		want error
	}{
		{"request failed with status 429", ErrRateLimited},
		{"Rate limit exceeded, retry later", ErrRateLimited},
		{"request failed with status 402", ErrPaymentRequired},
		{"Payment Required", ErrPaymentRequired},
		{"insufficient quota for this key", ErrPaymentRequired},
	}
	for _, tc := range cases {
		got := classify(errors.New(tc.raw))
		if !errors.Is(got, tc.want) {
			t.Errorf("classify(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}

	plain := errors.New("connection refused")
	if got := classify(plain); got != plain {
		t.Errorf("classify left unknown errors alone, got %v", got)
	}
}

func TestCompleteRejectsMalformedTranscripts(t *testing.T) {
	svc := &Service{}

	_, err := svc.Complete(context.Background(), nil, Intake{})
	if !errors.Is(err, ErrEmptyTranscript) {
		t.Errorf("empty transcript: got %v, want ErrEmptyTranscript", err)
	}

	_, err = svc.Complete(context.Background(), []Turn{
		{Role: RoleUser, Content: "oi"},
		{Role: RoleAssistant, Content: "olá"},
	}, Intake{})
	if err == nil {
		t.Error("transcript ending with an assistant turn was accepted")
	}
}
