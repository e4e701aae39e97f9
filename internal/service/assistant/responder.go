// Package assistant wraps the hosted completion model behind the single
// call the lifecycle controller needs: one transcript in, one reply out.
// The responder is unreliable by contract; callers own the failure
// policy.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/auxillium/backend/internal/config"
)

// Role is a transcript role.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one transcript entry. The last turn submitted must be the
// user's newest message.
type Turn struct {
	Role    Role
	Content string
}

// Intake is the immutable metadata captured when the chat was created.
type Intake struct {
	Emotion string
	Message string
}

// Classified assistant failures. All of them are swallowed upstream;
// classification only drives logging.
var (
	ErrRateLimited     = errors.New("assistant rate limited")
	ErrPaymentRequired = errors.New("assistant payment required")
	ErrEmptyTranscript = errors.New("assistant transcript is empty")
)

// Responder produces one reply for a conversation transcript.
type Responder interface {
	Complete(ctx context.Context, transcript []Turn, intake Intake) (string, error)
}

// Service runs the completion through an eino chain: system prompt,
// history placeholder, then the newest user message.
type Service struct {
	chain compose.Runnable[map[string]any, *schema.Message]
}

// NewService compiles the chain against the configured Ark model.
func NewService(ctx context.Context, cfg config.AIConfig) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return newService(ctx, chatModel)
}

func newService(ctx context.Context, chatModel model.ChatModel) (*Service, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{chain: runnable}, nil
}

// Complete submits the transcript and intake context and returns the
// reply text. The transcript must end with a user turn.
func (s *Service) Complete(ctx context.Context, transcript []Turn, intake Intake) (string, error) {
	if len(transcript) == 0 {
		return "", ErrEmptyTranscript
	}

	last := transcript[len(transcript)-1]
	if last.Role != RoleUser {
		return "", fmt.Errorf("transcript must end with a user turn, got %q", last.Role)
	}

	history := make([]*schema.Message, 0, len(transcript)-1)
	for _, turn := range transcript[:len(transcript)-1] {
		switch turn.Role {
		case RoleUser:
			history = append(history, schema.UserMessage(turn.Content))
		case RoleAssistant:
			history = append(history, schema.AssistantMessage(turn.Content, nil))
		}
	}

	response, err := s.chain.Invoke(ctx, map[string]any{
		"system":  SystemPrompt(intake),
		"history": history,
		"query":   last.Content,
	})
	if err != nil {
		return "", classify(err)
	}

	reply := strings.TrimSpace(response.Content)
	if reply == "" {
		return "", fmt.Errorf("assistant returned an empty reply")
	}
	return reply, nil
}

// classify folds gateway failures into the known taxonomy. The hosted
// gateway signals quota problems with HTTP 429 and 402.
func classify(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate limit"):
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	case strings.Contains(msg, "402") || strings.Contains(msg, "payment required") || strings.Contains(msg, "insufficient quota"):
		return fmt.Errorf("%w: %v", ErrPaymentRequired, err)
	default:
		return err
	}
}
