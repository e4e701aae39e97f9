// Package store is the durable record of chats, messages and their
// closing artifacts, with row-level change notification through the
// realtime broker. Status transitions are conditional updates keyed on
// the expected prior status so concurrent writers cannot lose updates.
package store

import (
	"context"
	"errors"

	"github.com/auxillium/backend/internal/model/account"
	"github.com/auxillium/backend/internal/model/chat"
)

var (
	ErrChatNotFound    = errors.New("chat not found")
	ErrProfileNotFound = errors.New("profile not found")
	ErrConflict        = errors.New("chat status conflict")
	ErrNoteExists      = errors.New("note already exists for chat")
	ErrNoteNotFound    = errors.New("note not found")
	ErrFeedbackExists  = errors.New("feedback already exists for chat")
	ErrEmailTaken      = errors.New("email already registered")
)

// Store is the persistence boundary consumed by the lifecycle controller
// and the auth service.
type Store interface {
	CreateChat(ctx context.Context, c *chat.Chat) error
	GetChat(ctx context.Context, chatID string) (*chat.Chat, error)

	// UpdateChatStatus flips a chat from expected to next atomically,
	// optionally assigning the accepting psychologist. It returns
	// ErrConflict when the row no longer holds the expected status.
	UpdateChatStatus(ctx context.Context, chatID string, expected, next chat.Status, psychologistID *string) (*chat.Chat, error)

	// InsertMessage appends one immutable message. The parent chat must
	// exist; orphaned rows are never created.
	InsertMessage(ctx context.Context, m *chat.Message) error
	ListMessages(ctx context.Context, chatID string) ([]chat.Message, error)

	// PsychologistQueue lists chats visible to a professional: every
	// waiting chat plus the active ones assigned to them, oldest first.
	PsychologistQueue(ctx context.Context, psychologistID string) ([]chat.Chat, error)

	// PatientQueue lists a patient's open chats, most recently touched
	// first.
	PatientQueue(ctx context.Context, patientID string) ([]chat.Chat, error)

	// CompletedChats lists the caller's finished conversations, most
	// recent first.
	CompletedChats(ctx context.Context, userID string, asPsychologist bool) ([]chat.Chat, error)

	CreateFeedback(ctx context.Context, f *chat.Feedback) error
	CreateNote(ctx context.Context, n *chat.Note) error
	GetNote(ctx context.Context, chatID string) (*chat.Note, error)

	CreateProfile(ctx context.Context, p *account.Profile) error
	GetProfile(ctx context.Context, userID string) (*account.Profile, error)
	GetProfileByEmail(ctx context.Context, email string) (*account.Profile, error)
}
