// Package queue derives role-specific worklists from the store. The
// views are pure projections: every change notification triggers a
// recompute, nothing is materialized.
package queue

import (
	"context"

	"github.com/auxillium/backend/internal/model/account"
	"github.com/auxillium/backend/internal/model/chat"
	"github.com/auxillium/backend/internal/store"
)

// Service answers queue and history reads.
type Service struct {
	store store.Store
}

// NewService wires the projection over the given store.
func NewService(st store.Store) *Service {
	return &Service{store: st}
}

// Open returns the caller's worklist. Psychologists see every waiting
// chat plus their own active ones, oldest first; patients see their own
// open chats, most recently touched first.
func (s *Service) Open(ctx context.Context, sess account.Session) ([]chat.Chat, error) {
	if sess.Psychologist() {
		return s.store.PsychologistQueue(ctx, sess.UserID)
	}
	return s.store.PatientQueue(ctx, sess.UserID)
}

// Completed returns the caller's finished conversations.
func (s *Service) Completed(ctx context.Context, sess account.Session) ([]chat.Chat, error) {
	return s.store.CompletedChats(ctx, sess.UserID, sess.Psychologist())
}
