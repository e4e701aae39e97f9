package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/auxillium/backend/internal/model/account"
	"github.com/auxillium/backend/internal/model/chat"
	"github.com/auxillium/backend/internal/realtime"
)

// Memory keeps everything behind one mutex. It backs tests and local
// development; the MySQL store is the production implementation of the
// same interface.
type Memory struct {
	mu       sync.RWMutex
	broker   *realtime.Broker
	chats    map[string]chat.Chat
	messages map[string][]chat.Message
	feedback map[string]chat.Feedback
	notes    map[string]chat.Note
	profiles map[string]account.Profile
	seq      uint64
}

// NewMemory bootstraps the in-memory store.
func NewMemory(broker *realtime.Broker) *Memory {
	return &Memory{
		broker:   broker,
		chats:    make(map[string]chat.Chat),
		messages: make(map[string][]chat.Message),
		feedback: make(map[string]chat.Feedback),
		notes:    make(map[string]chat.Note),
		profiles: make(map[string]account.Profile),
	}
}

func (s *Memory) CreateChat(_ context.Context, c *chat.Chat) error {
	now := time.Now().UTC()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.Status = chat.StatusWaiting
	c.CreatedAt = now
	c.UpdatedAt = now

	s.mu.Lock()
	s.chats[c.ID] = *c
	s.messages[c.ID] = make([]chat.Message, 0, 16)
	s.mu.Unlock()

	s.publishChat(realtime.EventChatCreated, *c)
	return nil
}

func (s *Memory) GetChat(_ context.Context, chatID string) (*chat.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chats[chatID]
	if !ok {
		return nil, ErrChatNotFound
	}
	return &c, nil
}

func (s *Memory) UpdateChatStatus(_ context.Context, chatID string, expected, next chat.Status, psychologistID *string) (*chat.Chat, error) {
	s.mu.Lock()
	c, ok := s.chats[chatID]
	if !ok {
		s.mu.Unlock()
		return nil, ErrChatNotFound
	}
	if c.Status != expected {
		s.mu.Unlock()
		return nil, ErrConflict
	}
	c.Status = next
	if psychologistID != nil {
		id := *psychologistID
		c.PsychologistID = &id
	}
	c.UpdatedAt = time.Now().UTC()
	s.chats[chatID] = c
	s.mu.Unlock()

	s.publishChat(realtime.EventChatStatusChanged, c)
	return &c, nil
}

func (s *Memory) InsertMessage(_ context.Context, m *chat.Message) error {
	s.mu.Lock()
	if _, ok := s.chats[m.ChatID]; !ok {
		s.mu.Unlock()
		return ErrChatNotFound
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	s.seq++
	m.Seq = s.seq
	s.messages[m.ChatID] = append(s.messages[m.ChatID], *m)
	msg := *m
	s.mu.Unlock()

	s.broker.Publish(realtime.TopicChat(msg.ChatID), realtime.Event{
		Type:    realtime.EventMessageAppended,
		Message: &msg,
	})
	return nil
}

func (s *Memory) ListMessages(_ context.Context, chatID string) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs, ok := s.messages[chatID]
	if !ok {
		return nil, ErrChatNotFound
	}
	out := make([]chat.Message, len(msgs))
	copy(out, msgs)
	chat.SortMessages(out)
	return out, nil
}

func (s *Memory) PsychologistQueue(_ context.Context, psychologistID string) ([]chat.Chat, error) {
	s.mu.RLock()
	out := make([]chat.Chat, 0, 8)
	for _, c := range s.chats {
		if c.Status == chat.StatusWaiting {
			out = append(out, c)
			continue
		}
		if c.Status == chat.StatusActive && c.PsychologistID != nil && *c.PsychologistID == psychologistID {
			out = append(out, c)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Memory) PatientQueue(_ context.Context, patientID string) ([]chat.Chat, error) {
	s.mu.RLock()
	out := make([]chat.Chat, 0, 8)
	for _, c := range s.chats {
		if c.PatientID == patientID && (c.Status == chat.StatusWaiting || c.Status == chat.StatusActive) {
			out = append(out, c)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (s *Memory) CompletedChats(_ context.Context, userID string, asPsychologist bool) ([]chat.Chat, error) {
	s.mu.RLock()
	out := make([]chat.Chat, 0, 8)
	for _, c := range s.chats {
		if c.Status != chat.StatusCompleted {
			continue
		}
		if asPsychologist {
			if c.PsychologistID != nil && *c.PsychologistID == userID {
				out = append(out, c)
			}
		} else if c.PatientID == userID {
			out = append(out, c)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (s *Memory) CreateFeedback(_ context.Context, f *chat.Feedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.chats[f.ChatID]; !ok {
		return ErrChatNotFound
	}
	if _, ok := s.feedback[f.ChatID]; ok {
		return ErrFeedbackExists
	}
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	f.CreatedAt = time.Now().UTC()
	s.feedback[f.ChatID] = *f
	return nil
}

func (s *Memory) CreateNote(_ context.Context, n *chat.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.chats[n.ChatID]; !ok {
		return ErrChatNotFound
	}
	if _, ok := s.notes[n.ChatID]; ok {
		return ErrNoteExists
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	n.CreatedAt = now
	n.UpdatedAt = now
	s.notes[n.ChatID] = *n
	return nil
}

func (s *Memory) GetNote(_ context.Context, chatID string) (*chat.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.notes[chatID]
	if !ok {
		return nil, ErrNoteNotFound
	}
	return &n, nil
}

func (s *Memory) CreateProfile(_ context.Context, p *account.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.Email != "" {
		for _, existing := range s.profiles {
			if strings.EqualFold(existing.Email, p.Email) {
				return ErrEmailTaken
			}
		}
	}
	if p.UserID == "" {
		p.UserID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	s.profiles[p.UserID] = *p
	return nil
}

func (s *Memory) GetProfile(_ context.Context, userID string) (*account.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, ErrProfileNotFound
	}
	return &p, nil
}

func (s *Memory) GetProfileByEmail(_ context.Context, email string) (*account.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.profiles {
		if strings.EqualFold(p.Email, email) {
			return &p, nil
		}
	}
	return nil, ErrProfileNotFound
}

func (s *Memory) publishChat(evType realtime.EventType, c chat.Chat) {
	ev := realtime.Event{Type: evType, Chat: &c}
	s.broker.Publish(realtime.TopicChats, ev)
	if evType != realtime.EventChatCreated {
		s.broker.Publish(realtime.TopicChat(c.ID), ev)
	}
}
