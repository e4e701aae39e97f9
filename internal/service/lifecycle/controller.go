// Package lifecycle owns the state machine of a support chat: who may
// write at which status, how a chat moves between waiting, active and
// completed, and when the assistant is invoked on the patient's behalf.
package lifecycle

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/auxillium/backend/internal/model/account"
	"github.com/auxillium/backend/internal/model/chat"
	"github.com/auxillium/backend/internal/service/assistant"
	"github.com/auxillium/backend/internal/store"
)

var (
	ErrWrongRole       = errors.New("operation not allowed for this role")
	ErrNotParticipant  = errors.New("caller is not a participant of this chat")
	ErrChatClosed      = errors.New("chat is completed")
	ErrAlreadyAccepted = errors.New("chat already accepted")
	ErrEmptyContent    = errors.New("message content cannot be empty")
	ErrInvalidRating   = errors.New("rating must be between 1 and 5")
	ErrChatOpen        = errors.New("chat is not completed yet")
)

// WelcomeMessage greets the patient the moment a chat is created.
const WelcomeMessage = "Olá! Sou o assistente virtual do Auxillium. Estou aqui para te acolher enquanto você aguarda um profissional. Como posso te ajudar agora?"

// HandoffMessage announces the professional taking over.
const HandoffMessage = "Um psicólogo entrou na conversa. A partir de agora, você será atendido por um profissional."

// Controller coordinates all chat transitions against the store.
type Controller struct {
	store     store.Store
	responder assistant.Responder
	aiTimeout time.Duration
	wg        sync.WaitGroup
}

// NewController wires the controller. responder may be nil, in which
// case the assistant never replies and patients simply wait for a
// professional.
func NewController(st store.Store, responder assistant.Responder, aiTimeout time.Duration) *Controller {
	if aiTimeout <= 0 {
		aiTimeout = 30 * time.Second
	}
	return &Controller{store: st, responder: responder, aiTimeout: aiTimeout}
}

// Wait blocks until every scheduled assistant task finished. Tests use
// it; the server only calls it on shutdown.
func (c *Controller) Wait() { c.wg.Wait() }

// CreateChat opens a new waiting conversation for a patient-side caller
// and posts the single assistant welcome message.
func (c *Controller) CreateChat(ctx context.Context, sess account.Session, initialEmotion, initialMessage string) (*chat.Chat, error) {
	if !sess.PatientSide() {
		return nil, ErrWrongRole
	}

	ch := &chat.Chat{
		PatientID:      sess.UserID,
		InitialEmotion: strings.TrimSpace(initialEmotion),
		InitialMessage: strings.TrimSpace(initialMessage),
	}
	if err := c.store.CreateChat(ctx, ch); err != nil {
		return nil, err
	}

	welcome := &chat.Message{
		ChatID:     ch.ID,
		SenderType: chat.SenderAI,
		Content:    WelcomeMessage,
	}
	if err := c.store.InsertMessage(ctx, welcome); err != nil {
		// The chat exists either way; the patient just misses the greeting.
		log.Printf("[lifecycle] failed to post welcome message for chat=%s: %v", ch.ID, err)
	}

	return ch, nil
}

// GetChat returns a chat to one of its participants.
func (c *Controller) GetChat(ctx context.Context, sess account.Session, chatID string) (*chat.Chat, error) {
	ch, err := c.store.GetChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if err := c.authorizeRead(sess, ch); err != nil {
		return nil, err
	}
	return ch, nil
}

// Messages returns the ordered transcript to one of its participants.
func (c *Controller) Messages(ctx context.Context, sess account.Session, chatID string) ([]chat.Message, error) {
	ch, err := c.store.GetChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if err := c.authorizeRead(sess, ch); err != nil {
		return nil, err
	}
	return c.store.ListMessages(ctx, chatID)
}

// SendMessage stores one utterance after evaluating the write guards.
// When the chat is still waiting and the sender is the patient, the
// assistant is invoked in the background; the call returns as soon as
// the user message is durably stored.
func (c *Controller) SendMessage(ctx context.Context, sess account.Session, chatID, content string) (*chat.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}

	ch, err := c.store.GetChat(ctx, chatID)
	if err != nil {
		return nil, err
	}

	var senderType chat.SenderType
	switch {
	case sess.PatientSide():
		if ch.PatientID != sess.UserID {
			return nil, ErrNotParticipant
		}
		if ch.Terminal() {
			return nil, ErrChatClosed
		}
		senderType = chat.SenderUser
	case sess.Psychologist():
		if ch.PsychologistID == nil || *ch.PsychologistID != sess.UserID {
			return nil, ErrNotParticipant
		}
		if ch.Status != chat.StatusActive {
			return nil, ErrChatClosed
		}
		senderType = chat.SenderPsychologist
	default:
		return nil, ErrWrongRole
	}

	senderID := sess.UserID
	msg := &chat.Message{
		ChatID:     chatID,
		SenderType: senderType,
		SenderID:   &senderID,
		Content:    content,
	}
	if err := c.store.InsertMessage(ctx, msg); err != nil {
		return nil, err
	}

	if senderType == chat.SenderUser && ch.Status == chat.StatusWaiting {
		c.scheduleAssistant(chatID)
	}

	return msg, nil
}

// AcceptChat claims a waiting chat for a psychologist. The transition is
// a compare-and-set against the store; exactly one concurrent caller
// wins and the rest observe ErrAlreadyAccepted.
func (c *Controller) AcceptChat(ctx context.Context, sess account.Session, chatID string) (*chat.Chat, error) {
	if !sess.Psychologist() {
		return nil, ErrWrongRole
	}

	psychologistID := sess.UserID
	updated, err := c.store.UpdateChatStatus(ctx, chatID, chat.StatusWaiting, chat.StatusActive, &psychologistID)
	if errors.Is(err, store.ErrConflict) {
		return nil, ErrAlreadyAccepted
	}
	if err != nil {
		return nil, err
	}

	handoff := &chat.Message{
		ChatID:     chatID,
		SenderType: chat.SenderAI,
		Content:    HandoffMessage,
	}
	if err := c.store.InsertMessage(ctx, handoff); err != nil {
		log.Printf("[lifecycle] failed to post hand-off message for chat=%s: %v", chatID, err)
	}

	return updated, nil
}

// EndChat completes a chat on behalf of either party. A waiting chat can
// be ended directly, so the compare-and-set retries once when a
// concurrent accept flips the status underneath us.
func (c *Controller) EndChat(ctx context.Context, sess account.Session, chatID string) (*chat.Chat, error) {
	for attempt := 0; attempt < 2; attempt++ {
		ch, err := c.store.GetChat(ctx, chatID)
		if err != nil {
			return nil, err
		}
		if err := c.authorizeEnd(sess, ch); err != nil {
			return nil, err
		}

		updated, err := c.store.UpdateChatStatus(ctx, chatID, ch.Status, chat.StatusCompleted, nil)
		if errors.Is(err, store.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}
	return nil, ErrChatClosed
}

// SubmitFeedback records the patient's rating once the chat completed.
func (c *Controller) SubmitFeedback(ctx context.Context, sess account.Session, chatID string, rating int, comment string) (*chat.Feedback, error) {
	if !sess.PatientSide() {
		return nil, ErrWrongRole
	}
	if rating < 1 || rating > 5 {
		return nil, ErrInvalidRating
	}

	ch, err := c.store.GetChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if ch.PatientID != sess.UserID {
		return nil, ErrNotParticipant
	}
	if !ch.Terminal() {
		return nil, ErrChatOpen
	}

	fb := &chat.Feedback{
		ChatID:  chatID,
		UserID:  sess.UserID,
		Rating:  rating,
		Comment: strings.TrimSpace(comment),
	}
	if err := c.store.CreateFeedback(ctx, fb); err != nil {
		return nil, err
	}
	return fb, nil
}

// SaveNote records the psychologist's closing note, at most one per chat.
func (c *Controller) SaveNote(ctx context.Context, sess account.Session, chatID string, n chat.Note) (*chat.Note, error) {
	if !sess.Psychologist() {
		return nil, ErrWrongRole
	}

	ch, err := c.store.GetChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if ch.PsychologistID == nil || *ch.PsychologistID != sess.UserID {
		return nil, ErrNotParticipant
	}
	if !ch.Terminal() {
		return nil, ErrChatOpen
	}

	n.ChatID = chatID
	n.PatientID = ch.PatientID
	n.PsychologistID = sess.UserID
	if err := c.store.CreateNote(ctx, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// Note returns a chat's closing note to its psychologist.
func (c *Controller) Note(ctx context.Context, sess account.Session, chatID string) (*chat.Note, error) {
	ch, err := c.store.GetChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if err := c.authorizeRead(sess, ch); err != nil {
		return nil, err
	}
	return c.store.GetNote(ctx, chatID)
}

func (c *Controller) authorizeRead(sess account.Session, ch *chat.Chat) error {
	switch {
	case sess.PatientSide():
		if ch.PatientID != sess.UserID {
			return ErrNotParticipant
		}
	case sess.Psychologist():
		// Professionals may inspect waiting chats before accepting.
		if ch.Status != chat.StatusWaiting && (ch.PsychologistID == nil || *ch.PsychologistID != sess.UserID) {
			return ErrNotParticipant
		}
	default:
		return ErrWrongRole
	}
	return nil
}

func (c *Controller) authorizeEnd(sess account.Session, ch *chat.Chat) error {
	if ch.Terminal() {
		return ErrChatClosed
	}
	switch {
	case sess.PatientSide():
		if ch.PatientID != sess.UserID {
			return ErrNotParticipant
		}
	case sess.Psychologist():
		if ch.PsychologistID == nil || *ch.PsychologistID != sess.UserID {
			return ErrNotParticipant
		}
	default:
		return ErrWrongRole
	}
	return nil
}

// scheduleAssistant submits the fire-and-forget assistant task. The
// waiting guard is re-checked at execution time, not scheduling time, so
// an accept racing with a patient message silences the assistant.
func (c *Controller) scheduleAssistant(chatID string) {
	if c.responder == nil {
		return
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), c.aiTimeout)
		defer cancel()

		c.runAssistant(ctx, chatID)
	}()
}

func (c *Controller) runAssistant(ctx context.Context, chatID string) {
	ch, err := c.store.GetChat(ctx, chatID)
	if err != nil {
		log.Printf("[lifecycle] assistant task: chat=%s fetch failed: %v", chatID, err)
		return
	}
	if ch.Status != chat.StatusWaiting {
		return
	}

	msgs, err := c.store.ListMessages(ctx, chatID)
	if err != nil {
		log.Printf("[lifecycle] assistant task: chat=%s transcript load failed: %v", chatID, err)
		return
	}

	transcript := buildTranscript(msgs)
	if len(transcript) == 0 || transcript[len(transcript)-1].Role != assistant.RoleUser {
		// Nothing new to answer; another reply already landed.
		return
	}

	reply, err := c.responder.Complete(ctx, transcript, assistant.Intake{
		Emotion: ch.InitialEmotion,
		Message: ch.InitialMessage,
	})
	if err != nil {
		switch {
		case errors.Is(err, assistant.ErrRateLimited):
			log.Printf("[lifecycle] assistant rate limited for chat=%s", chatID)
		case errors.Is(err, assistant.ErrPaymentRequired):
			log.Printf("[lifecycle] assistant quota exhausted for chat=%s", chatID)
		default:
			log.Printf("[lifecycle] assistant failed for chat=%s: %v", chatID, err)
		}
		return
	}

	// The accept may have landed while the completion was in flight; a
	// completed or active chat takes no assistant reply.
	ch, err = c.store.GetChat(ctx, chatID)
	if err != nil || ch.Status != chat.StatusWaiting {
		return
	}

	aiMsg := &chat.Message{
		ChatID:     chatID,
		SenderType: chat.SenderAI,
		Content:    reply,
	}
	if err := c.store.InsertMessage(ctx, aiMsg); err != nil {
		log.Printf("[lifecycle] failed to store assistant reply for chat=%s: %v", chatID, err)
	}
}

// buildTranscript maps the stored history into responder turns,
// excluding everything a psychologist wrote so the assistant never sees
// or echoes professional commentary.
func buildTranscript(msgs []chat.Message) []assistant.Turn {
	transcript := make([]assistant.Turn, 0, len(msgs))
	for _, m := range msgs {
		switch m.SenderType {
		case chat.SenderUser:
			transcript = append(transcript, assistant.Turn{Role: assistant.RoleUser, Content: m.Content})
		case chat.SenderAI:
			transcript = append(transcript, assistant.Turn{Role: assistant.RoleAssistant, Content: m.Content})
		}
	}
	return transcript
}
