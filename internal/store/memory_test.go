package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auxillium/backend/internal/model/account"
	"github.com/auxillium/backend/internal/model/chat"
	"github.com/auxillium/backend/internal/realtime"
	"github.com/auxillium/backend/internal/store"
)

func newStore() *store.Memory {
	return store.NewMemory(realtime.NewBroker())
}

func mustCreateChat(t *testing.T, st *store.Memory, patientID string) *chat.Chat {
	t.Helper()
	c := &chat.Chat{PatientID: patientID, InitialEmotion: "Ansioso"}
	require.NoError(t, st.CreateChat(context.Background(), c))
	return c
}

func TestCreateChatAssignsIdentityAndWaitingStatus(t *testing.T) {
	st := newStore()
	c := mustCreateChat(t, st, "patient-1")

	assert.NotEmpty(t, c.ID)
	assert.Equal(t, chat.StatusWaiting, c.Status)
	assert.False(t, c.CreatedAt.IsZero())

	got, err := st.GetChat(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)
}

func TestGetChatUnknownID(t *testing.T) {
	st := newStore()
	_, err := st.GetChat(context.Background(), "no-such-chat")
	assert.ErrorIs(t, err, store.ErrChatNotFound)
}

func TestUpdateChatStatusCompareAndSet(t *testing.T) {
	st := newStore()
	ctx := context.Background()
	c := mustCreateChat(t, st, "patient-1")

	psyID := "psy-1"
	updated, err := st.UpdateChatStatus(ctx, c.ID, chat.StatusWaiting, chat.StatusActive, &psyID)
	require.NoError(t, err)
	assert.Equal(t, chat.StatusActive, updated.Status)
	require.NotNil(t, updated.PsychologistID)
	assert.Equal(t, psyID, *updated.PsychologistID)

	// The expectation no longer holds, so a second accept loses.
	other := "psy-2"
	_, err = st.UpdateChatStatus(ctx, c.ID, chat.StatusWaiting, chat.StatusActive, &other)
	assert.ErrorIs(t, err, store.ErrConflict)

	// Completing keeps the psychologist assignment.
	done, err := st.UpdateChatStatus(ctx, c.ID, chat.StatusActive, chat.StatusCompleted, nil)
	require.NoError(t, err)
	assert.Equal(t, chat.StatusCompleted, done.Status)
	require.NotNil(t, done.PsychologistID)
	assert.Equal(t, psyID, *done.PsychologistID)
}

func TestUpdateChatStatusUnknownChat(t *testing.T) {
	st := newStore()
	_, err := st.UpdateChatStatus(context.Background(), "nope", chat.StatusWaiting, chat.StatusActive, nil)
	assert.ErrorIs(t, err, store.ErrChatNotFound)
}

func TestInsertMessageRequiresParentChat(t *testing.T) {
	st := newStore()
	err := st.InsertMessage(context.Background(), &chat.Message{
		ChatID:     "orphan",
		SenderType: chat.SenderUser,
		Content:    "oi",
	})
	assert.ErrorIs(t, err, store.ErrChatNotFound)
}

func TestListMessagesOrderedBySeqOnEqualTimestamps(t *testing.T) {
	st := newStore()
	ctx := context.Background()
	c := mustCreateChat(t, st, "patient-1")

	// Force identical createdAt values; seq alone must keep insertion order.
	at := time.Now().UTC()
	for _, content := range []string{"primeira", "segunda", "terceira"} {
		require.NoError(t, st.InsertMessage(ctx, &chat.Message{
			ChatID:     c.ID,
			SenderType: chat.SenderUser,
			Content:    content,
			CreatedAt:  at,
		}))
	}

	msgs, err := st.ListMessages(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "primeira", msgs[0].Content)
	assert.Equal(t, "segunda", msgs[1].Content)
	assert.Equal(t, "terceira", msgs[2].Content)
}

func TestPsychologistQueueFilterAndOrder(t *testing.T) {
	st := newStore()
	ctx := context.Background()

	first := mustCreateChat(t, st, "patient-1")
	time.Sleep(2 * time.Millisecond)
	second := mustCreateChat(t, st, "patient-2")
	time.Sleep(2 * time.Millisecond)
	mine := mustCreateChat(t, st, "patient-3")
	time.Sleep(2 * time.Millisecond)
	foreign := mustCreateChat(t, st, "patient-4")
	done := mustCreateChat(t, st, "patient-5")

	me, other := "psy-me", "psy-other"
	_, err := st.UpdateChatStatus(ctx, mine.ID, chat.StatusWaiting, chat.StatusActive, &me)
	require.NoError(t, err)
	_, err = st.UpdateChatStatus(ctx, foreign.ID, chat.StatusWaiting, chat.StatusActive, &other)
	require.NoError(t, err)
	_, err = st.UpdateChatStatus(ctx, done.ID, chat.StatusWaiting, chat.StatusCompleted, nil)
	require.NoError(t, err)

	queue, err := st.PsychologistQueue(ctx, me)
	require.NoError(t, err)
	require.Len(t, queue, 3)

	// Oldest waiting chat first; another professional's active chat and
	// completed chats never show up.
	assert.Equal(t, first.ID, queue[0].ID)
	assert.Equal(t, second.ID, queue[1].ID)
	assert.Equal(t, mine.ID, queue[2].ID)
}

func TestPatientQueueOrderAndExclusions(t *testing.T) {
	st := newStore()
	ctx := context.Background()

	older := mustCreateChat(t, st, "patient-1")
	time.Sleep(2 * time.Millisecond)
	newer := mustCreateChat(t, st, "patient-1")
	closed := mustCreateChat(t, st, "patient-1")
	mustCreateChat(t, st, "patient-2")

	_, err := st.UpdateChatStatus(ctx, closed.ID, chat.StatusWaiting, chat.StatusCompleted, nil)
	require.NoError(t, err)

	queue, err := st.PatientQueue(ctx, "patient-1")
	require.NoError(t, err)
	require.Len(t, queue, 2)

	// Most recently touched first.
	assert.Equal(t, newer.ID, queue[0].ID)
	assert.Equal(t, older.ID, queue[1].ID)
}

func TestCompletedChatsPerRole(t *testing.T) {
	st := newStore()
	ctx := context.Background()

	c := mustCreateChat(t, st, "patient-1")
	psyID := "psy-1"
	_, err := st.UpdateChatStatus(ctx, c.ID, chat.StatusWaiting, chat.StatusActive, &psyID)
	require.NoError(t, err)
	_, err = st.UpdateChatStatus(ctx, c.ID, chat.StatusActive, chat.StatusCompleted, nil)
	require.NoError(t, err)

	mustCreateChat(t, st, "patient-1") // still open, excluded

	asPatient, err := st.CompletedChats(ctx, "patient-1", false)
	require.NoError(t, err)
	require.Len(t, asPatient, 1)
	assert.Equal(t, c.ID, asPatient[0].ID)

	asPsy, err := st.CompletedChats(ctx, psyID, true)
	require.NoError(t, err)
	require.Len(t, asPsy, 1)
	assert.Equal(t, c.ID, asPsy[0].ID)

	none, err := st.CompletedChats(ctx, "psy-2", true)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestFeedbackIsUniquePerChat(t *testing.T) {
	st := newStore()
	ctx := context.Background()
	c := mustCreateChat(t, st, "patient-1")

	fb := &chat.Feedback{ChatID: c.ID, UserID: "patient-1", Rating: 5}
	require.NoError(t, st.CreateFeedback(ctx, fb))
	assert.NotEmpty(t, fb.ID)

	err := st.CreateFeedback(ctx, &chat.Feedback{ChatID: c.ID, UserID: "patient-1", Rating: 1})
	assert.ErrorIs(t, err, store.ErrFeedbackExists)
}

func TestNoteIsUniquePerChat(t *testing.T) {
	st := newStore()
	ctx := context.Background()
	c := mustCreateChat(t, st, "patient-1")

	_, err := st.GetNote(ctx, c.ID)
	assert.ErrorIs(t, err, store.ErrNoteNotFound)

	n := &chat.Note{ChatID: c.ID, PatientID: "patient-1", PsychologistID: "psy-1", Summary: "resumo"}
	require.NoError(t, st.CreateNote(ctx, n))

	err = st.CreateNote(ctx, &chat.Note{ChatID: c.ID, PatientID: "patient-1", PsychologistID: "psy-1"})
	assert.ErrorIs(t, err, store.ErrNoteExists)

	got, err := st.GetNote(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "resumo", got.Summary)
}

func TestProfileEmailUniquenessIsCaseInsensitive(t *testing.T) {
	st := newStore()
	ctx := context.Background()

	p := &account.Profile{Role: account.RolePatient, FullName: "Ana", Email: "ana@example.com"}
	require.NoError(t, st.CreateProfile(ctx, p))
	assert.NotEmpty(t, p.UserID)

	err := st.CreateProfile(ctx, &account.Profile{Role: account.RolePatient, Email: "ANA@example.com"})
	assert.ErrorIs(t, err, store.ErrEmailTaken)

	got, err := st.GetProfileByEmail(ctx, "Ana@Example.com")
	require.NoError(t, err)
	assert.Equal(t, p.UserID, got.UserID)

	// Anonymous profiles carry no email and never collide.
	require.NoError(t, st.CreateProfile(ctx, &account.Profile{Role: account.RolePatient, IsAnonymous: true}))
	require.NoError(t, st.CreateProfile(ctx, &account.Profile{Role: account.RolePatient, IsAnonymous: true}))
}

func TestStorePublishesLifecycleEvents(t *testing.T) {
	broker := realtime.NewBroker()
	st := store.NewMemory(broker)
	ctx := context.Background()

	queueSub := broker.Subscribe(realtime.TopicChats)
	defer queueSub.Close()

	c := &chat.Chat{PatientID: "patient-1"}
	require.NoError(t, st.CreateChat(ctx, c))

	ev := <-queueSub.Events()
	assert.Equal(t, realtime.EventChatCreated, ev.Type)
	require.NotNil(t, ev.Chat)
	assert.Equal(t, c.ID, ev.Chat.ID)

	chatSub := broker.Subscribe(realtime.TopicChat(c.ID))
	defer chatSub.Close()

	require.NoError(t, st.InsertMessage(ctx, &chat.Message{
		ChatID:     c.ID,
		SenderType: chat.SenderUser,
		Content:    "oi",
	}))

	ev = <-chatSub.Events()
	assert.Equal(t, realtime.EventMessageAppended, ev.Type)
	require.NotNil(t, ev.Message)
	assert.Equal(t, "oi", ev.Message.Content)

	psyID := "psy-1"
	_, err := st.UpdateChatStatus(ctx, c.ID, chat.StatusWaiting, chat.StatusActive, &psyID)
	require.NoError(t, err)

	ev = <-chatSub.Events()
	assert.Equal(t, realtime.EventChatStatusChanged, ev.Type)
	require.NotNil(t, ev.Chat)
	assert.Equal(t, chat.StatusActive, ev.Chat.Status)

	ev = <-queueSub.Events()
	assert.Equal(t, realtime.EventChatStatusChanged, ev.Type)
}
