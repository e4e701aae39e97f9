package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/auxillium/backend/internal/model/account"
	"github.com/auxillium/backend/internal/model/chat"
	"github.com/auxillium/backend/internal/realtime"
)

// MySQL persists the domain through GORM.
type MySQL struct {
	db     *gorm.DB
	broker *realtime.Broker
}

// NewMySQL connects, migrates the schema and returns the store.
func NewMySQL(dsn string, broker *realtime.Broker) (*MySQL, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database DSN is not set")
	}

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger:      logger.Default.LogMode(logger.Warn),
		PrepareStmt: true,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot connect to MySQL: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sql.DB error: %w", err)
	}
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := db.AutoMigrate(
		&chat.Chat{},
		&chat.Message{},
		&chat.Feedback{},
		&chat.Note{},
		&account.Profile{},
	); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &MySQL{db: db, broker: broker}, nil
}

func (s *MySQL) CreateChat(ctx context.Context, c *chat.Chat) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.Status = chat.StatusWaiting
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return err
	}

	created := *c
	s.broker.Publish(realtime.TopicChats, realtime.Event{
		Type: realtime.EventChatCreated,
		Chat: &created,
	})
	return nil
}

func (s *MySQL) GetChat(ctx context.Context, chatID string) (*chat.Chat, error) {
	var c chat.Chat
	err := s.db.WithContext(ctx).First(&c, "id = ?", chatID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrChatNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// UpdateChatStatus runs the compare-and-set as a single conditional
// UPDATE; zero rows affected with an existing row means another writer
// won the race.
func (s *MySQL) UpdateChatStatus(ctx context.Context, chatID string, expected, next chat.Status, psychologistID *string) (*chat.Chat, error) {
	updates := map[string]any{
		"status":     next,
		"updated_at": time.Now().UTC(),
	}
	if psychologistID != nil {
		updates["psychologist_id"] = *psychologistID
	}

	res := s.db.WithContext(ctx).Model(&chat.Chat{}).
		Where("id = ? AND status = ?", chatID, expected).
		Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := s.GetChat(ctx, chatID); err != nil {
			return nil, err
		}
		return nil, ErrConflict
	}

	updated, err := s.GetChat(ctx, chatID)
	if err != nil {
		return nil, err
	}

	ev := realtime.Event{Type: realtime.EventChatStatusChanged, Chat: updated}
	s.broker.Publish(realtime.TopicChats, ev)
	s.broker.Publish(realtime.TopicChat(chatID), ev)
	return updated, nil
}

func (s *MySQL) InsertMessage(ctx context.Context, m *chat.Message) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&chat.Chat{}).Where("id = ?", m.ChatID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrChatNotFound
		}
		return tx.Create(m).Error
	})
	if err != nil {
		return err
	}

	inserted := *m
	s.broker.Publish(realtime.TopicChat(m.ChatID), realtime.Event{
		Type:    realtime.EventMessageAppended,
		Message: &inserted,
	})
	return nil
}

func (s *MySQL) ListMessages(ctx context.Context, chatID string) ([]chat.Message, error) {
	if _, err := s.GetChat(ctx, chatID); err != nil {
		return nil, err
	}
	var msgs []chat.Message
	err := s.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at ASC, seq ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

func (s *MySQL) PsychologistQueue(ctx context.Context, psychologistID string) ([]chat.Chat, error) {
	var chats []chat.Chat
	err := s.db.WithContext(ctx).
		Where("status = ? OR (status = ? AND psychologist_id = ?)",
			chat.StatusWaiting, chat.StatusActive, psychologistID).
		Order("created_at ASC").
		Find(&chats).Error
	return chats, err
}

func (s *MySQL) PatientQueue(ctx context.Context, patientID string) ([]chat.Chat, error) {
	var chats []chat.Chat
	err := s.db.WithContext(ctx).
		Where("patient_id = ? AND status IN ?", patientID,
			[]chat.Status{chat.StatusWaiting, chat.StatusActive}).
		Order("updated_at DESC").
		Find(&chats).Error
	return chats, err
}

func (s *MySQL) CompletedChats(ctx context.Context, userID string, asPsychologist bool) ([]chat.Chat, error) {
	q := s.db.WithContext(ctx).Where("status = ?", chat.StatusCompleted)
	if asPsychologist {
		q = q.Where("psychologist_id = ?", userID)
	} else {
		q = q.Where("patient_id = ?", userID)
	}
	var chats []chat.Chat
	err := q.Order("updated_at DESC").Find(&chats).Error
	return chats, err
}

func (s *MySQL) CreateFeedback(ctx context.Context, f *chat.Feedback) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	f.CreatedAt = time.Now().UTC()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&chat.Chat{}).Where("id = ?", f.ChatID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrChatNotFound
		}
		if err := tx.Model(&chat.Feedback{}).Where("chat_id = ?", f.ChatID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrFeedbackExists
		}
		return tx.Create(f).Error
	})
}

func (s *MySQL) CreateNote(ctx context.Context, n *chat.Note) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	n.CreatedAt = now
	n.UpdatedAt = now

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&chat.Chat{}).Where("id = ?", n.ChatID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrChatNotFound
		}
		if err := tx.Model(&chat.Note{}).Where("chat_id = ?", n.ChatID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrNoteExists
		}
		return tx.Create(n).Error
	})
}

func (s *MySQL) GetNote(ctx context.Context, chatID string) (*chat.Note, error) {
	var n chat.Note
	err := s.db.WithContext(ctx).First(&n, "chat_id = ?", chatID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoteNotFound
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *MySQL) CreateProfile(ctx context.Context, p *account.Profile) error {
	if p.UserID == "" {
		p.UserID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if p.Email != "" {
			var count int64
			if err := tx.Model(&account.Profile{}).Where("email = ?", p.Email).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return ErrEmailTaken
			}
		}
		return tx.Create(p).Error
	})
}

func (s *MySQL) GetProfile(ctx context.Context, userID string) (*account.Profile, error) {
	var p account.Profile
	err := s.db.WithContext(ctx).First(&p, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *MySQL) GetProfileByEmail(ctx context.Context, email string) (*account.Profile, error) {
	var p account.Profile
	err := s.db.WithContext(ctx).First(&p, "email = ?", email).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
