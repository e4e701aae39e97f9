package chat

import "time"

// Status describes where a conversation sits in its lifecycle.
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// Valid reports whether s is one of the known lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusWaiting, StatusActive, StatusCompleted:
		return true
	}
	return false
}

// Chat is one support conversation between a patient and, once accepted,
// a psychologist. PsychologistID stays nil until a professional accepts
// and is set exactly once.
type Chat struct {
	ID             string    `json:"id" gorm:"primaryKey;size:36"`
	PatientID      string    `json:"patientId" gorm:"index;size:36;not null"`
	PsychologistID *string   `json:"psychologistId" gorm:"index;size:36"`
	Status         Status    `json:"status" gorm:"index;size:16;not null"`
	InitialEmotion string    `json:"initialEmotion,omitempty" gorm:"size:64"`
	InitialMessage string    `json:"initialMessage,omitempty" gorm:"type:text"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Terminal reports whether no further transitions are possible.
func (c *Chat) Terminal() bool {
	return c.Status == StatusCompleted
}
