package chat

import "time"

// Feedback is the patient-side closing artifact: a 1-5 rating with an
// optional comment, written only after the chat completed.
type Feedback struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	ChatID    string    `json:"chatId" gorm:"index;size:36;not null"`
	UserID    string    `json:"userId" gorm:"size:36;not null"`
	Rating    int       `json:"rating" gorm:"not null"`
	Comment   string    `json:"comment,omitempty" gorm:"type:text"`
	CreatedAt time.Time `json:"createdAt"`
}

// TableName keeps the singular table name used by the schema.
func (Feedback) TableName() string { return "feedback" }

// Note is the psychologist-side closing artifact. At most one exists per
// chat.
type Note struct {
	ID              string    `json:"id" gorm:"primaryKey;size:36"`
	ChatID          string    `json:"chatId" gorm:"uniqueIndex;size:36;not null"`
	PatientID       string    `json:"patientId" gorm:"size:36;not null"`
	PsychologistID  string    `json:"psychologistId" gorm:"size:36;not null"`
	Summary         string    `json:"summary,omitempty" gorm:"type:text"`
	EmotionalState  string    `json:"emotionalState,omitempty" gorm:"size:128"`
	Recommendations string    `json:"recommendations,omitempty" gorm:"type:text"`
	FollowUpNeeded  bool      `json:"followUpNeeded"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func (Note) TableName() string { return "psychologist_notes" }
