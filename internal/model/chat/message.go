package chat

import (
	"sort"
	"time"
)

// SenderType identifies who authored a message.
type SenderType string

const (
	SenderUser         SenderType = "user"
	SenderAI           SenderType = "ai"
	SenderPsychologist SenderType = "psychologist"
)

// Valid reports whether t is a known sender type.
func (t SenderType) Valid() bool {
	switch t {
	case SenderUser, SenderAI, SenderPsychologist:
		return true
	}
	return false
}

// Message is one immutable utterance inside a chat. SenderID is nil when
// the assistant authored the message. Seq is assigned by the store on
// insert and breaks createdAt ties.
type Message struct {
	ID         string     `json:"id" gorm:"primaryKey;size:36"`
	ChatID     string     `json:"chatId" gorm:"index;size:36;not null"`
	SenderType SenderType `json:"senderType" gorm:"size:16;not null"`
	SenderID   *string    `json:"senderId" gorm:"size:36"`
	Content    string     `json:"content" gorm:"type:text;not null"`
	Seq        uint64     `json:"-" gorm:"autoIncrement;uniqueIndex"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// SortMessages orders msgs by createdAt ascending, insertion order on
// ties. Subscribers apply it on receipt so late notifications cannot
// reorder a rendered transcript.
func SortMessages(msgs []Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		if msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].Seq < msgs[j].Seq
		}
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
}
