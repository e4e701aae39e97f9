package account

import "time"

// Role is the resolved capability of an authenticated identity.
type Role string

const (
	RolePatient      Role = "patient"
	RolePsychologist Role = "psychologist"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RolePatient || r == RolePsychologist
}

// Profile is the stored account record. Anonymous patients get a profile
// row with no email or password so their chats survive the session.
type Profile struct {
	UserID       string    `json:"userId" gorm:"primaryKey;size:36"`
	Role         Role      `json:"role" gorm:"size:16;not null"`
	FullName     string    `json:"fullName,omitempty" gorm:"size:128"`
	Email        string    `json:"email,omitempty" gorm:"index;size:128"`
	CRP          string    `json:"crp,omitempty" gorm:"size:32"`
	PasswordHash string    `json:"-" gorm:"size:128"`
	IsAnonymous  bool      `json:"isAnonymous"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
