package account

// SessionKind enumerates the closed set of caller identities. Operations
// switch on the kind instead of branching on a raw role string, so "role
// not yet resolved" can never be mistaken for a patient.
type SessionKind int

const (
	KindAnonymous SessionKind = iota
	KindPatient
	KindPsychologist
)

// Session is the resolved identity attached to a request. A request whose
// role cannot be resolved carries no Session at all and is rejected before
// any guarded operation runs.
type Session struct {
	UserID string
	Kind   SessionKind
}

// Anonymous reports whether the caller is an anonymous patient.
func (s Session) Anonymous() bool { return s.Kind == KindAnonymous }

// PatientSide reports whether the caller acts as a patient, anonymous or
// credentialed.
func (s Session) PatientSide() bool {
	return s.Kind == KindAnonymous || s.Kind == KindPatient
}

// Psychologist reports whether the caller is a credentialed professional.
func (s Session) Psychologist() bool { return s.Kind == KindPsychologist }

// SessionFor maps a stored profile to its session variant.
func SessionFor(p *Profile) Session {
	switch {
	case p.Role == RolePsychologist:
		return Session{UserID: p.UserID, Kind: KindPsychologist}
	case p.IsAnonymous:
		return Session{UserID: p.UserID, Kind: KindAnonymous}
	default:
		return Session{UserID: p.UserID, Kind: KindPatient}
	}
}
