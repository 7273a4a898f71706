package entity

// SessionStatus is where a verification session stands.
type SessionStatus int8

const (
	SessionStatusVerifying SessionStatus = iota
	SessionStatusAccepted
	SessionStatusTimedOut
	SessionStatusAborted
)

func (s SessionStatus) String() string {
	switch s {
	case SessionStatusVerifying:
		return "Verifying"
	case SessionStatusAccepted:
		return "Accepted"
	case SessionStatusTimedOut:
		return "TimedOut"
	case SessionStatusAborted:
		return "Aborted"
	default:
		return "Unknown"
	}
}

// IsTerminal reports whether no further tick can change the status.
func (s SessionStatus) IsTerminal() bool {
	return s != SessionStatusVerifying
}

// RegistrationState tracks a registration from the first frame to the write.
type RegistrationState int8

const (
	RegistrationAwaitingFace RegistrationState = iota
	RegistrationCaptured
	RegistrationCommitted
	RegistrationAbandoned
)

func (s RegistrationState) String() string {
	switch s {
	case RegistrationAwaitingFace:
		return "AwaitingFace"
	case RegistrationCaptured:
		return "Captured"
	case RegistrationCommitted:
		return "Committed"
	case RegistrationAbandoned:
		return "Abandoned"
	default:
		return "Unknown"
	}
}

// IsTerminal reports whether the registration can no longer accept frames.
func (s RegistrationState) IsTerminal() bool {
	return s == RegistrationCommitted || s == RegistrationAbandoned
}
