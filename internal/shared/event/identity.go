package event

import "time"

const FaceEnrolledDestination string = "identity_face_enrolled"
const AccountRemovedDestination string = "identity_account_removed"
const VerificationFinishedDestination string = "identity_verification_finished"

type FaceEnrolledMessage struct {
	Identity   string    `json:"identity"`
	Replaced   bool      `json:"replaced"`
	EnrolledAt time.Time `json:"enrolled_at"`
}

type AccountRemovedMessage struct {
	Identity  string   `json:"identity"`
	RemovedBy string   `json:"removed_by"`
	Leftover  []string `json:"leftover,omitempty"`
}

type VerificationFinishedMessage struct {
	Identity  string    `json:"identity"`
	SessionID string    `json:"session_id"`
	Status    string    `json:"status"`
	Distance  *float64  `json:"distance,omitempty"`
	Ticks     int       `json:"ticks"`
	At        time.Time `json:"at"`
}
