package checkin

import "time"

// Checkin is one accepted attendance submission tied to exactly one session.
// Records are immutable once written; they only go away when the parent
// session is deleted.
type Checkin struct {
	ID                string    `json:"id"`
	SessionID         string    `json:"session_id"`
	StudentID         string    `json:"student_id"`
	StudentName       string    `json:"student_name"`
	OriginAddr        string    `json:"-"`
	UserAgent         string    `json:"-"`
	DeviceFingerprint string    `json:"-"`
	MarkedAt          time.Time `json:"marked_at"`
}
