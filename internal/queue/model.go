package queue

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusNext      Status = "next"
	StatusServing   Status = "serving"
	StatusCompleted Status = "completed"
)

// Entry is one checked-in patient's live position in a doctor's queue. It
// references exactly one appointment and carries a denormalized display
// snapshot. Entries are never deleted; completed is terminal.
type Entry struct {
	ID            uuid.UUID
	AppointmentID uuid.UUID
	PatientID     uuid.UUID
	PatientName   string
	DoctorID      uuid.UUID
	VisitDate     string
	TokenNumber   int
	Status        Status
	CheckedInAt   time.Time
	StartedAt     *time.Time
	EndedAt       *time.Time
}

// findByStatus returns the first entry holding the status. Snapshots are
// ordered by token number, so for waiting this is the lowest token.
func findByStatus(entries []Entry, status Status) *Entry {
	for i := range entries {
		if entries[i].Status == status {
			return &entries[i]
		}
	}
	return nil
}
