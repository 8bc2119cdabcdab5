package history

import (
	"time"

	"github.com/google/uuid"
)

// Record is one completed consultation: diagnosis, prescription lines in the
// order the doctor wrote them, optional follow-up date. Records are
// append-only; nothing in this service mutates or deletes them.
type Record struct {
	ID           uuid.UUID
	PatientID    uuid.UUID
	DoctorID     uuid.UUID
	DoctorName   string
	Department   string
	VisitDate    string
	Diagnosis    string
	Prescription []string
	FollowUpDate *string
	CreatedAt    time.Time
}
