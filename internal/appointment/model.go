package appointment

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusWaiting   Status = "waiting"
	StatusServing   Status = "serving"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// DateLayout is the calendar-day format used for visit dates everywhere.
const DateLayout = "2006-01-02"

// TimeSlots is the fixed set of bookable consultation slots per day.
var TimeSlots = []string{
	"09:00 AM", "09:30 AM", "10:00 AM", "10:30 AM",
	"11:00 AM", "11:30 AM", "12:00 PM",
	"02:00 PM", "02:30 PM", "03:00 PM", "03:30 PM",
	"04:00 PM", "04:30 PM", "05:00 PM",
}

func ValidTimeSlot(slot string) bool {
	for _, s := range TimeSlots {
		if s == slot {
			return true
		}
	}
	return false
}

// forward holds the single legal non-cancel successor of each status.
var forward = map[Status]Status{
	StatusScheduled: StatusWaiting,
	StatusWaiting:   StatusServing,
	StatusServing:   StatusCompleted,
}

// CanTransition reports whether an appointment may move from one status to
// another: one step forward at a time, cancelled reachable from any
// pre-completed state, terminal states frozen.
func CanTransition(from, to Status) bool {
	if from == StatusCompleted || from == StatusCancelled {
		return false
	}
	if to == StatusCancelled {
		return true
	}
	return forward[from] == to
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Phone     string
	Age       int
	Gender    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Doctor struct {
	ID         uuid.UUID
	Name       string
	Department string
	Available  bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Appointment carries a denormalized patient and doctor snapshot so display
// surfaces never need a join.
type Appointment struct {
	ID            uuid.UUID
	PatientID     uuid.UUID
	PatientName   string
	PatientPhone  string
	PatientAge    int
	PatientGender string
	DoctorID      uuid.UUID
	DoctorName    string
	Department    string
	VisitDate     string // DateLayout
	TimeSlot      string
	TokenNumber   int
	Status        Status
	Symptoms      *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Draft is the caller-supplied part of a booking. Token number, doctor
// snapshot and status are filled in by the ledger.
type Draft struct {
	PatientID uuid.UUID
	DoctorID  uuid.UUID
	VisitDate string
	TimeSlot  string
	Symptoms  *string
}
