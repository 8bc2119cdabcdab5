package appointment

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -- In-memory collaborators --

type mockRepo struct {
	mu       sync.Mutex
	patients map[uuid.UUID]*Patient
	doctors  map[uuid.UUID]*Doctor
	appts    map[uuid.UUID]*Appointment
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		patients: make(map[uuid.UUID]*Patient),
		doctors:  make(map[uuid.UUID]*Doctor),
		appts:    make(map[uuid.UUID]*Appointment),
	}
}

func (m *mockRepo) GetPatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockRepo) GetDoctorByID(_ context.Context, id uuid.UUID) (*Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *mockRepo) ListDoctors(_ context.Context, department string) ([]Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []Doctor
	for _, d := range m.doctors {
		if department == "" || d.Department == department {
			result = append(result, *d)
		}
	}
	return result, nil
}

func (m *mockRepo) CreateAppointment(_ context.Context, appt *Appointment) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *appt
	m.appts[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (m *mockRepo) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *mockRepo) ListByPatient(_ context.Context, patientID uuid.UUID) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []Appointment
	for _, a := range m.appts {
		if a.PatientID == patientID {
			result = append(result, *a)
		}
	}
	return result, nil
}

func slotIndex(slot string) int {
	for i, s := range TimeSlots {
		if s == slot {
			return i
		}
	}
	return len(TimeSlots)
}

func (m *mockRepo) ListByDoctor(_ context.Context, doctorID uuid.UUID, date string) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []Appointment
	for _, a := range m.appts {
		if a.DoctorID == doctorID && a.VisitDate == date {
			result = append(result, *a)
		}
	}
	// Same contract as the SQL: slot enum position first, then token.
	sort.Slice(result, func(i, j int) bool {
		si, sj := slotIndex(result[i].TimeSlot), slotIndex(result[j].TimeSlot)
		if si != sj {
			return si < sj
		}
		return result[i].TokenNumber < result[j].TokenNumber
	})
	return result, nil
}

func (m *mockRepo) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	cp := *a
	return &cp, nil
}

func (m *mockRepo) MaxTokenNumber(_ context.Context, doctorID uuid.UUID, date string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var max int64
	for _, a := range m.appts {
		if a.DoctorID == doctorID && a.VisitDate == date && int64(a.TokenNumber) > max {
			max = int64(a.TokenNumber)
		}
	}
	return max, nil
}

// fakeAllocator mimics the Redis counter: EnsureFloor only raises, Next
// increments atomically per key.
type fakeAllocator struct {
	mu       sync.Mutex
	counters map[string]int64
}

func newFakeAllocator() *fakeAllocator {
	return &fakeAllocator{counters: make(map[string]int64)}
}

func (f *fakeAllocator) key(doctorID uuid.UUID, date string) string {
	return fmt.Sprintf("%s:%s", doctorID, date)
}

func (f *fakeAllocator) EnsureFloor(_ context.Context, doctorID uuid.UUID, date string, floor int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := f.key(doctorID, date)
	if _, ok := f.counters[k]; !ok {
		f.counters[k] = floor
	}
	return nil
}

func (f *fakeAllocator) Next(_ context.Context, doctorID uuid.UUID, date string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := f.key(doctorID, date)
	f.counters[k]++
	return f.counters[k], nil
}

type passthroughLocker struct{}

func (passthroughLocker) WithBookingLock(ctx context.Context, _ uuid.UUID, _ string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// -- Helpers --

const futureDate = "2030-06-01"

func newTestService(repo *mockRepo) *Service {
	return NewService(repo, newFakeAllocator(), passthroughLocker{}, zerolog.Nop())
}

func addPatient(repo *mockRepo) *Patient {
	p := &Patient{ID: uuid.New(), Name: "Asha Rao", Phone: "9876500000", Age: 34, Gender: "female"}
	repo.patients[p.ID] = p
	return p
}

func addDoctor(repo *mockRepo, available bool) *Doctor {
	d := &Doctor{ID: uuid.New(), Name: "Dr. Mehta", Department: "Cardiology", Available: available}
	repo.doctors[d.ID] = d
	return d
}

func draftFor(p *Patient, d *Doctor) Draft {
	return Draft{
		PatientID: p.ID,
		DoctorID:  d.ID,
		VisitDate: futureDate,
		TimeSlot:  TimeSlots[0],
	}
}

// -- Create --

func TestCreateAssignsSequentialTokens(t *testing.T) {
	repo := newMockRepo()
	patient := addPatient(repo)
	doctor := addDoctor(repo, true)
	svc := newTestService(repo)

	for want := 1; want <= 3; want++ {
		appt, err := svc.Create(context.Background(), draftFor(patient, doctor))
		require.NoError(t, err)
		assert.Equal(t, want, appt.TokenNumber)
		assert.Equal(t, StatusScheduled, appt.Status)
	}
}

func TestCreateTokensIndependentPerDoctorAndDate(t *testing.T) {
	repo := newMockRepo()
	patient := addPatient(repo)
	doctorA := addDoctor(repo, true)
	doctorB := addDoctor(repo, true)
	svc := newTestService(repo)

	a1, err := svc.Create(context.Background(), draftFor(patient, doctorA))
	require.NoError(t, err)
	b1, err := svc.Create(context.Background(), draftFor(patient, doctorB))
	require.NoError(t, err)
	assert.Equal(t, 1, a1.TokenNumber)
	assert.Equal(t, 1, b1.TokenNumber)

	otherDay := draftFor(patient, doctorA)
	otherDay.VisitDate = "2030-06-02"
	a2, err := svc.Create(context.Background(), otherDay)
	require.NoError(t, err)
	assert.Equal(t, 1, a2.TokenNumber, "each day starts its own sequence")
}

func TestCreateResumesFromPersistedMax(t *testing.T) {
	repo := newMockRepo()
	patient := addPatient(repo)
	doctor := addDoctor(repo, true)

	// Rows already persisted but the counter is cold, as after a Redis flush.
	repo.appts[uuid.New()] = &Appointment{
		ID: uuid.New(), DoctorID: doctor.ID, VisitDate: futureDate, TokenNumber: 7,
	}

	svc := newTestService(repo)

	appt, err := svc.Create(context.Background(), draftFor(patient, doctor))
	require.NoError(t, err)
	assert.Equal(t, 8, appt.TokenNumber)
}

func TestCreateSnapshotsPatientAndDoctor(t *testing.T) {
	repo := newMockRepo()
	patient := addPatient(repo)
	doctor := addDoctor(repo, true)
	svc := newTestService(repo)

	symptoms := "chest pain"
	draft := draftFor(patient, doctor)
	draft.Symptoms = &symptoms

	appt, err := svc.Create(context.Background(), draft)
	require.NoError(t, err)
	assert.Equal(t, patient.Name, appt.PatientName)
	assert.Equal(t, patient.Phone, appt.PatientPhone)
	assert.Equal(t, doctor.Name, appt.DoctorName)
	assert.Equal(t, doctor.Department, appt.Department)
	require.NotNil(t, appt.Symptoms)
	assert.Equal(t, symptoms, *appt.Symptoms)

	stored, err := svc.GetByID(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, appt.ID, stored.ID)
	assert.Equal(t, appt.TokenNumber, stored.TokenNumber)
}

func TestCreateValidation(t *testing.T) {
	repo := newMockRepo()
	patient := addPatient(repo)
	doctor := addDoctor(repo, true)
	unavailable := addDoctor(repo, false)
	svc := newTestService(repo)

	tests := []struct {
		name    string
		mutate  func(d *Draft)
		wantErr error
	}{
		{"unknown time slot", func(d *Draft) { d.TimeSlot = "08:15 AM" }, ErrInvalidTimeSlot},
		{"malformed date", func(d *Draft) { d.VisitDate = "01-06-2030" }, ErrInvalidVisitDate},
		{"past date", func(d *Draft) { d.VisitDate = "2020-01-01" }, ErrInvalidVisitDate},
		{"unknown patient", func(d *Draft) { d.PatientID = uuid.New() }, ErrPatientNotFound},
		{"unknown doctor", func(d *Draft) { d.DoctorID = uuid.New() }, ErrDoctorNotFound},
		{"unavailable doctor", func(d *Draft) { d.DoctorID = unavailable.ID }, ErrDoctorUnavailable},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			draft := draftFor(patient, doctor)
			tc.mutate(&draft)
			_, err := svc.Create(context.Background(), draft)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
	assert.Empty(t, repo.appts, "rejected drafts must not persist")
}

func TestListByDoctorMorningBeforeAfternoon(t *testing.T) {
	repo := newMockRepo()
	patient := addPatient(repo)
	doctor := addDoctor(repo, true)
	svc := newTestService(repo)

	// Book the afternoon first so insertion order cannot mask a bad sort.
	for _, slot := range []string{"02:00 PM", "11:30 AM", "09:00 AM", "12:00 PM"} {
		draft := draftFor(patient, doctor)
		draft.TimeSlot = slot
		_, err := svc.Create(context.Background(), draft)
		require.NoError(t, err)
	}

	appts, err := svc.ListByDoctor(context.Background(), doctor.ID, futureDate)
	require.NoError(t, err)
	require.Len(t, appts, 4)

	var slots []string
	for _, a := range appts {
		slots = append(slots, a.TimeSlot)
	}
	assert.Equal(t, []string{"09:00 AM", "11:30 AM", "12:00 PM", "02:00 PM"}, slots)
}

// -- Transitions --

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusScheduled, StatusWaiting, true},
		{StatusWaiting, StatusServing, true},
		{StatusServing, StatusCompleted, true},
		{StatusScheduled, StatusServing, false},
		{StatusScheduled, StatusCompleted, false},
		{StatusWaiting, StatusScheduled, false},
		{StatusScheduled, StatusCancelled, true},
		{StatusWaiting, StatusCancelled, true},
		{StatusServing, StatusCancelled, true},
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusScheduled, false},
		{StatusCompleted, StatusWaiting, false},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestUpdateStatusWalksLifecycle(t *testing.T) {
	repo := newMockRepo()
	patient := addPatient(repo)
	doctor := addDoctor(repo, true)
	svc := newTestService(repo)

	appt, err := svc.Create(context.Background(), draftFor(patient, doctor))
	require.NoError(t, err)

	for _, to := range []Status{StatusWaiting, StatusServing, StatusCompleted} {
		updated, err := svc.UpdateStatus(context.Background(), appt.ID, to)
		require.NoError(t, err)
		assert.Equal(t, to, updated.Status)
	}
}

func TestUpdateStatusRejectsSkipsAndTerminals(t *testing.T) {
	repo := newMockRepo()
	patient := addPatient(repo)
	doctor := addDoctor(repo, true)
	svc := newTestService(repo)

	appt, err := svc.Create(context.Background(), draftFor(patient, doctor))
	require.NoError(t, err)

	_, err = svc.UpdateStatus(context.Background(), appt.ID, StatusCompleted)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = svc.UpdateStatus(context.Background(), appt.ID, StatusCancelled)
	require.NoError(t, err)

	_, err = svc.UpdateStatus(context.Background(), appt.ID, StatusWaiting)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestUpdateStatusUnknownAppointment(t *testing.T) {
	svc := newTestService(newMockRepo())

	_, err := svc.UpdateStatus(context.Background(), uuid.New(), StatusWaiting)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}
