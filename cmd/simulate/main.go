package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/mediqueue/queue-service/internal/appointment"
	"github.com/mediqueue/queue-service/internal/config"
	"github.com/mediqueue/queue-service/internal/db"
)

// simulate drives the API with a concurrent mix of bookings, check-ins and
// call-next operations. Its main purpose is to demonstrate that concurrent
// bookings never collide on a token and concurrent call-next calls never
// produce two serving patients.

var log = zerolog.New(os.Stderr).With().Timestamp().Str("service", "simulate").Logger()

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	BookingRatio float64
	CheckInRatio float64
	CallRatio    float64
	PostgresDSN  string
	JWTSecret    string
}

type DataPool struct {
	Patients []uuid.UUID
	Doctors  []uuid.UUID

	mu           sync.RWMutex
	appointments []uuid.UUID
}

func (dp *DataPool) AddAppointment(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) TakeRandomAppointment(rng *rand.Rand) (uuid.UUID, bool) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	if len(dp.appointments) == 0 {
		return uuid.Nil, false
	}
	idx := rng.Intn(len(dp.appointments))
	id := dp.appointments[idx]
	dp.appointments = append(dp.appointments[:idx], dp.appointments[idx+1:]...)
	return id, true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	mu        sync.Mutex
	latencies []time.Duration
}

func (om *OperationMetrics) Record(latency time.Duration, status int) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case status >= 200 && status < 300:
		atomic.AddInt64(&om.Success, 1)
	case status == http.StatusConflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.latencies = append(om.latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) P95() time.Duration {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.latencies) == 0 {
		return 0
	}

	latencies := make([]time.Duration, len(om.latencies))
	copy(latencies, om.latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	idx := len(latencies) * 95 / 100
	if idx >= len(latencies) {
		idx = len(latencies) - 1
	}
	return latencies[idx]
}

type Metrics struct {
	Booking  OperationMetrics
	CheckIn  OperationMetrics
	CallNext OperationMetrics
}

type Simulator struct {
	config       SimConfig
	pool         *DataPool
	client       *http.Client
	metrics      Metrics
	patientToken string
	doctorToken  string
}

func main() {
	log.Info().Msg("simulator starting")

	cfg := loadSimConfig()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool)
	if err != nil {
		log.Fatal().Err(err).Msg("load data pool")
	}

	log.Info().
		Int("patients", len(dataPool.Patients)).
		Int("doctors", len(dataPool.Doctors)).
		Msg("data pool loaded")

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
	}

	sim.patientToken, err = mintToken(cfg.JWTSecret, "sim-patient", "patient")
	if err != nil {
		log.Fatal().Err(err).Msg("mint patient token")
	}
	sim.doctorToken, err = mintToken(cfg.JWTSecret, "sim-doctor", "doctor")
	if err != nil {
		log.Fatal().Err(err).Msg("mint doctor token")
	}

	sim.Run()
	sim.PrintReport()

	if err := verifySingleServing(context.Background(), pgPool); err != nil {
		log.Fatal().Err(err).Msg("invariant check failed")
	}
	log.Info().Msg("invariant check passed: at most one serving and one next per doctor")
}

func loadSimConfig() SimConfig {
	baseCfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load base config")
	}

	cfg := SimConfig{
		APIBaseURL:   getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:     getDuration("SIM_DURATION", 30*time.Second),
		Workers:      getInt("SIM_WORKERS", 10),
		BookingRatio: getFloat("SIM_BOOKING_RATIO", 0.5),
		CheckInRatio: getFloat("SIM_CHECKIN_RATIO", 0.3),
		CallRatio:    getFloat("SIM_CALL_RATIO", 0.2),
		PostgresDSN:  baseCfg.PostgresDSN,
		JWTSecret:    baseCfg.JWTSecret,
	}

	total := cfg.BookingRatio + cfg.CheckInRatio + cfg.CallRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.CheckInRatio /= total
		cfg.CallRatio /= total
	}

	return cfg
}

func mintToken(secret, subject, role string) (string, error) {
	claims := jwt.MapClaims{
		"sub":  subject,
		"role": role,
		"exp":  time.Now().Add(2 * time.Hour).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool) (*DataPool, error) {
	dataPool := &DataPool{}

	rows, err := pool.Query(ctx, `SELECT id FROM patients LIMIT 2000`)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		dataPool.Patients = append(dataPool.Patients, id)
	}

	rows, err = pool.Query(ctx, `SELECT id FROM doctors WHERE available LIMIT 40`)
	if err != nil {
		return nil, fmt.Errorf("load doctors: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		dataPool.Doctors = append(dataPool.Doctors, id)
	}

	if len(dataPool.Patients) == 0 || len(dataPool.Doctors) == 0 {
		return nil, fmt.Errorf("no patients or doctors loaded, run cmd/seed first")
	}

	return dataPool, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	log.Info().
		Dur("duration", s.config.Duration).
		Int("workers", s.config.Workers).
		Msg("starting simulation")

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	log.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			switch {
			case r < s.config.BookingRatio:
				s.doBooking(ctx, rng)
			case r < s.config.BookingRatio+s.config.CheckInRatio:
				s.doCheckIn(ctx, rng)
			default:
				s.doCallNext(ctx, rng)
			}
		}
	}
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	patientID := s.pool.Patients[rng.Intn(len(s.pool.Patients))]
	doctorID := s.pool.Doctors[rng.Intn(len(s.pool.Doctors))]

	body := map[string]any{
		"patient_id": patientID.String(),
		"doctor_id":  doctorID.String(),
		"visit_date": time.Now().Format(appointment.DateLayout),
		"time_slot":  appointment.TimeSlots[rng.Intn(len(appointment.TimeSlots))],
	}

	status, resp := s.post(ctx, "/appointments", body, s.patientToken, &s.metrics.Booking)
	if status == http.StatusCreated {
		var created struct {
			ID uuid.UUID `json:"id"`
		}
		if err := json.Unmarshal(resp, &created); err == nil {
			s.pool.AddAppointment(created.ID)
		}
	}
}

func (s *Simulator) doCheckIn(ctx context.Context, rng *rand.Rand) {
	apptID, ok := s.pool.TakeRandomAppointment(rng)
	if !ok {
		return
	}
	s.post(ctx, "/appointments/"+apptID.String()+"/checkin", nil, s.patientToken, &s.metrics.CheckIn)
}

func (s *Simulator) doCallNext(ctx context.Context, rng *rand.Rand) {
	doctorID := s.pool.Doctors[rng.Intn(len(s.pool.Doctors))]
	s.post(ctx, "/queue/"+doctorID.String()+"/call-next", nil, s.doctorToken, &s.metrics.CallNext)
}

func (s *Simulator) post(ctx context.Context, path string, body any, token string, om *OperationMetrics) (int, []byte) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, nil
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+path, reader)
	if err != nil {
		return 0, nil
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		om.Record(time.Since(start), 0)
		return 0, nil
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	om.Record(time.Since(start), resp.StatusCode)
	return resp.StatusCode, data
}

func (s *Simulator) PrintReport() {
	report := func(name string, om *OperationMetrics) {
		log.Info().
			Str("op", name).
			Int64("total", atomic.LoadInt64(&om.Total)).
			Int64("success", atomic.LoadInt64(&om.Success)).
			Int64("conflict", atomic.LoadInt64(&om.Conflict)).
			Int64("error", atomic.LoadInt64(&om.Error)).
			Dur("p95", om.P95()).
			Msg("operation report")
	}

	report("booking", &s.metrics.Booking)
	report("check-in", &s.metrics.CheckIn)
	report("call-next", &s.metrics.CallNext)
}

// verifySingleServing asserts directly against the store that no doctor ended
// the run with two serving or two next entries, and that no (doctor, date)
// pair carries a duplicate token.
func verifySingleServing(ctx context.Context, pool *pgxpool.Pool) error {
	var violations int
	err := pool.QueryRow(ctx, `
		SELECT count(*)
		FROM (
			SELECT doctor_id, visit_date, status
			FROM queue_entries
			WHERE status IN ('serving', 'next')
			GROUP BY doctor_id, visit_date, status
			HAVING count(*) > 1
		) v
	`).Scan(&violations)
	if err != nil {
		return err
	}
	if violations > 0 {
		return fmt.Errorf("%d doctor queues hold duplicate serving/next entries", violations)
	}

	err = pool.QueryRow(ctx, `
		SELECT count(*)
		FROM (
			SELECT doctor_id, visit_date, token_number
			FROM appointments
			GROUP BY doctor_id, visit_date, token_number
			HAVING count(*) > 1
		) v
	`).Scan(&violations)
	if err != nil {
		return err
	}
	if violations > 0 {
		return fmt.Errorf("%d duplicate token numbers issued", violations)
	}

	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
