package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Notifier delivers one signal per committed queue mutation for a doctor.
// The Redis pub/sub client implements it; tests substitute a channel.
type Notifier interface {
	Subscribe(ctx context.Context, doctorID uuid.UUID) (<-chan struct{}, func(), error)
}

// Projection is the read model over the queue: ordered snapshots, live
// subscriptions and the patient-facing position math. It never mutates
// state, so all of its reads are safe to retry.
type Projection struct {
	repo       Repository
	notifier   Notifier
	avgConsult time.Duration
	log        zerolog.Logger
}

func NewProjection(repo Repository, notifier Notifier, avgConsult time.Duration, log zerolog.Logger) *Projection {
	if avgConsult <= 0 {
		avgConsult = 5 * time.Minute
	}
	return &Projection{
		repo:       repo,
		notifier:   notifier,
		avgConsult: avgConsult,
		log:        log,
	}
}

// Snapshot returns the doctor's non-completed entries, token ascending.
func (p *Projection) Snapshot(ctx context.Context, doctorID uuid.UUID) ([]Entry, error) {
	entries, err := p.repo.ListActive(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("queue snapshot: %w", err)
	}
	return entries, nil
}

// Position is how many patients are ahead of the token, by token distance
// from the one currently serving. Zero when the token is up or done.
func Position(token, servingToken int) int {
	if p := token - servingToken; p > 0 {
		return p
	}
	return 0
}

// EstimatedWait converts a queue position into a wait estimate.
func (p *Projection) EstimatedWait(position int) time.Duration {
	return time.Duration(position) * p.avgConsult
}

// ServingToken extracts the token currently being served from a snapshot.
func ServingToken(entries []Entry) (int, bool) {
	if serving := findByStatus(entries, StatusServing); serving != nil {
		return serving.TokenNumber, true
	}
	return 0, false
}

// Subscription is a live feed of queue snapshots. Read from C; every
// committed mutation for the doctor produces a fresh snapshot, with
// intermediate snapshots coalesced under load. C is closed after Close.
type Subscription struct {
	C <-chan []Entry

	cancel func()
	once   sync.Once
	done   chan struct{}
	wg     sync.WaitGroup
}

// Close stops delivery. No snapshot is emitted after Close returns.
func (s *Subscription) Close() {
	s.once.Do(func() {
		close(s.done)
		s.cancel()
	})
	s.wg.Wait()
}

// Subscribe opens a live feed for the doctor's queue. The first snapshot is
// emitted immediately; later ones follow committed mutations. The feed ends
// when ctx is cancelled or Close is called.
func (p *Projection) Subscribe(ctx context.Context, doctorID uuid.UUID) (*Subscription, error) {
	signals, cancelSignals, err := p.notifier.Subscribe(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("subscribe queue updates: %w", err)
	}

	out := make(chan []Entry, 1)
	sub := &Subscription{
		C:      out,
		cancel: cancelSignals,
		done:   make(chan struct{}),
	}

	sub.wg.Add(1)
	go func() {
		defer sub.wg.Done()
		defer close(out)

		emit := func() {
			entries, err := p.repo.ListActive(ctx, doctorID)
			if err != nil {
				// Stale display beats a dead feed; the next signal retries.
				p.log.Warn().
					Err(err).
					Str("doctor_id", doctorID.String()).
					Msg("queue snapshot refresh failed")
				return
			}
			select {
			case out <- entries:
			default:
				// Replace the pending snapshot with the newer one.
				select {
				case <-out:
				default:
				}
				out <- entries
			}
		}

		emit()

		for {
			select {
			case <-ctx.Done():
				return
			case <-sub.done:
				return
			case _, ok := <-signals:
				if !ok {
					return
				}
				emit()
			}
		}
	}()

	return sub, nil
}
