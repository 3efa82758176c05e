/*
scheduler.go - Overdue installment sweep

PURPOSE:
  Periodically scans for unpaid installments whose due date has passed
  and publishes a reminder event for each. The sweep only observes; it
  never mutates booking or installment state, so running it twice for the
  same installment is harmless.

CONFIGURATION:
  - CheckInterval: How often to sweep (default: 1 hour)
  - Enabled: Whether the sweep is active (default: true)

USAGE:
  sweep := NewOverdueSweep(store, producer)
  sweep.Start()
  // ... later
  sweep.Stop()

SEE ALSO:
  - settlement/plan.go: due date assignment at plan creation
  - events/:            the publisher behind the reminder events
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/voyago/travel-engine/booking"
	"github.com/voyago/travel-engine/store/sqlite"
)

// OverdueSweep publishes reminders for installments past their due date.
type OverdueSweep struct {
	Store         *sqlite.Store
	Events        booking.Publisher
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

func NewOverdueSweep(store *sqlite.Store, events booking.Publisher) *OverdueSweep {
	return &OverdueSweep{
		Store:         store,
		Events:        events,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		stop:          make(chan struct{}),
	}
}

// Start begins the background sweep.
func (s *OverdueSweep) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled || s.Events == nil {
		log.Println("[Sweep] Disabled, not starting")
		return
	}

	s.ticker = time.NewTicker(s.CheckInterval)
	s.wg.Add(1)
	go s.run()

	log.Printf("[Sweep] Started with check interval: %v", s.CheckInterval)
}

// Stop halts the sweep and waits for the current pass to finish.
func (s *OverdueSweep) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
	close(s.stop)
	s.wg.Wait()
	s.ticker = nil
	log.Println("[Sweep] Stopped")
}

func (s *OverdueSweep) run() {
	defer s.wg.Done()

	// One pass at startup so a restart doesn't wait a full interval.
	s.RunOnce(context.Background())

	for {
		select {
		case <-s.ticker.C:
			s.RunOnce(context.Background())
		case <-s.stop:
			return
		}
	}
}

// RunOnce performs a single sweep pass. Exported so an admin trigger or a
// test can run it directly.
func (s *OverdueSweep) RunOnce(ctx context.Context) {
	overdue, err := s.Store.ListOverdueInstallments(ctx, time.Now().UTC())
	if err != nil {
		log.Printf("[Sweep] Failed to list overdue installments: %v", err)
		return
	}
	if len(overdue) == 0 {
		return
	}

	for _, o := range overdue {
		err := s.Events.Publish(ctx, o.BookingID, booking.Event{
			Type:      "installment_overdue",
			BookingID: o.BookingID,
			UserID:    o.UserID,
			Amount:    o.Amount.StringFixed(2),
			At:        time.Now().UTC(),
		})
		if err != nil {
			log.Printf("[Sweep] Failed to publish reminder for installment %s: %v", o.ID, err)
		}
	}
	log.Printf("[Sweep] Published %d overdue reminders", len(overdue))
}
