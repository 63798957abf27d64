package service

import (
	"context"
	"sync"
	"time"

	"github.com/gatepass/gatepass/internal/config"
	"github.com/gatepass/gatepass/internal/logger"
)

// Sweeper runs the periodic reconciliation passes: session expiry and
// device removal. Each concern gets its own ticker goroutine; both are
// safe to run alongside user-triggered operations because sweeps only
// act on records that satisfy a time predicate re-checked at write time.
type Sweeper struct {
	sessions *SessionService
	devices  *DeviceService
	cfg      *config.Config
	log      *logger.Logger
	wg       sync.WaitGroup
}

// NewSweeper creates a new Sweeper
func NewSweeper(
	sessions *SessionService,
	devices *DeviceService,
	cfg *config.Config,
	log *logger.Logger,
) *Sweeper {
	return &Sweeper{
		sessions: sessions,
		devices:  devices,
		cfg:      cfg,
		log:      log.WithComponent("sweeper"),
	}
}

// Start launches the sweep loops; they stop when ctx is canceled
func (s *Sweeper) Start(ctx context.Context) {
	s.wg.Add(2)
	go s.loop(ctx, "sessions", s.cfg.Access.SessionSweepInterval, func(ctx context.Context) error {
		_, err := s.sessions.SweepExpired(ctx)
		return err
	})
	go s.loop(ctx, "devices", s.cfg.Devices.SweepInterval, func(ctx context.Context) error {
		_, err := s.devices.SweepRemoved(ctx)
		return err
	})
}

// Wait blocks until every sweep loop has exited
func (s *Sweeper) Wait() {
	s.wg.Wait()
}

func (s *Sweeper) loop(ctx context.Context, name string, interval time.Duration, pass func(context.Context) error) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Debug().Str("sweep", name).Dur("interval", interval).Msg("sweep loop started")
	for {
		select {
		case <-ctx.Done():
			s.log.Debug().Str("sweep", name).Msg("sweep loop stopped")
			return
		case <-ticker.C:
			if err := pass(ctx); err != nil {
				s.log.Warn().Err(err).Str("sweep", name).Msg("sweep pass failed")
			}
		}
	}
}
