package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"busticket/internal/domain"
	"busticket/internal/domain/models"
	"busticket/internal/utils"
)

// StaleLister finds PENDING bookings created before a cutoff.
type StaleLister interface {
	ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.Booking, error)
}

// Expirer settles one stale booking and returns its final status.
type Expirer interface {
	ExpireStale(ctx context.Context, b models.Booking) (domain.BookingStatus, error)
}

type ExpiryWorkerConfig struct {
	ScanInterval time.Duration
	// TTL is how long a booking may stay PENDING.
	TTL       time.Duration
	BatchSize int
}

func DefaultExpiryWorkerConfig() ExpiryWorkerConfig {
	return ExpiryWorkerConfig{
		ScanInterval: time.Minute,
		TTL:          15 * time.Minute,
		BatchSize:    100,
	}
}

type ExpiryWorkerStats struct {
	IsRunning        bool      `json:"isRunning"`
	TotalScans       int64     `json:"totalScans"`
	TotalExpired     int64     `json:"totalExpired"`
	TotalSettled     int64     `json:"totalSettled"`
	TotalErrors      int64     `json:"totalErrors"`
	LastScanTime     time.Time `json:"lastScanTime"`
	LastExpiredCount int       `json:"lastExpiredCount"`
}

// ExpiryWorker fails bookings left PENDING past their TTL so their seats go
// back on sale. A last provider check runs first; a late success still pays.
type ExpiryWorker struct {
	bookings StaleLister
	expirer  Expirer
	config   ExpiryWorkerConfig
	now      func() time.Time

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
	stats   ExpiryWorkerStats
}

func NewExpiryWorker(bookings StaleLister, expirer Expirer, config ExpiryWorkerConfig) *ExpiryWorker {
	def := DefaultExpiryWorkerConfig()
	if config.ScanInterval <= 0 {
		config.ScanInterval = def.ScanInterval
	}
	if config.TTL <= 0 {
		config.TTL = def.TTL
	}
	if config.BatchSize <= 0 {
		config.BatchSize = def.BatchSize
	}
	return &ExpiryWorker{
		bookings: bookings,
		expirer:  expirer,
		config:   config,
		now:      utils.NowUTC,
		stopCh:   make(chan struct{}),
	}
}

func (w *ExpiryWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("expiry worker already running")
	}
	w.running = true
	w.stats.IsRunning = true
	w.mu.Unlock()

	utils.Log().Info("starting expiry worker",
		zap.Duration("interval", w.config.ScanInterval),
		zap.Duration("ttl", w.config.TTL),
	)
	w.wg.Add(1)
	go w.loop(ctx)
	return nil
}

func (w *ExpiryWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.stats.IsRunning = false
	w.mu.Unlock()

	close(w.stopCh)
	w.wg.Wait()
	utils.Log().Info("expiry worker stopped")
}

func (w *ExpiryWorker) loop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.ScanInterval)
	defer ticker.Stop()

	w.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce processes one batch and returns how many bookings were failed.
func (w *ExpiryWorker) RunOnce(ctx context.Context) int {
	cutoff := w.now().Add(-w.config.TTL)
	stale, err := w.bookings.ListStalePending(ctx, cutoff, w.config.BatchSize)

	w.mu.Lock()
	w.stats.TotalScans++
	w.stats.LastScanTime = w.now()
	w.mu.Unlock()

	if err != nil {
		utils.Log().Error("list stale bookings failed", zap.Error(err))
		w.addStats(0, 0, 1)
		return 0
	}
	if len(stale) == 0 {
		w.mu.Lock()
		w.stats.LastExpiredCount = 0
		w.mu.Unlock()
		return 0
	}

	var expired, settled, errs int
	for _, b := range stale {
		if ctx.Err() != nil {
			break
		}
		st, err := w.expirer.ExpireStale(ctx, b)
		if err != nil {
			errs++
			utils.Log().Error("expire booking failed", zap.String("reference", b.Reference), zap.Error(err))
			continue
		}
		switch st {
		case domain.BookingFailed:
			expired++
			utils.Log().Info("booking expired", zap.String("reference", b.Reference), zap.Time("created_at", b.CreatedAt))
		case domain.BookingPaid:
			settled++
			utils.Log().Info("stale booking paid on final check", zap.String("reference", b.Reference))
		}
	}

	w.mu.Lock()
	w.stats.LastExpiredCount = expired
	w.mu.Unlock()
	w.addStats(expired, settled, errs)
	return expired
}

func (w *ExpiryWorker) addStats(expired, settled, errs int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stats.TotalExpired += int64(expired)
	w.stats.TotalSettled += int64(settled)
	w.stats.TotalErrors += int64(errs)
}

func (w *ExpiryWorker) Stats() ExpiryWorkerStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}
