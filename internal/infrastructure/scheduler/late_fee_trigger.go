package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	appinvoicing "github.com/erp/ledger/internal/application/invoicing"
	"go.uber.org/zap"
)

// Sweeper runs one late fee pass
type Sweeper interface {
	Sweep(ctx context.Context, opts appinvoicing.SweepOptions) (*appinvoicing.LateFeeSweepResult, error)
}

// LateFeeTriggerConfig holds configuration for the daily late fee sweep
type LateFeeTriggerConfig struct {
	// Hour and Minute of the daily run, in UTC, 24h format
	Hour   int
	Minute int

	// CheckInterval is how often to check if it's time to run
	CheckInterval time.Duration

	// JobTimeout bounds one sweep
	JobTimeout time.Duration
}

// DefaultLateFeeTriggerConfig returns default trigger configuration
func DefaultLateFeeTriggerConfig() LateFeeTriggerConfig {
	return LateFeeTriggerConfig{
		Hour:          1, // 1am UTC
		Minute:        0,
		CheckInterval: time.Minute,
		JobTimeout:    30 * time.Minute,
	}
}

// Validate rejects out of range times
func (c LateFeeTriggerConfig) Validate() error {
	if c.Hour < 0 || c.Hour > 23 || c.Minute < 0 || c.Minute > 59 {
		return fmt.Errorf("%w: run time %02d:%02d", ErrInvalidConfig, c.Hour, c.Minute)
	}
	if c.CheckInterval <= 0 || c.CheckInterval > time.Minute {
		return fmt.Errorf("%w: check interval must be between 0 and 1m", ErrInvalidConfig)
	}
	return nil
}

// LateFeeTrigger runs the late fee sweep once a day
type LateFeeTrigger struct {
	config  LateFeeTriggerConfig
	sweeper Sweeper
	now     func() time.Time
	logger  *zap.Logger

	cancel      context.CancelFunc
	wg          sync.WaitGroup
	mu          sync.Mutex
	isRunning   bool
	sweeping    bool
	lastRunDate string // Track which date we last ran for
}

// NewLateFeeTrigger creates a new trigger
func NewLateFeeTrigger(config LateFeeTriggerConfig, sweeper Sweeper, logger *zap.Logger) (*LateFeeTrigger, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = DefaultLateFeeTriggerConfig().JobTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LateFeeTrigger{
		config:  config,
		sweeper: sweeper,
		now:     func() time.Time { return time.Now().UTC() },
		logger:  logger,
	}, nil
}

// Start starts the trigger loop
func (c *LateFeeTrigger) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = true
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go c.runLoop(ctx)

	c.logger.Info("Late fee trigger started",
		zap.Int("hour", c.config.Hour),
		zap.Int("minute", c.config.Minute),
		zap.Duration("check_interval", c.config.CheckInterval),
	)
	return nil
}

// Stop stops the trigger and waits for a running sweep to return
func (c *LateFeeTrigger) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = false
	c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("Late fee trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *LateFeeTrigger) runLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.checkAndTrigger(ctx)
		}
	}
}

// checkAndTrigger runs the sweep once the configured minute of a new day
// has been reached
func (c *LateFeeTrigger) checkAndTrigger(ctx context.Context) bool {
	now := c.now()
	currentDate := now.Format(time.DateOnly)

	if now.Hour() != c.config.Hour || now.Minute() != c.config.Minute {
		return false
	}

	c.mu.Lock()
	if c.lastRunDate == currentDate {
		c.mu.Unlock()
		return false
	}
	c.lastRunDate = currentDate
	c.mu.Unlock()

	c.logger.Info("Triggering daily late fee sweep", zap.String("date", currentDate))
	if _, err := c.RunNow(ctx); err != nil {
		c.logger.Error("Daily late fee sweep failed", zap.Error(err))
	}
	return true
}

// RunNow sweeps every company immediately. Overlapping runs are rejected.
func (c *LateFeeTrigger) RunNow(ctx context.Context) (*appinvoicing.LateFeeSweepResult, error) {
	c.mu.Lock()
	if c.sweeping {
		c.mu.Unlock()
		return nil, ErrSweepInProgress
	}
	c.sweeping = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.sweeping = false
		c.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(ctx, c.config.JobTimeout)
	defer cancel()

	start := time.Now()
	result, err := c.sweeper.Sweep(ctx, appinvoicing.SweepOptions{})
	if err != nil {
		return result, fmt.Errorf("late fee sweep: %w", err)
	}
	c.logger.Info("Late fee sweep completed",
		zap.Int("companies", result.Companies),
		zap.Int("applied", result.Applied),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
		zap.Duration("duration", time.Since(start)))
	return result, nil
}
