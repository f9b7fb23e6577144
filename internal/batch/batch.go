// Package batch runs the scheduled jobs: materializing due recurring
// transactions and sending due periodic reports. Each run streams due records
// and commits each one in its own atomic scope, so one bad record never stops
// the rest.
package batch

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Gargee-Buva/Finora/internal/domain"
)

const (
	// DefaultRecurringCommitTimeout bounds one recurring record's writes.
	DefaultRecurringCommitTimeout = 20 * time.Second
	// DefaultReportCommitTimeout bounds one report outcome's writes.
	DefaultReportCommitTimeout = 10 * time.Second
)

// ErrRunInProgress is reported when a run starts while another run of the
// same processor is still active.
var ErrRunInProgress = errors.New("batch run already in progress")

// Runner is a batch job that can be triggered.
type Runner interface {
	Run(ctx context.Context) domain.BatchSummary
}

// Options are shared by the processors. Zero values pick defaults.
type Options struct {
	Now           func() time.Time
	NewID         func() string
	CommitTimeout time.Duration
}

func (o Options) withDefaults(commitTimeout time.Duration) Options {
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.NewID == nil {
		o.NewID = uuid.NewString
	}
	if o.CommitTimeout <= 0 {
		o.CommitTimeout = commitTimeout
	}
	return o
}

// runGuard lets at most one run of a processor proceed at a time.
type runGuard struct {
	running atomic.Bool
}

func (g *runGuard) acquire() bool { return g.running.CompareAndSwap(false, true) }

func (g *runGuard) release() { g.running.Store(false) }

func busySummary() domain.BatchSummary {
	return domain.BatchSummary{Success: false, Error: ErrRunInProgress.Error()}
}
