// Package jobs implements polling of TableDesk background jobs.
//
// The server runs file parsing, transform execution, and analysis as
// asynchronous jobs. The poller issues periodic GETs against the job-status
// endpoint and adapts its interval: fast while any tracked job is queued or
// running, slow when everything is idle. A job observed in a terminal state
// (completed/failed/cancelled) is reported once and dropped from tracking.
// Fetch errors are logged and retried on the next tick.
package jobs

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tabledesk/tdk/internal/client"
)

// Default polling intervals.
const (
	DefaultFastInterval = 2 * time.Second
	DefaultSlowInterval = 30 * time.Second
)

// Fetcher fetches job statuses. *client.Client satisfies this.
type Fetcher interface {
	ListJobs(ctx context.Context, req *client.ListJobsRequest) (*client.ListJobsResponse, error)
}

// Update is emitted whenever a tracked job's status changes.
type Update struct {
	Job client.Job

	// Terminal is true when the job reached a final state. The job is no
	// longer tracked after a terminal update.
	Terminal bool

	// Gone is true when the server no longer knows the job id. Job then
	// carries only the id.
	Gone bool
}

// Config configures a Poller.
type Config struct {
	Fetcher      Fetcher
	FastInterval time.Duration // Interval while jobs are active (default 2s)
	SlowInterval time.Duration // Interval while idle (default 30s)
	Logger       zerolog.Logger

	// StopWhenEmpty makes Run return once no jobs remain tracked. Used by
	// `tdk jobs watch`; a long-lived caller leaves it false.
	StopWhenEmpty bool

	// OnRemove is called when a job leaves the tracked set (terminal or
	// gone), before the corresponding Update is emitted. Used to persist
	// the tracked set. May be nil.
	OnRemove func(jobID string)
}

// Poller polls tracked jobs at an adaptive interval.
type Poller struct {
	fetcher       Fetcher
	fast          time.Duration
	slow          time.Duration
	logger        zerolog.Logger
	stopWhenEmpty bool
	onRemove      func(jobID string)

	mu      sync.Mutex
	tracked map[string]string // job id -> last observed status ("" until first poll)
	updates chan Update
}

// New creates a Poller.
func New(cfg Config) *Poller {
	if cfg.FastInterval <= 0 {
		cfg.FastInterval = DefaultFastInterval
	}
	if cfg.SlowInterval <= 0 {
		cfg.SlowInterval = DefaultSlowInterval
	}
	return &Poller{
		fetcher:       cfg.Fetcher,
		fast:          cfg.FastInterval,
		slow:          cfg.SlowInterval,
		logger:        cfg.Logger,
		stopWhenEmpty: cfg.StopWhenEmpty,
		onRemove:      cfg.OnRemove,
		tracked:       make(map[string]string),
		updates:       make(chan Update, 16),
	}
}

// Track adds job ids to the tracked set. Safe to call while Run is active;
// the ids are picked up on the next tick.
func (p *Poller) Track(jobIDs ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, id := range jobIDs {
		if id == "" {
			continue
		}
		if _, ok := p.tracked[id]; !ok {
			p.tracked[id] = ""
		}
	}
}

// Untrack removes a job id from the tracked set.
func (p *Poller) Untrack(jobID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.tracked, jobID)
}

// TrackedIDs returns the currently tracked job ids, sorted.
func (p *Poller) TrackedIDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]string, 0, len(p.tracked))
	for id := range p.tracked {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Updates returns the channel of job updates. It is closed when Run returns.
func (p *Poller) Updates() <-chan Update {
	return p.updates
}

// Run polls until ctx is cancelled (or, with StopWhenEmpty, until no jobs
// remain tracked). The first poll happens immediately.
func (p *Poller) Run(ctx context.Context) error {
	defer close(p.updates)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		active := p.poll(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if p.stopWhenEmpty && len(p.TrackedIDs()) == 0 {
			return nil
		}

		interval := p.slow
		if active {
			interval = p.fast
		}
		timer.Reset(interval)
	}
}

// poll fetches all tracked jobs once and emits updates for status changes.
// Returns true when any tracked job is still active.
func (p *Poller) poll(ctx context.Context) bool {
	ids := p.TrackedIDs()
	if len(ids) == 0 {
		return false
	}

	resp, err := p.fetcher.ListJobs(ctx, &client.ListJobsRequest{IDs: ids})
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		// Transient failures are expected (server restarts, flaky network).
		// Keep the tracked set intact and try again on the next tick.
		p.logger.Warn().Err(err).Int("tracked", len(ids)).Msg("job poll failed, will retry")
		return true
	}

	seen := make(map[string]bool, len(resp.Jobs))
	anyActive := false

	for _, job := range resp.Jobs {
		seen[job.JobID] = true

		p.mu.Lock()
		lastStatus, tracked := p.tracked[job.JobID]
		if !tracked {
			// Untracked between fetch and now
			p.mu.Unlock()
			continue
		}
		changed := job.Status != lastStatus
		if job.Terminal() {
			delete(p.tracked, job.JobID)
		} else {
			p.tracked[job.JobID] = job.Status
			if job.Active() {
				anyActive = true
			}
		}
		p.mu.Unlock()

		if job.Terminal() {
			if p.onRemove != nil {
				p.onRemove(job.JobID)
			}
			p.emit(ctx, Update{Job: job, Terminal: true})
			continue
		}
		if changed {
			p.emit(ctx, Update{Job: job})
		}
	}

	// Ids the server no longer knows: stop polling them, or we'd spin on
	// the fast interval forever.
	for _, id := range ids {
		if seen[id] {
			continue
		}
		p.mu.Lock()
		_, tracked := p.tracked[id]
		delete(p.tracked, id)
		p.mu.Unlock()
		if !tracked {
			continue
		}
		p.logger.Warn().Str("job_id", id).Msg("job unknown to server, dropping")
		if p.onRemove != nil {
			p.onRemove(id)
		}
		p.emit(ctx, Update{Job: client.Job{JobID: id}, Gone: true})
	}

	return anyActive
}

func (p *Poller) emit(ctx context.Context, u Update) {
	select {
	case p.updates <- u:
	case <-ctx.Done():
	}
}
