// Package janitor reclaims rooms nobody is using any more. It is the
// backstop for every cleanup a client failed to do.
package janitor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hilthontt/lobby/internal/application/rooms"
	"github.com/hilthontt/lobby/internal/domain"
	"github.com/hilthontt/lobby/internal/infrastructure/events"
	"github.com/hilthontt/lobby/internal/infrastructure/logging"
	"github.com/hilthontt/lobby/internal/infrastructure/metrics"
	"github.com/hilthontt/lobby/internal/persistence/store"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultStaleAfter  = 15 * time.Minute
	DefaultConcurrency = 8
)

// Recorder receives the outcome of every run.
type Recorder interface {
	JanitorRun(outcome string, reclaimed, failed, orphans int, took time.Duration)
}

type RoomFailure struct {
	Room string
	// Orphan marks a subtree whose room document was already gone.
	Orphan bool
	Err    error
}

type Report struct {
	Selected  int
	Reclaimed int
	// Refreshed counts selected rooms that saw activity before deletion and
	// were kept.
	Refreshed int
	Orphans   int
	Failed    []RoomFailure
	Duration  time.Duration
}

// PartialSweepError lists the rooms a run could not reclaim. They still
// match the selection and are retried by the next run.
type PartialSweepError struct {
	Failures []RoomFailure
}

func (e *PartialSweepError) Error() string {
	rooms := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		room := f.Room
		if room == "" {
			room = "orphan scan"
		}
		rooms = append(rooms, fmt.Sprintf("%s: %v", room, f.Err))
	}
	return fmt.Sprintf("%s: %d room(s): %s", domain.ErrPartialSweep, len(e.Failures), strings.Join(rooms, "; "))
}

func (e *PartialSweepError) Unwrap() error {
	return domain.ErrPartialSweep
}

type Options struct {
	// Tenant is required; an empty tenant aborts every run.
	Tenant      string
	StaleAfter  time.Duration
	Concurrency int
	ReapOrphans bool
	Now         func() time.Time
	Publisher   events.Publisher
	Recorder    Recorder
}

type Sweep struct {
	store       store.Store
	tenant      string
	staleAfter  time.Duration
	concurrency int
	reapOrphans bool
	now         func() time.Time
	publisher   events.Publisher
	recorder    Recorder
	logger      logging.Logger
}

func NewSweep(s store.Store, opts Options, logger logging.Logger) *Sweep {
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = DefaultStaleAfter
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Publisher == nil {
		opts.Publisher = events.NewNopPublisher()
	}
	return &Sweep{
		store:       s,
		tenant:      opts.Tenant,
		staleAfter:  opts.StaleAfter,
		concurrency: opts.Concurrency,
		reapOrphans: opts.ReapOrphans,
		now:         opts.Now,
		publisher:   opts.Publisher,
		recorder:    opts.Recorder,
		logger:      logger,
	}
}

// Run performs one sweep. A nil error means every selected room was
// reclaimed; *PartialSweepError means some were not. Any other error aborted
// the run before anything was deleted.
func (s *Sweep) Run(ctx context.Context) (Report, error) {
	start := time.Now()
	report, err := s.run(ctx)
	report.Duration = time.Since(start)

	outcome := metrics.OutcomeSuccess
	switch {
	case errors.Is(err, domain.ErrPartialSweep):
		outcome = metrics.OutcomePartial
	case err != nil:
		outcome = metrics.OutcomeAborted
	}
	if s.recorder != nil {
		s.recorder.JanitorRun(outcome, report.Reclaimed, len(report.Failed), report.Orphans, report.Duration)
	}

	extra := map[logging.ExtraKey]any{
		logging.Tenant:   s.tenant,
		logging.Duration: report.Duration.String(),
		"outcome":        outcome,
		"selected":       report.Selected,
		"reclaimed":      report.Reclaimed,
		"refreshed":      report.Refreshed,
		"orphans":        report.Orphans,
		"failed":         len(report.Failed),
	}
	switch outcome {
	case metrics.OutcomeAborted:
		extra[logging.ErrorMessage] = err.Error()
		s.logger.Error(logging.Janitor, logging.Sweep, "sweep aborted", extra)
	case metrics.OutcomePartial:
		s.logger.Warn(logging.Janitor, logging.Sweep, "sweep finished with failures", extra)
	default:
		s.logger.Info(logging.Janitor, logging.Sweep, "sweep finished", extra)
	}

	return report, err
}

func (s *Sweep) run(ctx context.Context) (Report, error) {
	var report Report

	if s.tenant == "" {
		return report, fmt.Errorf("janitor: tenant: %w", domain.ErrConfigMissing)
	}
	tenant := domain.Tenant(s.tenant)

	cutoff := s.now().Add(-s.staleAfter)
	stale, err := s.store.List(ctx, tenant.Rooms(), store.Where(domain.FieldLastActivity, store.LessOrEqual, cutoff))
	if err != nil {
		return report, fmt.Errorf("janitor: select stale rooms: %w", err)
	}
	report.Selected = len(stale)

	var mu sync.Mutex
	record := func(room string, orphan bool, res result, err error) {
		mu.Lock()
		defer mu.Unlock()

		switch {
		case err != nil:
			report.Failed = append(report.Failed, RoomFailure{Room: room, Orphan: orphan, Err: err})
		case res == refreshed:
			report.Refreshed++
		case res == reclaimed && orphan:
			report.Orphans++
		case res == reclaimed:
			report.Reclaimed++
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, doc := range stale {
		room := rooms.FromDocument(doc)
		name := doc.Key()
		g.Go(func() error {
			res, err := s.reclaimStale(gctx, tenant.Room(name), room)
			record(name, false, res, err)
			return nil
		})
	}
	_ = g.Wait()

	if s.reapOrphans {
		orphans, err := s.findOrphans(ctx, tenant)
		if err != nil {
			s.logger.Warn(logging.Janitor, logging.Orphan, "failed to list orphaned rooms", map[logging.ExtraKey]any{
				logging.Tenant:       s.tenant,
				logging.ErrorMessage: err.Error(),
			})
			record("", true, skipped, err)
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.concurrency)
		for _, name := range orphans {
			g.Go(func() error {
				res, err := s.reclaimOrphan(gctx, tenant.Room(name))
				record(name, true, res, err)
				return nil
			})
		}
		_ = g.Wait()
	}

	if len(report.Failed) > 0 {
		return report, &PartialSweepError{Failures: report.Failed}
	}
	return report, nil
}

type result int

const (
	skipped result = iota
	reclaimed
	refreshed
)

// reclaimStale re-reads the room before deleting it so a room touched since
// selection is kept. The window between that read and the delete remains.
func (s *Sweep) reclaimStale(ctx context.Context, path domain.RoomPath, selected domain.Room) (result, error) {
	doc, err := s.store.Get(ctx, path.DocumentPath)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		// deleted by a leave meanwhile; still clear anything left under it
	case err != nil:
		return s.fail(path, false, err)
	default:
		if !rooms.FromDocument(doc).IsStale(s.now(), s.staleAfter) {
			return refreshed, nil
		}
	}

	if err := s.store.RecursiveDelete(ctx, path.DocumentPath); err != nil {
		return s.fail(path, false, err)
	}

	s.logger.Info(logging.Janitor, logging.Delete, "stale room reclaimed", map[logging.ExtraKey]any{
		logging.Tenant: s.tenant,
		logging.RoomID: path.Name(),
		"lastActivity": selected.LastActivity,
	})
	if err := s.publisher.RoomDeleted(ctx, s.tenant, path.Name(), domain.ReasonStale); err != nil {
		s.logger.Warn(logging.RabbitMQ, logging.Publish, "failed to publish room deleted", map[logging.ExtraKey]any{
			logging.RoomID:       path.Name(),
			logging.ErrorMessage: err.Error(),
		})
	}
	return reclaimed, nil
}

// findOrphans lists room keys that have nested documents but no room
// document. Children is read before the room list so a room created in
// between is never mistaken for an orphan.
func (s *Sweep) findOrphans(ctx context.Context, tenant domain.TenantPath) ([]string, error) {
	keys, err := s.store.Children(ctx, tenant.Rooms())
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}

	docs, err := s.store.List(ctx, tenant.Rooms())
	if err != nil {
		return nil, err
	}
	existing := make(map[string]struct{}, len(docs))
	for _, doc := range docs {
		existing[doc.Key()] = struct{}{}
	}

	orphans := make([]string, 0)
	for _, key := range keys {
		if _, ok := existing[key]; !ok {
			orphans = append(orphans, key)
		}
	}
	return orphans, nil
}

func (s *Sweep) reclaimOrphan(ctx context.Context, path domain.RoomPath) (result, error) {
	_, err := s.store.Get(ctx, path.DocumentPath)
	if err == nil {
		// recreated since it was listed
		return skipped, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return s.fail(path, true, err)
	}

	if err := s.store.RecursiveDelete(ctx, path.DocumentPath); err != nil {
		return s.fail(path, true, err)
	}

	s.logger.Info(logging.Janitor, logging.Orphan, "orphaned room data reclaimed", map[logging.ExtraKey]any{
		logging.Tenant: s.tenant,
		logging.RoomID: path.Name(),
	})
	if err := s.publisher.RoomDeleted(ctx, s.tenant, path.Name(), domain.ReasonOrphaned); err != nil {
		s.logger.Warn(logging.RabbitMQ, logging.Publish, "failed to publish room deleted", map[logging.ExtraKey]any{
			logging.RoomID:       path.Name(),
			logging.ErrorMessage: err.Error(),
		})
	}
	return reclaimed, nil
}

func (s *Sweep) fail(path domain.RoomPath, orphan bool, err error) (result, error) {
	s.logger.Error(logging.Janitor, logging.Delete, "failed to reclaim room", map[logging.ExtraKey]any{
		logging.Tenant:       s.tenant,
		logging.RoomID:       path.Name(),
		logging.ErrorMessage: err.Error(),
		"orphan":             orphan,
	})
	return skipped, err
}
