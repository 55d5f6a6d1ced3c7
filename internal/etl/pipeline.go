package etl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/clinsight/clinsight/internal/mart"
	"github.com/clinsight/clinsight/internal/platform/db"
	"github.com/clinsight/clinsight/internal/source"
)

// State is the lifecycle position of a pipeline run.
type State string

const (
	StateIdle              State = "idle"
	StateSyncingDimensions State = "syncing_dimensions"
	StateDerivingFacts     State = "deriving_facts"
	StateCommitted         State = "committed"
	StateAborted           State = "aborted"
)

// ErrRunInProgress means another session holds the run lock.
var ErrRunInProgress = errors.New("an etl run is already in progress")

// runLockKey identifies the mart-wide advisory lock. One run loads every
// tenant, so a single key serializes all runs.
const runLockKey int64 = 0x434C494E53494554 // "CLINSIET"

// StageResult records one committed pipeline stage.
type StageResult struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration_ns"`
}

// RunSummary is the full accounting of one pipeline run.
type RunSummary struct {
	RunID      uuid.UUID     `json:"run_id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	State      State         `json:"state"`
	Stages     []StageResult `json:"stages"`
	Dimensions *SyncReport   `json:"dimensions,omitempty"`
	Facts      *DeriveReport `json:"facts,omitempty"`
}

// Pipeline orchestrates the two-stage load: dimension synchronization, then
// fact derivation. Each stage commits its own transaction; the advisory run
// lock is held on a dedicated session connection so it spans both commits.
type Pipeline struct {
	pool      *pgxpool.Pool
	src       source.Reader
	dims      mart.DimensionRepository
	facts     mart.FactRepository
	chunkSize int
	batchSize int
	log       zerolog.Logger
}

func NewPipeline(pool *pgxpool.Pool, src source.Reader, dims mart.DimensionRepository,
	facts mart.FactRepository, chunkSize, batchSize int, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		pool:      pool,
		src:       src,
		dims:      dims,
		facts:     facts,
		chunkSize: chunkSize,
		batchSize: batchSize,
		log:       log,
	}
}

// Run executes one full load. It returns ErrRunInProgress without doing any
// work when a concurrent run holds the lock. On stage failure the failing
// stage's transaction rolls back; stages already committed stay committed,
// and the next run picks up from the persisted state.
func (p *Pipeline) Run(ctx context.Context) (*RunSummary, error) {
	lock, err := db.TryAcquireLock(ctx, p.pool, runLockKey)
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if lock == nil {
		return nil, ErrRunInProgress
	}
	defer lock.Release(ctx)

	summary := &RunSummary{
		RunID:     uuid.New(),
		StartedAt: time.Now(),
		State:     StateSyncingDimensions,
	}
	log := p.log.With().Stringer("run_id", summary.RunID).Logger()
	log.Info().Msg("etl run started")

	var lk *Lookups
	err = p.stage(ctx, summary, "sync_dimensions", func(ctx context.Context) error {
		sync := NewSynchronizer(p.src, p.dims, log)
		var stageErr error
		lk, summary.Dimensions, stageErr = sync.SyncAll(ctx)
		return stageErr
	})
	if err != nil {
		summary.State = StateAborted
		summary.FinishedAt = time.Now()
		return summary, fmt.Errorf("sync dimensions stage: %w", err)
	}

	summary.State = StateDerivingFacts
	err = p.stage(ctx, summary, "derive_facts", func(ctx context.Context) error {
		deriver := NewDeriver(p.src, p.facts, p.chunkSize, p.batchSize, log)
		var stageErr error
		summary.Facts, stageErr = deriver.Run(ctx, lk)
		return stageErr
	})
	if err != nil {
		summary.State = StateAborted
		summary.FinishedAt = time.Now()
		return summary, fmt.Errorf("derive facts stage: %w", err)
	}

	summary.State = StateCommitted
	summary.FinishedAt = time.Now()
	log.Info().
		Dur("elapsed", summary.FinishedAt.Sub(summary.StartedAt)).
		Msg("etl run committed")
	return summary, nil
}

// stage runs fn inside its own transaction and records the result on the
// summary. The transaction is attached to the context so repository writes
// inside fn join it.
func (p *Pipeline) stage(ctx context.Context, summary *RunSummary, name string, fn func(ctx context.Context) error) error {
	start := time.Now()

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin %s: %w", name, err)
	}
	defer tx.Rollback(ctx)

	if err := fn(db.WithTx(ctx, tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit %s: %w", name, err)
	}

	summary.Stages = append(summary.Stages, StageResult{
		Name:     name,
		Duration: time.Since(start),
	})
	return nil
}
