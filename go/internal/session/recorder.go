package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mcdev12/lomba/go/internal/models"
	"github.com/rs/zerolog/log"
)

// ScoreWriter appends a finished score to the ledger
type ScoreWriter interface {
	Append(ctx context.Context, rec models.ScoreRecord) error
}

// RecorderConfig sizes the score writer pool
type RecorderConfig struct {
	Workers      int
	QueueSize    int
	WriteTimeout time.Duration
}

// DefaultRecorderConfig returns the pool settings used in production
func DefaultRecorderConfig() RecorderConfig {
	return RecorderConfig{
		Workers:      4,
		QueueSize:    256,
		WriteTimeout: 5 * time.Second,
	}
}

// RecorderStats counts what happened to submitted records
type RecorderStats struct {
	Written int64 `json:"written"`
	Failed  int64 `json:"failed"`
	Dropped int64 `json:"dropped"`
}

// Recorder writes terminal scores in the background. Writes are attempted at
// most once; a full queue drops the record.
type Recorder struct {
	writer ScoreWriter
	config RecorderConfig
	workCh chan models.ScoreRecord

	// stopMu orders Record against the final drain in Run
	stopMu  sync.RWMutex
	stopped bool

	written atomic.Int64
	failed  atomic.Int64
	dropped atomic.Int64
}

// NewRecorder creates a recorder; call Run to start its workers
func NewRecorder(writer ScoreWriter, config RecorderConfig) *Recorder {
	defaults := DefaultRecorderConfig()
	if config.Workers <= 0 {
		config.Workers = defaults.Workers
	}
	if config.QueueSize <= 0 {
		config.QueueSize = defaults.QueueSize
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = defaults.WriteTimeout
	}
	return &Recorder{
		writer: writer,
		config: config,
		workCh: make(chan models.ScoreRecord, config.QueueSize),
	}
}

// Record queues rec without blocking. It reports false when the record was
// dropped because the queue is full or the recorder has stopped.
func (r *Recorder) Record(rec models.ScoreRecord) bool {
	r.stopMu.RLock()
	defer r.stopMu.RUnlock()

	if r.stopped {
		r.drop(rec, "score recorder stopped, dropping record")
		return false
	}
	select {
	case r.workCh <- rec:
		return true
	default:
		r.drop(rec, "score queue full, dropping record")
		return false
	}
}

func (r *Recorder) drop(rec models.ScoreRecord, msg string) {
	r.dropped.Add(1)
	log.Warn().
		Str("participant", rec.Participant).
		Int("score", rec.Score).
		Str("game_kind", rec.GameKind.String()).
		Msg(msg)
}

// Run starts the workers and blocks until ctx ends. Records still queued at
// that point are written before Run returns; later records are refused.
func (r *Recorder) Run(ctx context.Context) error {
	log.Info().Int("workers", r.config.Workers).Msg("score recorder started")

	var wg sync.WaitGroup
	for i := 0; i < r.config.Workers; i++ {
		wg.Add(1)
		go r.worker(ctx, &wg, i)
	}
	wg.Wait()

	r.stopMu.Lock()
	r.stopped = true
	r.stopMu.Unlock()

	drained := 0
	for {
		select {
		case rec := <-r.workCh:
			r.write(context.Background(), rec)
			drained++
		default:
			log.Info().Int("drained", drained).Msg("score recorder stopped")
			return nil
		}
	}
}

// Stats returns the current counters
func (r *Recorder) Stats() RecorderStats {
	return RecorderStats{
		Written: r.written.Load(),
		Failed:  r.failed.Load(),
		Dropped: r.dropped.Load(),
	}
}

func (r *Recorder) worker(ctx context.Context, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Int("worker_id", workerID).Msg("score worker shutting down")
			return
		case rec := <-r.workCh:
			r.write(ctx, rec)
		}
	}
}

func (r *Recorder) write(ctx context.Context, rec models.ScoreRecord) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.config.WriteTimeout)
	defer cancel()

	if err := r.writer.Append(writeCtx, rec); err != nil {
		r.failed.Add(1)
		log.Error().
			Err(err).
			Str("participant", rec.Participant).
			Int("score", rec.Score).
			Str("game_kind", rec.GameKind.String()).
			Msg("failed to record score")
		return
	}
	r.written.Add(1)
	log.Info().
		Str("participant", rec.Participant).
		Int("score", rec.Score).
		Str("game_kind", rec.GameKind.String()).
		Msg("score recorded")
}
