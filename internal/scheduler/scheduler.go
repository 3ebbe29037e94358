package scheduler

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/fentz26/planboard/internal/audit"
	"github.com/fentz26/planboard/internal/lifecycle"
	"github.com/fentz26/planboard/internal/models"
	"github.com/fentz26/planboard/internal/store"
)

// Scheduler stamps reached_at on milestones of ACTIVE tasks whose progress
// moved without a write, which is how AUTO progress advances.
type Scheduler struct {
	store  *store.Store
	engine *lifecycle.Engine
	pdr    *audit.PDRWriter
	config *Config

	mu            sync.Mutex
	activeWorkers int
	sweeps        int
	stampedTotal  int
	lastSweep     time.Time
	lastErr       error

	// Control
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new scheduler.
func New(s *store.Store, engine *lifecycle.Engine, pdr *audit.PDRWriter, cfg *Config) *Scheduler {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg.normalize()
	if engine == nil {
		engine = lifecycle.NewEngine(nil)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		store:  s,
		engine: engine,
		pdr:    pdr,
		config: cfg,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins the sweep loop.
func (sch *Scheduler) Start() {
	sch.wg.Add(1)
	go sch.sweepLoop()
	log.Printf("Scheduler started (interval %s, %d workers)", sch.config.Interval, sch.config.Workers)
}

// Stop gracefully stops the scheduler.
func (sch *Scheduler) Stop() {
	sch.cancel()
	sch.wg.Wait()
	log.Println("Scheduler stopped")
}

func (sch *Scheduler) sweepLoop() {
	defer sch.wg.Done()

	ticker := time.NewTicker(sch.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-sch.ctx.Done():
			return
		case <-ticker.C:
			if _, err := sch.Sweep(sch.ctx); err != nil && sch.ctx.Err() == nil {
				log.Printf("Error sweeping milestones: %v", err)
			}
		}
	}
}

// Sweep evaluates every ACTIVE task once and stamps newly reached
// milestones. It returns how many milestones were stamped.
func (sch *Scheduler) Sweep(ctx context.Context) (int, error) {
	tasks, err := sch.store.ListTasks(ctx, store.TaskFilter{Status: models.TaskStatusActive})
	if err != nil {
		sch.finishSweep(0, err)
		return 0, err
	}

	jobs := make(chan *models.Task)
	var (
		mu       sync.Mutex
		stamped  int
		firstErr error
		workers  sync.WaitGroup
	)

	n := sch.config.Workers
	if n > len(tasks) {
		n = len(tasks)
	}
	for i := 0; i < n; i++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			sch.trackWorker(1)
			defer sch.trackWorker(-1)

			for task := range jobs {
				count, err := sch.sweepTask(ctx, task)
				mu.Lock()
				stamped += count
				if err != nil && firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}()
	}

feed:
	for i := range tasks {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- &tasks[i]:
		}
	}
	close(jobs)
	workers.Wait()

	if firstErr == nil {
		firstErr = ctx.Err()
	}
	sch.finishSweep(stamped, firstErr)
	return stamped, firstErr
}

// sweepTask stamps what task has reached. task only names the row: progress
// and the milestone set are evaluated again on the copy read inside the stamp
// transaction, so an edit landing after the listing is honoured.
func (sch *Scheduler) sweepTask(ctx context.Context, task *models.Task) (int, error) {
	var (
		progress float64
		ids      []string
		names    []string
		evalErr  error
	)
	count, err := sch.store.StampMilestones(ctx, task.ID, func(fresh *models.Task) []string {
		if fresh.Status != models.TaskStatusActive {
			return nil
		}
		progress, evalErr = sch.engine.ComputeProgress(fresh)
		if evalErr != nil {
			return nil
		}
		for _, m := range lifecycle.Reached(fresh.Milestones, progress) {
			ids = append(ids, m.ID)
			names = append(names, m.Name)
		}
		return ids
	}, sch.engine.Now())
	if errors.Is(err, store.ErrTaskNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if evalErr != nil {
		return 0, evalErr
	}
	if count > 0 && sch.pdr != nil {
		sch.pdr.Record(ctx, audit.ActionMilestoneReached, map[string]interface{}{
			"task_id":    task.ID,
			"milestones": ids,
			"progress":   progress,
		}, audit.OutcomeSuccess, task.ID, map[string]interface{}{"names": names})
		log.Printf("Task %s (%s) reached %v at %d%%", task.ID, task.Title, names, lifecycle.DisplayPercent(progress))
	}
	return count, nil
}

func (sch *Scheduler) trackWorker(delta int) {
	sch.mu.Lock()
	sch.activeWorkers += delta
	sch.mu.Unlock()
}

func (sch *Scheduler) finishSweep(stamped int, err error) {
	sch.mu.Lock()
	defer sch.mu.Unlock()
	sch.sweeps++
	sch.stampedTotal += stamped
	sch.lastSweep = sch.engine.Now()
	sch.lastErr = err
}

// Stats returns current scheduler statistics.
func (sch *Scheduler) Stats() map[string]interface{} {
	sch.mu.Lock()
	defer sch.mu.Unlock()

	stats := map[string]interface{}{
		"active_workers": sch.activeWorkers,
		"workers":        sch.config.Workers,
		"interval":       sch.config.Interval.String(),
		"sweeps":         sch.sweeps,
		"stamped_total":  sch.stampedTotal,
	}
	if !sch.lastSweep.IsZero() {
		stats["last_sweep"] = sch.lastSweep
	}
	if sch.lastErr != nil {
		stats["last_error"] = sch.lastErr.Error()
	}
	return stats
}
