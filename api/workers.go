package api

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"hostsweep/logging"
	"hostsweep/scanner"
)

// popTimeout bounds each BRPOP so workers notice cancellation promptly.
const popTimeout = 2 * time.Second

// errScanInterrupted is recorded on tasks that were running when the server shut down.
var errScanInterrupted = errors.New("scan interrupted by shutdown")

// Worker drains the scan queue and executes tasks with a shared Scanner.
type Worker struct {
	store   TaskStore
	scanner *scanner.Scanner
	history scanner.Sink
	logger  *slog.Logger
	now     func() time.Time
}

// NewWorker builds a worker. history may be nil; when set, every completed report is also
// written there.
func NewWorker(store TaskStore, sc *scanner.Scanner, history scanner.Sink, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = logging.Logger()
	}
	return &Worker{
		store:   store,
		scanner: sc,
		history: history,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// StartWorkers launches numWorkers goroutines that process scan tasks until ctx is cancelled.
// The returned WaitGroup completes once every worker has exited.
func StartWorkers(ctx context.Context, w *Worker, numWorkers int) *sync.WaitGroup {
	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			w.loop(ctx, id)
		}(i)
	}
	return &wg
}

func (w *Worker) loop(ctx context.Context, id int) {
	logger := w.logger.With("worker", id)
	for {
		if ctx.Err() != nil {
			logger.Debug("worker stopping")
			return
		}

		taskID, err := w.store.PopFromQueue(ctx, popTimeout)
		if err != nil {
			if errors.Is(err, ErrQueueEmpty) {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			logger.Error("worker failed to pop task", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		w.Process(ctx, taskID)
	}
}

// Process runs a single queued task through its lifecycle: running, then completed or failed.
func (w *Worker) Process(ctx context.Context, taskID string) {
	logger := w.logger.With("task_id", taskID)

	task, err := w.store.GetTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, ErrTaskNotFound) {
			logger.Warn("worker task disappeared")
			return
		}
		logger.Error("worker failed to load task", "error", err)
		return
	}

	task.Status = StatusRunning
	task.Error = ""
	task.Results = nil
	task.CompletedAt = nil
	if err := w.store.UpdateTask(ctx, task); err != nil {
		logger.Error("worker failed to mark task running", "error", err)
		return
	}

	portRange, err := scanner.ParsePortRange(task.Ports, scanner.MaxPort)
	if err != nil {
		w.fail(ctx, task, err)
		return
	}
	concurrency := task.Concurrency
	if concurrency == 0 {
		concurrency = scanner.DefaultConcurrency
	}

	runner := scanner.NewRunner(w.scanner, w.history)
	report, err := runner.RunBatch(ctx, task.Hosts, portRange, concurrency)
	switch {
	case errors.Is(err, scanner.ErrInterrupted):
		// Hosts cut short by shutdown would read as offline; nothing from this run is kept.
		w.fail(ctx, task, errScanInterrupted)
		return
	case errors.Is(err, scanner.ErrSinkFailed):
		// The scan itself succeeded; history is best effort for API tasks.
		logger.Warn("failed to record scan history", "error", err)
	case err != nil:
		w.fail(ctx, task, err)
		return
	}

	task.Status = StatusCompleted
	task.Results = report
	now := w.now()
	task.CompletedAt = &now

	// Shutdown may start between the end of the scan and this write.
	if err := w.store.UpdateTask(context.WithoutCancel(ctx), task); err != nil {
		logger.Error("worker failed to update task", "error", err)
		return
	}
	logger.Info("task completed", "hosts", report.Len())
}

func (w *Worker) fail(ctx context.Context, task *ScanTask, err error) {
	w.logger.Error("worker task failed", "task_id", task.ID, "error", err)
	task.Status = StatusFailed
	task.Error = err.Error()
	task.Results = nil
	now := w.now()
	task.CompletedAt = &now
	if updateErr := w.store.UpdateTask(context.WithoutCancel(ctx), task); updateErr != nil {
		w.logger.Error("worker failed to persist failed task", "task_id", task.ID, "error", updateErr)
	}
}
