package staging

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/rosterline/rosterline/errors"
	"github.com/rosterline/rosterline/jobs"
)

// Watcher enqueues an ingestion job for every workbook dropped into the
// upload directory. Events for the same file are debounced so a job is only
// created once the writer has gone quiet.
type Watcher struct {
	uploadDir      string
	watcher        *fsnotify.Watcher
	queue          *jobs.Queue
	logger         *zap.SugaredLogger
	debouncePeriod time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer
	// seen guards against re-enqueuing a file that fired both Create and
	// Write after its debounce window closed.
	seen map[string]bool
}

// NewWatcher creates a watcher over the upload directory.
func NewWatcher(uploadDir string, queue *jobs.Queue, logger *zap.SugaredLogger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create fsnotify watcher")
	}
	if err := fsw.Add(uploadDir); err != nil {
		fsw.Close()
		return nil, errors.Wrapf(err, "failed to watch upload directory %s", uploadDir)
	}

	return &Watcher{
		uploadDir:      uploadDir,
		watcher:        fsw,
		queue:          queue,
		logger:         logger,
		debouncePeriod: 500 * time.Millisecond,
		timers:         make(map[string]*time.Timer),
		seen:           make(map[string]bool),
	}, nil
}

// Start begins watching in a background goroutine.
func (w *Watcher) Start() {
	w.logger.Infow("Watching upload directory for workbooks", "dir", w.uploadDir)
	go w.watchLoop()
}

// Stop closes the watcher; pending debounce timers are cancelled.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	for _, t := range w.timers {
		t.Stop()
	}
	w.mu.Unlock()
	return w.watcher.Close()
}

func (w *Watcher) watchLoop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Remove != 0 {
				// The pipeline deletes staged files after a run; forget the
				// name so a future upload under it enqueues again.
				w.mu.Lock()
				delete(w.seen, event.Name)
				w.mu.Unlock()
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !IsWorkbook(event.Name) {
				continue
			}
			w.scheduleEnqueue(event.Name)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warnw("Upload directory watcher error", "error", err)
		}
	}
}

// scheduleEnqueue resets the file's debounce timer; the job is created once
// events stop arriving for the debounce period.
func (w *Watcher) scheduleEnqueue(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.seen[path] {
		return
	}
	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(w.debouncePeriod, func() {
		w.enqueue(path)
	})
}

func (w *Watcher) enqueue(path string) {
	w.mu.Lock()
	delete(w.timers, path)
	if w.seen[path] {
		w.mu.Unlock()
		return
	}
	w.seen[path] = true
	w.mu.Unlock()

	base := filepath.Base(path)
	job := jobs.NewJob(base, base)
	if err := w.queue.Enqueue(job); err != nil {
		w.logger.Errorw("Failed to enqueue watched workbook",
			"path", path,
			"error", err)
		w.mu.Lock()
		delete(w.seen, path)
		w.mu.Unlock()
		return
	}

	w.logger.Infow("Enqueued watched workbook",
		"job_id", job.ID,
		"filename", base)
}
