package handler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/use-agent/deepcrawl/crawler"
	"github.com/use-agent/deepcrawl/models"
)

// Job statuses.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusPartial    = "partial"
	StatusFailed     = "failed"
)

// job tracks one asynchronous crawl.
type job struct {
	id        string
	createdAt time.Time

	mu          sync.Mutex
	status      string
	pages       []models.PageResult
	failed      int
	cacheStatus string
	errMsg      string
}

func (j *job) add(p models.PageResult) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.pages = append(j.pages, p)
	if p.Status != models.StatusOK {
		j.failed++
	}
}

// finish replaces the streamed pages with the final ordered result and
// derives the job status from the page statuses.
func (j *job) finish(res *crawler.Result) string {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.pages = res.Pages
	j.failed = res.FetchFailed + res.ExtractFailed
	j.status = jobStatus(len(res.Pages), j.failed)
	if res.Aborted && j.status == StatusCompleted {
		j.status = StatusPartial
	}
	return j.status
}

func (j *job) fromCache(pages []models.PageResult) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.pages = pages
	j.failed = 0
	for _, p := range pages {
		if p.Status != models.StatusOK {
			j.failed++
		}
	}
	j.status = jobStatus(len(pages), j.failed)
	j.cacheStatus = "hit"
}

func (j *job) fail(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = StatusFailed
	j.errMsg = err.Error()
}

// jobView is a consistent copy of a job's state.
type jobView struct {
	status      string
	pages       []models.PageResult
	failed      int
	cacheStatus string
	errMsg      string
}

func (j *job) snapshot() jobView {
	j.mu.Lock()
	defer j.mu.Unlock()
	pages := make([]models.PageResult, len(j.pages))
	copy(pages, j.pages)
	return jobView{
		status:      j.status,
		pages:       pages,
		failed:      j.failed,
		cacheStatus: j.cacheStatus,
		errMsg:      j.errMsg,
	}
}

func jobStatus(total, failed int) string {
	switch {
	case total > 0 && failed == total:
		return StatusFailed
	case failed > 0:
		return StatusPartial
	default:
		return StatusCompleted
	}
}

// Jobs holds all in-flight and completed crawl jobs. Finished jobs older
// than one hour are expired by a background goroutine until Close is called.
// Crawls started for the store run on its context, so Close also stops them.
type Jobs struct {
	mu   sync.RWMutex
	jobs map[string]*job

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	closeOnce sync.Once
}

// NewJobs creates an empty job store.
func NewJobs() *Jobs {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Jobs{
		jobs:   make(map[string]*job),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go s.expireLoop()
	return s
}

func (s *Jobs) create() *job {
	j := &job{
		id:        "crawl-" + uuid.NewString(),
		createdAt: time.Now(),
		status:    StatusProcessing,
	}
	s.mu.Lock()
	s.jobs[j.id] = j
	s.mu.Unlock()
	return j
}

func (s *Jobs) get(id string) (*job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	return j, ok
}

// Running returns the number of jobs still processing.
func (s *Jobs) Running() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, j := range s.jobs {
		j.mu.Lock()
		if j.status == StatusProcessing {
			n++
		}
		j.mu.Unlock()
	}
	return n
}

// Close cancels running crawls and stops the expiry goroutine. Cancelled
// crawls finish their in-flight pages and are marked partial.
func (s *Jobs) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		close(s.done)
	})
}

func (s *Jobs) expireLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.expire(time.Hour)
		}
	}
}

func (s *Jobs) expire(age time.Duration) {
	cutoff := time.Now().Add(-age)
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, j := range s.jobs {
		j.mu.Lock()
		running := j.status == StatusProcessing
		j.mu.Unlock()
		if !running && j.createdAt.Before(cutoff) {
			delete(s.jobs, id)
		}
	}
}
