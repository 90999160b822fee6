package inmemory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/dvloznov/statement-ledger/internal/jobs"
)

var errJobNotFound = errors.New("job not found")

// Store keeps job state for the lifetime of the worker process. Jobs are
// copied in and out so callers never share the queue's pointer.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]jobs.IngestFolderJob
}

func NewStore() *Store {
	return &Store{jobs: make(map[string]jobs.IngestFolderJob)}
}

func (s *Store) SaveJob(ctx context.Context, job *jobs.IngestFolderJob) error {
	if job.JobID == "" {
		return errors.New("SaveJob: job ID is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.JobID] = *job
	return nil
}

func (s *Store) GetJob(ctx context.Context, jobID string) (*jobs.IngestFolderJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("GetJob: %s: %w", jobID, errJobNotFound)
	}
	return &job, nil
}

func (s *Store) ListJobs(ctx context.Context, filter jobs.JobFilter) ([]*jobs.IngestFolderJob, error) {
	s.mu.RLock()
	result := make([]*jobs.IngestFolderJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		if filter.Folder != "" && job.Folder != filter.Folder {
			continue
		}
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		result = append(result, &job)
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].JobID < result[j].JobID
	})

	if filter.Offset >= len(result) {
		return []*jobs.IngestFolderJob{}, nil
	}
	result = result[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}
	return result, nil
}

// UpdateJobStatus sets the status. An empty errorMsg keeps the previous error.
func (s *Store) UpdateJobStatus(ctx context.Context, jobID string, status jobs.JobStatus, errorMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return fmt.Errorf("UpdateJobStatus: %s: %w", jobID, errJobNotFound)
	}
	job.Status = status
	if errorMsg != "" {
		job.Error = errorMsg
	}
	s.jobs[jobID] = job
	return nil
}

var _ jobs.JobStore = (*Store)(nil)
