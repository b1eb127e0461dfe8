package core

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/bundlenudge/bundlenudge/internal/bundle"
	"github.com/bundlenudge/bundlenudge/internal/model"
	"github.com/bundlenudge/bundlenudge/internal/platform"
	"github.com/bundlenudge/bundlenudge/internal/queue"
	"github.com/bundlenudge/bundlenudge/internal/storage"
)

// uploadTimeout bounds a single bundle upload to object storage.
const uploadTimeout = 5 * time.Minute

// BundleStore is the slice of the storage uploader the pipeline needs.
type BundleStore interface {
	Put(ctx context.Context, key string, data []byte) (string, error)
}

// UploadService runs the bundle intake pipeline: validate, queue by tier,
// upload to object storage, track job status.
type UploadService struct {
	jobs   JobStore
	store  BundleStore
	router *queue.Router
	policy bundle.Policy
	logger zerolog.Logger
}

func NewUploadService(jobs JobStore, store BundleStore, router *queue.Router, logger zerolog.Logger) *UploadService {
	return &UploadService{
		jobs:   jobs,
		store:  store,
		router: router,
		policy: bundle.DefaultPolicy(),
		logger: logger.With().Str("component", "upload").Logger(),
	}
}

// Submit validates the bundle synchronously and, when valid, queues the
// upload on the tier's lane. The returned job is already persisted; callers
// poll it by id. Validation failures never create a job.
func (s *UploadService) Submit(ctx context.Context, appID, tier string, data []byte) (*model.UploadJob, *bundle.Validation, error) {
	v := bundle.Validate(data, s.policy)
	if !v.Valid {
		return nil, v, NewError(model.CodeInvalidBundle, "bundle validation failed: %v", v.Errors)
	}

	now := time.Now()
	job := &model.UploadJob{
		ID:         platform.NewName("job_"),
		AppID:      appID,
		Tier:       tier,
		Status:     model.UploadStatusQueued,
		BundleHash: v.Hash,
		BundleSize: int64(len(data)),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.jobs.Put(ctx, job); err != nil {
		return nil, v, err
	}

	// The job outlives the HTTP request; it runs on its own deadline.
	payload := data
	err := s.router.Dispatch(context.WithoutCancel(ctx), queue.Job{
		ID:   job.ID,
		Tier: tier,
		Run: func(ctx context.Context) {
			s.process(ctx, job, payload)
		},
	})
	if err != nil {
		job.Status = model.UploadStatusFailed
		job.Error = err.Error()
		if putErr := s.jobs.Put(ctx, job); putErr != nil {
			s.logger.Error().Err(putErr).Str("job_id", job.ID).Msg("mark job failed")
		}
		return nil, v, err
	}

	return job, v, nil
}

func (s *UploadService) process(ctx context.Context, job *model.UploadJob, data []byte) {
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	job.Status = model.UploadStatusProcessing
	job.Progress = 10
	if err := s.jobs.Put(ctx, job); err != nil {
		s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("update job status")
	}

	ref, err := s.store.Put(ctx, storage.BundleKey(job.AppID, job.BundleHash), data)
	if err != nil {
		s.logger.Error().Err(err).Str("job_id", job.ID).Msg("bundle upload failed")
		job.Status = model.UploadStatusFailed
		job.Error = err.Error()
	} else {
		job.Status = model.UploadStatusCompleted
		job.Progress = 100
		job.BundleRef = ref
	}

	if err := s.jobs.Put(ctx, job); err != nil {
		s.logger.Error().Err(err).Str("job_id", job.ID).Msg("persist terminal job status")
	}
}

// GetJob returns the current job status.
func (s *UploadService) GetJob(ctx context.Context, id string) (*model.UploadJob, error) {
	return s.jobs.Get(ctx, id)
}
