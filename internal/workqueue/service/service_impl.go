package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	workqueuedomain "github.com/smallbiznis/rentledger/internal/workqueue/domain"
	"github.com/smallbiznis/rentledger/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type Service struct {
	log     *zap.Logger
	genID   *snowflake.Node
	jobrepo repository.Repository[workqueuedomain.Job]
}

func NewService(p ServiceParam) workqueuedomain.Service {
	return &Service{
		log:     p.Log.Named("workqueue.service"),
		genID:   p.GenID,
		jobrepo: repository.ProvideStore[workqueuedomain.Job](p.DB),
	}
}

// Enqueue appends one durable job for an external worker to pick up.
func (s *Service) Enqueue(ctx context.Context, event, action string, params map[string]any, destination string, priority int) (workqueuedomain.Job, error) {
	job := workqueuedomain.Job{
		ID:          s.genID.Generate(),
		Event:       event,
		Action:      action,
		Params:      datatypes.JSONMap(params),
		Destination: destination,
		Priority:    priority,
		Status:      workqueuedomain.JobStatusPending,
	}
	if err := s.jobrepo.Create(ctx, &job); err != nil {
		return workqueuedomain.Job{}, fmt.Errorf("enqueue job: %w", err)
	}
	s.log.Info("job enqueued",
		zap.String("job_id", job.ID.String()),
		zap.String("action", action),
		zap.String("destination", destination))
	return job, nil
}
