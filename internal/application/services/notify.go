package services

import (
	"context"
	"time"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"

	"mosaicod/internal/application/validation"
	"mosaicod/internal/domain/models"
	"mosaicod/internal/domain/ports"
)

// notifyWriteTimeout bounds persisting an event received from the registry subject
const notifyWriteTimeout = 10 * time.Second

// NotifyService persists notifies. It observes the registry subject so
// that events published by other services are recorded.
type NotifyService struct {
	repo   ports.Registry
	logger logr.Logger
}

// NewNotifyService creates a NotifyService subscribed to the registry subject
func NewNotifyService(repo ports.Registry, logger logr.Logger) (*NotifyService, error) {
	s := &NotifyService{
		repo:   repo,
		logger: logger.WithName("notify"),
	}
	if err := repo.Subject().Subscribe(s); err != nil {
		return nil, errors.Wrap(err, "failed to subscribe to registry events")
	}
	return s, nil
}

// Observe records models.Notify events, other events are ignored
func (s *NotifyService) Observe(event interface{}) {
	n, ok := event.(models.Notify)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), notifyWriteTimeout)
	defer cancel()
	if err := s.persist(ctx, n); err != nil {
		s.logger.Error(err, "failed to record notify", "target", n.Target, "notify_type", string(n.Type))
	}
}

// Create records a notify sent by a client
func (s *NotifyService) Create(ctx context.Context, target, notifyType, msg string) error {
	if target == "" {
		return validation.NewNameError("name", "notify target is empty")
	}
	t, ok := models.ParseNotifyType(notifyType)
	if !ok {
		return validation.NewValidationError("notify_type", "unknown notify type '"+notifyType+"'")
	}
	return s.persist(ctx, models.NewNotify(target, t, msg))
}

// List returns notifies in creation order, restricted to target when set
func (s *NotifyService) List(ctx context.Context, target string) ([]models.Notify, error) {
	reader, err := s.repo.Reader(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get reader")
	}
	defer reader.Close()

	var scope ports.Scope = ports.EmptyScope{}
	if target != "" {
		scope = ports.NewNameScope(target)
	}
	var out []models.Notify
	err = reader.ListNotifies(ctx, func(n models.Notify) error {
		out = append(out, n)
		return nil
	}, scope)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list notifies")
	}
	return out, nil
}

// Close stops observing the registry
func (s *NotifyService) Close() error {
	return s.repo.Subject().Unsubscribe(s)
}

func (s *NotifyService) persist(ctx context.Context, n models.Notify) error {
	writer, err := s.repo.Writer(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get writer")
	}
	defer writer.Abort()

	if err := writer.CreateNotify(ctx, n); err != nil {
		return errors.WithMessage(err, "failed to create notify")
	}
	return errors.WithMessage(writer.Commit(), "failed to commit notify")
}
