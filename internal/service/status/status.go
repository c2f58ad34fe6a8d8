// internal/service/status/status.go
package status

import (
	"context"
	"fmt"

	domain "salonfunnel-service/internal/domain/status"
	xerrors "salonfunnel-service/internal/pkg/errors"

	"go.uber.org/zap"
)

// StatusStore is the persistence surface the service needs. The store owns
// the single-default invariant transactionally; the service layers validation
// and logging on top.
type StatusStore interface {
	Create(ctx context.Context, s *domain.StatusRecord) error
	FindByID(ctx context.Context, id int64) (*domain.StatusRecord, error)
	List(ctx context.Context) ([]domain.StatusRecord, error)
	Update(ctx context.Context, s *domain.StatusRecord) error
	Delete(ctx context.Context, id int64) error
	GetDefault(ctx context.Context) (*domain.StatusRecord, error)
}

type Service struct {
	statuses StatusStore
	logger   *zap.Logger
}

func NewService(statuses StatusStore, logger *zap.Logger) *Service {
	return &Service{statuses: statuses, logger: logger}
}

// Create adds a work-queue label. The first label ever created becomes the
// default regardless of the request, so a default always exists.
func (s *Service) Create(ctx context.Context, req *domain.CreateStatusRequest) (*domain.StatusRecord, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("%w: status name is required", xerrors.ErrInvalidInput)
	}

	rec := &domain.StatusRecord{
		Name:      req.Name,
		Color:     req.Color,
		Order:     req.Order,
		IsDefault: req.IsDefault,
	}

	existing, err := s.statuses.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(existing) == 0 {
		rec.IsDefault = true
	}

	if err := s.statuses.Create(ctx, rec); err != nil {
		s.logger.Error("failed to create status", zap.Error(err))
		return nil, err
	}

	s.logger.Info("status created",
		zap.Int64("status_id", rec.ID),
		zap.String("name", rec.Name),
		zap.Bool("is_default", rec.IsDefault),
	)

	return rec, nil
}

// Get retrieves one label.
func (s *Service) Get(ctx context.Context, id int64) (*domain.StatusRecord, error) {
	return s.statuses.FindByID(ctx, id)
}

// List returns all labels in display order.
func (s *Service) List(ctx context.Context) ([]domain.StatusRecord, error) {
	return s.statuses.List(ctx)
}

// GetDefault returns the current default label.
func (s *Service) GetDefault(ctx context.Context) (*domain.StatusRecord, error) {
	return s.statuses.GetDefault(ctx)
}

// Update applies the present fields of the request. Demoting the only default
// is rejected; the default moves only by promoting another label or deleting
// this one.
func (s *Service) Update(ctx context.Context, id int64, req *domain.UpdateStatusRequest) (*domain.StatusRecord, error) {
	rec, err := s.statuses.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		if *req.Name == "" {
			return nil, fmt.Errorf("%w: status name cannot be empty", xerrors.ErrInvalidInput)
		}
		rec.Name = *req.Name
	}
	if req.Color != nil {
		rec.Color = *req.Color
	}
	if req.Order != nil {
		rec.Order = *req.Order
	}
	if req.IsDefault != nil {
		if rec.IsDefault && !*req.IsDefault {
			return nil, fmt.Errorf("%w: cannot unset the default status, promote another one instead", xerrors.ErrInvalidInput)
		}
		rec.IsDefault = *req.IsDefault
	}

	if err := s.statuses.Update(ctx, rec); err != nil {
		s.logger.Error("failed to update status", zap.Error(err), zap.Int64("status_id", id))
		return nil, err
	}

	s.logger.Info("status updated", zap.Int64("status_id", rec.ID))

	return rec, nil
}

// Delete removes a label. The store promotes a fallback default when the
// deleted label was the default.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.statuses.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("status deleted", zap.Int64("status_id", id))
	return nil
}
