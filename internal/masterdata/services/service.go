package services

import (
	"context"
	"fmt"

	"github.com/fieldserve/fieldserve/internal/masterdata/shared"
	appshared "github.com/fieldserve/fieldserve/internal/shared"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]ServiceType, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (ServiceType, error) {
	if id <= 0 {
		return ServiceType{}, fmt.Errorf("%w: service id", appshared.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, st ServiceType) (ServiceType, error) {
	return s.repo.Create(ctx, st)
}

func (s *Service) Update(ctx context.Context, id int64, st ServiceType) error {
	if id <= 0 {
		return fmt.Errorf("%w: service id", appshared.ErrValidation)
	}
	return s.repo.Update(ctx, id, st)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: service id", appshared.ErrValidation)
	}
	return s.repo.Delete(ctx, id)
}
