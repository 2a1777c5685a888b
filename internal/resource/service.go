package resource

import (
	"context"
)

type Service interface {
	GetByID(ctx context.Context, id string) (*Resource, error)
	List(ctx context.Context, filter Filter) ([]*Resource, int, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

// GetByID returns the court with its operating window normalised: rows that
// carry an impossible window fall back to the federation default 06:00-22:00.
func (s *service) GetByID(ctx context.Context, id string) (*Resource, error) {
	res, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	normalizeHours(res)
	return res, nil
}

func (s *service) List(ctx context.Context, filter Filter) ([]*Resource, int, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	for _, res := range items {
		normalizeHours(res)
	}
	return items, total, nil
}

func normalizeHours(res *Resource) {
	if res.OpenHour < 0 || res.CloseHour > 24 || res.OpenHour >= res.CloseHour {
		res.OpenHour = DefaultOpenHour
		res.CloseHour = DefaultCloseHour
	}
}
