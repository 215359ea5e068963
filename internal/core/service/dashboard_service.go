package service

import (
	"context"
	"fmt"

	"github.com/structo/structo-api/internal/core/domain"
	"github.com/structo/structo-api/internal/core/ports"
)

type dashboardService struct {
	repo ports.AccountRepository
}

// NewDashboardService returns a DashboardService backed by repo.
func NewDashboardService(repo ports.AccountRepository) ports.DashboardService {
	return &dashboardService{repo: repo}
}

func (s *dashboardService) Stats(ctx context.Context) (*domain.AccountStats, error) {
	stats, err := s.repo.CountStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("dashboard stats: %w", err)
	}
	return stats, nil
}
