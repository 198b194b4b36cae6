package service

import (
	"context"

	"github.com/aidar/team-requests-service/internal/domain"
	"github.com/aidar/team-requests-service/internal/repository"
)

// Stats represents request counters of one campus
type Stats struct {
	CampusCode string                                              `json:"campus_code"`
	Total      int                                                 `json:"total"`
	ByStatus   map[domain.RequestStatus]int                        `json:"by_status"`
	ByType     map[domain.RequestType]int                          `json:"by_type"`
	Matrix     map[domain.RequestType]map[domain.RequestStatus]int `json:"by_type_and_status"`
}

// StatsService handles statistics queries
type StatsService struct {
	statsRepo repository.StatsRepository
}

// NewStatsService creates a new StatsService
func NewStatsService(statsRepo repository.StatsRepository) *StatsService {
	return &StatsService{statsRepo: statsRepo}
}

// GetStats returns counters for the caller's campus.
// Every known status and type is present, zero when absent.
func (s *StatsService) GetStats(ctx context.Context, identity domain.Identity, campusCode string) (*Stats, error) {
	if !identity.InScope(campusCode) {
		return nil, domain.ErrCampusNotFound
	}

	counts, err := s.statsRepo.CountByStatusAndType(ctx, campusCode)
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		CampusCode: campusCode,
		ByStatus:   map[domain.RequestStatus]int{},
		ByType:     map[domain.RequestType]int{},
		Matrix:     map[domain.RequestType]map[domain.RequestStatus]int{},
	}
	for _, st := range []domain.RequestStatus{domain.StatusPending, domain.StatusApproved, domain.StatusRejected} {
		stats.ByStatus[st] = 0
	}
	for _, rt := range domain.AllRequestTypes() {
		stats.ByType[rt] = 0
		stats.Matrix[rt] = map[domain.RequestStatus]int{}
	}

	for _, c := range counts {
		stats.Total += c.Count
		stats.ByStatus[c.Status] += c.Count
		stats.ByType[c.RequestType] += c.Count
		if stats.Matrix[c.RequestType] == nil {
			stats.Matrix[c.RequestType] = map[domain.RequestStatus]int{}
		}
		stats.Matrix[c.RequestType][c.Status] += c.Count
	}

	return stats, nil
}
