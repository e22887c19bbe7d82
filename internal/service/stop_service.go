package service

import (
	"errors"
	"sort"

	"github.com/combiapp/combiapp/internal/domain"
	"github.com/combiapp/combiapp/internal/storage"
)

// StopService maintains the per-leg stop tables the admin panel edits and
// the schedule picker reads.
type StopService struct {
	storage *storage.Storage
}

func NewStopService(s *storage.Storage) *StopService {
	return &StopService{storage: s}
}

func (s *StopService) List(leg domain.Leg) ([]domain.Stop, error) {
	return s.storage.GetStops(leg)
}

// Replace swaps one leg's stop table, ordered by scheduled time.
func (s *StopService) Replace(leg domain.Leg, stops []domain.Stop) error {
	for _, st := range stops {
		if st.Name == "" {
			return errors.New("stop name is required")
		}
	}

	sorted := make([]domain.Stop, len(stops))
	copy(sorted, stops)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time < sorted[j].Time
	})

	return s.storage.ReplaceStops(leg, sorted)
}
