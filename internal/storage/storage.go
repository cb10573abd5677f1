package storage

import (
	"time"

	"dtp/internal/config"
	"dtp/internal/domain"
)

// Storage persists and loads discovery reports (e.g. for the list command).
type Storage interface {
	Save(results []domain.FileDiscovery, duration time.Duration, workers int) error
	Load() (*domain.DiscoveryReport, error)
	// SaveReport writes a complete report as is.
	SaveReport(report *domain.DiscoveryReport) error
}

// JSONStorage stores reports in a JSON file under the configured output path.
type JSONStorage struct {
	cfg *config.Config
}

// NewJSONStorage returns a Storage that reads/writes the config's output JSON path.
func NewJSONStorage(cfg *config.Config) *JSONStorage {
	return &JSONStorage{cfg: cfg}
}
