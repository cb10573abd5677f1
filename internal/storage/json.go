package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"dtp/internal/domain"
)

// Save writes a report of discovered files to the configured JSON output file.
// Files whose discovery failed are listed separately.
func (s *JSONStorage) Save(results []domain.FileDiscovery, duration time.Duration, workers int) error {
	report := &domain.DiscoveryReport{
		Timestamp:  time.Now().Format(time.RFC3339),
		Duration:   duration.String(),
		Workers:    workers,
		TotalFiles: len(results),
		Files:      make(domain.DiscoveryOutput),
	}
	for _, r := range results {
		if r.Result.Status == domain.StatusFailed {
			report.Failed = append(report.Failed, r.Path)
			continue
		}
		if len(r.Result.Tests) == 0 {
			continue
		}
		report.Files[r.Path] = r.Result.Tests
		report.TotalTests += len(r.Result.Tests)
	}
	return s.SaveReport(report)
}

// Load reads the last report from the configured JSON output file.
func (s *JSONStorage) Load() (*domain.DiscoveryReport, error) {
	path := s.cfg.GetOutputPath()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report file: %w", err)
	}
	var report domain.DiscoveryReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("parse report: %w", err)
	}
	return &report, nil
}

// SaveReport writes the full report to the configured JSON file.
func (s *JSONStorage) SaveReport(report *domain.DiscoveryReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	path := s.cfg.GetOutputPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
