package memory

import (
	"context"
	"sort"
	"sync"

	"verbrauch/internal/core"
	"verbrauch/internal/store"
)

// Store is an in-memory implementation of both persistence ports. Contents
// live for the process lifetime only.
type Store struct {
	mu      sync.Mutex
	configs map[string]core.SourceConfig
	reports map[string]core.MonthlyReport
}

var (
	_ store.ConfigStore = (*Store)(nil)
	_ store.ReportStore = (*Store)(nil)
)

func New() *Store {
	return &Store{
		configs: make(map[string]core.SourceConfig),
		reports: make(map[string]core.MonthlyReport),
	}
}

func (s *Store) List(_ context.Context) ([]core.SourceConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.SourceConfig, 0, len(s.configs))
	for _, cfg := range s.configs {
		out = append(out, cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) Get(_ context.Context, id string) (core.SourceConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.configs[id]
	if !ok {
		return core.SourceConfig{}, core.ErrConfigNotFound
	}
	return cfg, nil
}

func (s *Store) Save(_ context.Context, cfg core.SourceConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs[cfg.ID] = cfg
	return nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.configs[id]; !ok {
		return core.ErrConfigNotFound
	}
	delete(s.configs, id)
	return nil
}

func (s *Store) ListEnabled(ctx context.Context) ([]core.SourceConfig, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]core.SourceConfig, 0, len(all))
	for _, cfg := range all {
		if cfg.Enabled {
			out = append(out, cfg)
		}
	}
	return out, nil
}

func (s *Store) SaveReport(_ context.Context, r core.MonthlyReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[r.ID] = r
	return nil
}

func (s *Store) GetReport(_ context.Context, id string) (core.MonthlyReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[id]
	if !ok {
		return core.MonthlyReport{}, core.ErrReportNotFound
	}
	return r, nil
}

func (s *Store) ListReports(_ context.Context) ([]core.MonthlyReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.MonthlyReport, 0, len(s.reports))
	for _, r := range s.reports {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year > out[j].Year
		}
		return out[i].Month > out[j].Month
	})
	return out, nil
}

func (s *Store) DeleteReport(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reports[id]; !ok {
		return core.ErrReportNotFound
	}
	delete(s.reports, id)
	return nil
}
