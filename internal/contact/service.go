package contact

import (
	"context"
	"fmt"
)

// ModeInfo is a supported mode with its display name.
type ModeInfo struct {
	Mode string `json:"mode"`
	Name string `json:"name"`
}

// Service lists the contact modes this deployment supports.
type Service struct {
	repo      Repository
	supported map[string]struct{}
}

// NewService builds a mode service. An empty supported list allows every mode
// stored in the database.
func NewService(repo Repository, supported []string) *Service {
	var set map[string]struct{}
	if len(supported) > 0 {
		set = make(map[string]struct{}, len(supported))
		for _, m := range supported {
			set[m] = struct{}{}
		}
	}
	return &Service{repo: repo, supported: set}
}

// IsSupported reports whether the mode is enabled by configuration.
func (s *Service) IsSupported(mode string) bool {
	if s.supported == nil {
		return true
	}
	_, ok := s.supported[mode]
	return ok
}

// Supported returns the stored modes filtered by configuration.
func (s *Service) Supported(ctx context.Context) ([]ModeInfo, error) {
	names, err := s.repo.ModeNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("list contact modes: %w", err)
	}
	out := make([]ModeInfo, 0, len(names))
	for _, name := range names {
		if !s.IsSupported(name) {
			continue
		}
		out = append(out, ModeInfo{Mode: name, Name: DisplayName(name)})
	}
	return out, nil
}
