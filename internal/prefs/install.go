package prefs

import (
	"fmt"

	"github.com/google/uuid"
)

const keyInstallID = "installId"

// InstallID returns the identifier of this installation, creating a
// time-ordered UUID on first use. It scopes secret-store aliases so two
// data directories on one host never share a wrapping key.
func (s *Store) InstallID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		return "", err
	}
	if id := values[keyInstallID]; id != "" {
		return id, nil
	}

	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate install id: %w", err)
	}
	values[keyInstallID] = id.String()
	if err := s.save(values); err != nil {
		return "", err
	}
	return id.String(), nil
}
