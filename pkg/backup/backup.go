package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"drawza/internal/core/domain"
)

// Snapshot is one point-in-time export of every persisted board.
type Snapshot struct {
	Version   string          `json:"version"`
	Timestamp time.Time       `json:"timestamp"`
	Boards    []*domain.Board `json:"boards"`
}

// Storage abstracts where snapshot files land.
type Storage interface {
	Save(ctx context.Context, name string, data io.Reader) error
	Load(ctx context.Context, name string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, name string) error
}

const namePrefix = "boards-"

// Service writes and reads board snapshots.
type Service struct {
	storage Storage
	version string
}

func NewService(storage Storage, version string) *Service {
	return &Service{storage: storage, version: version}
}

// Create writes a snapshot of the given boards and returns its name.
func (s *Service) Create(ctx context.Context, boards []*domain.Board) (string, error) {
	snap := Snapshot{
		Version:   s.version,
		Timestamp: time.Now().UTC(),
		Boards:    boards,
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}

	name := fmt.Sprintf("%s%s.json", namePrefix, snap.Timestamp.Format("20060102-150405"))
	if err := s.storage.Save(ctx, name, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("save snapshot %s: %w", name, err)
	}
	return name, nil
}

// Read loads a snapshot by name.
func (s *Service) Read(ctx context.Context, name string) (*Snapshot, error) {
	reader, err := s.storage.Load(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", name, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", name, err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot %s: %w", name, err)
	}
	return &snap, nil
}

// List returns all snapshot names, lexically ordered oldest first thanks
// to the timestamp naming.
func (s *Service) List(ctx context.Context) ([]string, error) {
	return s.storage.List(ctx, namePrefix)
}

// Delete removes a snapshot.
func (s *Service) Delete(ctx context.Context, name string) error {
	return s.storage.Delete(ctx, name)
}
