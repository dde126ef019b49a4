package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/EternisAI/zone-orchestrator/internal/zonepartner"
)

// FileStore keeps each record at <root>/<partner_id>/status/status_<partner_id>.json.
// Writes for the same tenant are serialised in-process.
type FileStore struct {
	root  string
	locks sync.Map
	now   func() time.Time
}

func NewFileStore(root string) *FileStore {
	return &FileStore{
		root: root,
		now:  time.Now,
	}
}

func (s *FileStore) path(partnerID string) string {
	return filepath.Join(s.root, partnerID, "status", fmt.Sprintf("status_%s.json", partnerID))
}

func (s *FileStore) lock(partnerID string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(partnerID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func (s *FileStore) Update(ctx context.Context, partnerID, field, value string) error {
	id, err := zonepartner.ParsePartnerID(partnerID)
	if err != nil {
		return err
	}

	mu := s.lock(id)
	mu.Lock()
	defer mu.Unlock()

	record, err := s.read(id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		slog.Error("Failed to load status", "partner_id", id, "error", err)
		return err
	}
	if record.Fields == nil {
		record.Fields = make(map[string]string)
	}

	record.Fields[field] = value
	record.LastUpdated = stamp(s.now(), record.LastUpdated)

	data, err := json.MarshalIndent(record, "", "    ")
	if err != nil {
		return fmt.Errorf("encode status: %w", err)
	}
	if err := zonepartner.WriteFileAtomic(s.path(id), data); err != nil {
		slog.Error("Failed to update status", "partner_id", id, "field", field, "error", err)
		return fmt.Errorf("write status for %s: %w", id, err)
	}

	slog.Info("Status updated", "partner_id", id, "field", field, "value", value)
	return nil
}

func (s *FileStore) Get(ctx context.Context, partnerID string) (Record, error) {
	id, err := zonepartner.ParsePartnerID(partnerID)
	if err != nil {
		return Record{}, ErrNotFound
	}
	return s.read(id)
}

func (s *FileStore) read(partnerID string) (Record, error) {
	data, err := os.ReadFile(s.path(partnerID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("read status for %s: %w", partnerID, err)
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return Record{}, fmt.Errorf("decode status for %s: %w", partnerID, err)
	}
	return record, nil
}
