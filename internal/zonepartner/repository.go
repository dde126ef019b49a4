package zonepartner

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

var (
	ErrNotFound         = errors.New("zone partner not found")
	ErrAlreadyExists    = errors.New("a different zone partner is already saved with this id")
	ErrInvalidPartnerID = errors.New("partner ID must be a valid UUID")
)

// Repository stores descriptors under <root>/<partner_id>/zone_partner_<partner_id>.json.
type Repository struct {
	root string
}

func NewRepository(root string) *Repository {
	return &Repository{root: root}
}

// ParsePartnerID normalises a tenant id and rejects anything that is not a UUID,
// which also keeps ids from escaping the state directory.
func ParsePartnerID(partnerID string) (string, error) {
	id, err := uuid.Parse(partnerID)
	if err != nil {
		return "", ErrInvalidPartnerID
	}
	return id.String(), nil
}

func (r *Repository) TenantDir(partnerID string) string {
	return filepath.Join(r.root, partnerID)
}

func (r *Repository) path(partnerID string) string {
	return filepath.Join(r.TenantDir(partnerID), fmt.Sprintf("zone_partner_%s.json", partnerID))
}

// Save persists a new descriptor. Descriptors are immutable: saving the same
// content again is a no-op, saving different content fails with ErrAlreadyExists.
func (r *Repository) Save(zp *ZonePartner) error {
	id, err := ParsePartnerID(zp.PartnerID)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(zp, "", "  ")
	if err != nil {
		return fmt.Errorf("encode zone partner: %w", err)
	}

	existing, err := r.read(id)
	switch {
	case err == nil:
		saved, err := json.MarshalIndent(existing, "", "  ")
		if err != nil {
			return fmt.Errorf("encode zone partner: %w", err)
		}
		if !bytes.Equal(saved, data) {
			slog.Warn("Refusing to replace saved zone partner", "partner_id", id)
			return fmt.Errorf("save zone partner %s: %w", id, ErrAlreadyExists)
		}
		slog.Info("Zone partner already saved", "partner_id", id)
		return nil
	case !errors.Is(err, ErrNotFound):
		return err
	}

	filename := r.path(id)
	if err := WriteFileAtomic(filename, data); err != nil {
		return fmt.Errorf("save zone partner %s: %w", id, err)
	}

	slog.Info("Zone partner saved", "partner_id", id, "file", filename)
	return nil
}

func (r *Repository) Load(partnerID string) (*ZonePartner, error) {
	id, err := ParsePartnerID(partnerID)
	if err != nil {
		return nil, err
	}

	zp, err := r.read(id)
	if errors.Is(err, ErrNotFound) {
		slog.Warn("No saved zone partner found", "partner_id", id)
	}
	return zp, err
}

func (r *Repository) read(id string) (*ZonePartner, error) {
	data, err := os.ReadFile(r.path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read zone partner %s: %w", id, err)
	}

	var zp ZonePartner
	if err := json.Unmarshal(data, &zp); err != nil {
		return nil, fmt.Errorf("decode zone partner %s: %w", id, err)
	}
	return &zp, nil
}

// WriteFileAtomic writes data to a temporary file next to filename and renames
// it into place so readers never observe a partial document.
func WriteFileAtomic(filename string, data []byte) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(filename)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filename)
}
