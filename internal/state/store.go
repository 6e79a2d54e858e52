package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zpdzap/drydock/internal/config"
)

// Snapshot is the on-disk form of a cache, written after each CLI operation
// so `status --cached` and the dashboard can show something without docker.
type Snapshot struct {
	SavedAt time.Time                  `json:"saved_at"`
	States  map[string]DeploymentState `json:"states"`
}

func snapshotPath(projectDir string) string {
	return filepath.Join(projectDir, config.Dir, config.StateFile)
}

// LoadSnapshot reads the snapshot file. A missing file yields an empty snapshot.
func LoadSnapshot(projectDir string) (*Snapshot, error) {
	data, err := os.ReadFile(snapshotPath(projectDir))
	if err != nil {
		if os.IsNotExist(err) {
			return &Snapshot{States: make(map[string]DeploymentState)}, nil
		}
		return nil, fmt.Errorf("reading state: %w", err)
	}

	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing state: %w", err)
	}
	if s.States == nil {
		s.States = make(map[string]DeploymentState)
	}
	return &s, nil
}

// SaveSnapshot writes every state held by c. The file is replaced by rename
// so a crash mid-write leaves the previous snapshot intact.
func SaveSnapshot(projectDir string, c *Cache) error {
	dir := filepath.Join(projectDir, config.Dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating state dir: %w", err)
	}
	data, err := json.MarshalIndent(Snapshot{SavedAt: time.Now().UTC(), States: c.All()}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling state: %w", err)
	}

	tmp, err := os.CreateTemp(dir, config.StateFile+".*")
	if err != nil {
		return fmt.Errorf("writing state: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing state: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing state: %w", err)
	}
	if err := os.Rename(tmp.Name(), snapshotPath(projectDir)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing state: %w", err)
	}
	return nil
}

// Restore copies the snapshots for ids into c. Ids missing from the
// snapshot are skipped.
func (s *Snapshot) Restore(c *Cache, ids []string) {
	for _, id := range ids {
		if st, ok := s.States[id]; ok {
			c.Set(st)
		}
	}
}
