package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/realjkeee/zenbot/internal/contracts"
	"github.com/realjkeee/zenbot/internal/genome"
)

// ErrMalformedCheckpoint is returned for checkpoints that cannot seed a run
var ErrMalformedCheckpoint = errors.New("malformed checkpoint")

// CheckpointFile writes generation_data_<unix>_gen_<n>.json after every generation
type CheckpointFile struct {
	dir string
}

// NewCheckpointFile creates a checkpoint store writing into dir
func NewCheckpointFile(dir string) *CheckpointFile {
	return &CheckpointFile{dir: dir}
}

// Name implements contracts.CheckpointStore
func (c *CheckpointFile) Name() string {
	return "checkpoint_file"
}

// Path returns the file a snapshot is written to
func (c *CheckpointFile) Path(s *contracts.Snapshot) string {
	return filepath.Join(c.dir, fmt.Sprintf("generation_data_%d_gen_%d.json", s.SavedAt.Unix(), s.Generation))
}

// SaveCheckpoint implements contracts.CheckpointStore
func (c *CheckpointFile) SaveCheckpoint(_ context.Context, s *contracts.Snapshot) error {
	data, err := MarshalCheckpoint(s)
	if err != nil {
		return err
	}
	if err := writeFileAtomic(c.Path(s), data); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	return nil
}

// MarshalCheckpoint encodes the {strategy: [{gene: value}]} document
func MarshalCheckpoint(s *contracts.Snapshot) ([]byte, error) {
	data, err := json.MarshalIndent(s.Populations, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode checkpoint: %w", err)
	}
	return append(data, '\n'), nil
}

// Checkpoint is a decoded checkpoint, validated against a registry
type Checkpoint struct {
	Populations map[string][]*genome.Phenotype
	Ignored     []string // strategies present in the file but not selected
}

// Members returns the restored members of one strategy (nil if absent)
func (c *Checkpoint) Members(strategy string) []*genome.Phenotype {
	if c == nil {
		return nil
	}
	return c.Populations[strategy]
}

// LoadCheckpoint reads and validates a checkpoint file
func LoadCheckpoint(path string, strategies []*genome.Strategy) (*Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}
	cp, err := ParseCheckpoint(data, strategies)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cp, nil
}

// ParseCheckpoint decodes a checkpoint document. Strategies not in the list are ignored,
// extra keys on a member (e.g. a stored sim result) are dropped. A member missing a gene
// or holding a value outside the gene's domain fails the whole checkpoint.
// ⭐ SSOT: 체크포인트 복원 검증은 여기서만
func ParseCheckpoint(data []byte, strategies []*genome.Strategy) (*Checkpoint, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string][]contracts.GeneSet
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedCheckpoint, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data", ErrMalformedCheckpoint)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: not an object", ErrMalformedCheckpoint)
	}

	byName := make(map[string]*genome.Strategy, len(strategies))
	for _, s := range strategies {
		byName[s.Name] = s
	}

	cp := &Checkpoint{Populations: make(map[string][]*genome.Phenotype)}
	for name, members := range raw {
		s, ok := byName[name]
		if !ok {
			cp.Ignored = append(cp.Ignored, name)
			continue
		}

		restored := make([]*genome.Phenotype, 0, len(members))
		for i, gs := range members {
			if gs == nil {
				return nil, fmt.Errorf("%w: %s member %d is not an object", ErrMalformedCheckpoint, name, i)
			}
			p, err := genome.FromGeneSet(s.Schema, gs)
			if err != nil {
				return nil, fmt.Errorf("%w: %s member %d: %w", ErrMalformedCheckpoint, name, i, err)
			}
			restored = append(restored, p)
		}
		cp.Populations[name] = restored
	}
	sort.Strings(cp.Ignored)

	return cp, nil
}

// writeFileAtomic writes through a temp file in the same directory and renames it into place
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

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
	return os.Rename(tmpName, path)
}
