package capture

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/banshee-data/surface.capture/internal/config"
	"github.com/banshee-data/surface.capture/internal/fsutil"
	"github.com/banshee-data/surface.capture/internal/geom"
	"github.com/banshee-data/surface.capture/internal/monitoring"
	"github.com/banshee-data/surface.capture/internal/sensor"
	"github.com/banshee-data/surface.capture/internal/storage/sqlite"
	"github.com/banshee-data/surface.capture/internal/timeutil"
)

// ErrStorageExceeded is returned by Persist when the session exceeds its
// storage ceiling and the configured policy is to halt rather than evict.
var ErrStorageExceeded = errors.New("capture: storage ceiling exceeded")

// imagesSubdir holds the sample images and sidecars under the session dir.
const imagesSubdir = "images"

// evictBatch bounds how many rows one eviction query pulls; the loop repeats
// until the total is back under the ceiling.
const evictBatch = 32

// SampleMeta is the JSON sidecar written next to each sample image.
type SampleMeta struct {
	Idx              int64     `json:"idx"`
	Pose             geom.Pose `json:"pose"`
	Confidence       float64   `json:"confidence"`
	AmbientLightLux  float64   `json:"ambient_light_lux"`
	FeatureCount     int       `json:"feature_count"`
	Tracking         string    `json:"tracking"`
	CapturedUnixNano int64     `json:"captured_unix_nano"`
}

// Store persists admitted samples into the session directory and keeps the
// sqlite index in step. Every accepted sample writes the image bytes and a
// pose/confidence sidecar; every GetBudgetCheckEvery()-th acceptance runs the
// storage-budget pass.
type Store struct {
	mu    sync.Mutex
	cfg   *config.TuningConfig
	clock timeutil.Clock
	fs    fsutil.FileSystem
	db    *sqlite.SampleDB
	dir   string

	nextIdx    int64
	sinceCheck int
	halted     bool
}

// NewStore creates a sample store rooted at dir, creating the images
// subdirectory.
func NewStore(cfg *config.TuningConfig, clock timeutil.Clock, fs fsutil.FileSystem, db *sqlite.SampleDB, dir string) (*Store, error) {
	if err := fs.MkdirAll(filepath.Join(dir, imagesSubdir), 0755); err != nil {
		return nil, fmt.Errorf("create sample dir: %w", err)
	}
	return &Store{cfg: cfg, clock: clock, fs: fs, db: db, dir: dir}, nil
}

// Dir returns the session directory the store writes into.
func (s *Store) Dir() string { return s.dir }

// Persist writes one admitted frame as a sample. The returned row describes
// what was indexed. Once the halt policy has tripped, every further call
// fails with ErrStorageExceeded without writing anything.
func (s *Store) Persist(ev sensor.FrameEvent, confidence float64) (sqlite.SampleRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.halted {
		return sqlite.SampleRow{}, ErrStorageExceeded
	}

	idx := s.nextIdx
	imagePath := filepath.Join(s.dir, imagesSubdir, fmt.Sprintf("sample_%06d.jpg", idx))
	metaPath := filepath.Join(s.dir, imagesSubdir, fmt.Sprintf("sample_%06d.json", idx))

	now := s.clock.Now()
	meta := SampleMeta{
		Idx:              idx,
		Pose:             ev.Pose,
		Confidence:       confidence,
		AmbientLightLux:  ev.AmbientLight,
		FeatureCount:     ev.FeatureCount,
		Tracking:         ev.Tracking.String(),
		CapturedUnixNano: now.UnixNano(),
	}
	metaBytes, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return sqlite.SampleRow{}, fmt.Errorf("encode sample %d sidecar: %w", idx, err)
	}

	if err := s.fs.WriteFile(imagePath, ev.Image, 0644); err != nil {
		return sqlite.SampleRow{}, fmt.Errorf("write sample %d image: %w", idx, err)
	}
	if err := s.fs.WriteFile(metaPath, metaBytes, 0644); err != nil {
		// Don't leave a half-written sample on disk.
		s.fs.Remove(imagePath)
		return sqlite.SampleRow{}, fmt.Errorf("write sample %d sidecar: %w", idx, err)
	}

	row := sqlite.SampleRow{
		Idx:              idx,
		ImagePath:        imagePath,
		MetaPath:         metaPath,
		ByteSize:         int64(len(ev.Image)) + int64(len(metaBytes)),
		Confidence:       confidence,
		CreatedUnixNanos: now.UnixNano(),
	}
	if err := s.db.Insert(row); err != nil {
		s.fs.Remove(imagePath)
		s.fs.Remove(metaPath)
		return sqlite.SampleRow{}, err
	}

	s.nextIdx++
	s.sinceCheck++
	if s.sinceCheck >= s.cfg.GetBudgetCheckEvery() {
		s.sinceCheck = 0
		if err := s.enforceBudgetLocked(); err != nil {
			return row, err
		}
	}
	return row, nil
}

// enforceBudgetLocked runs the storage-budget pass. Under the evict policy it
// deletes oldest samples until the total is back under the ceiling; under the
// halt policy it marks the store halted and returns ErrStorageExceeded.
func (s *Store) enforceBudgetLocked() error {
	ceiling := s.cfg.GetStorageCeilingBytes()
	total, err := s.db.TotalBytes()
	if err != nil {
		return err
	}
	if total <= ceiling {
		return nil
	}

	if s.cfg.GetStoragePolicy() == config.StoragePolicyHalt {
		s.halted = true
		monitoring.Logf("capture: storage at %d bytes exceeds ceiling %d, halting", total, ceiling)
		return ErrStorageExceeded
	}

	evicted := 0
	for total > ceiling {
		rows, err := s.db.OldestFirst(evictBatch)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			break
		}
		for _, row := range rows {
			if total <= ceiling {
				break
			}
			if err := s.db.Delete(row.Idx); err != nil {
				return err
			}
			s.fs.Remove(row.ImagePath)
			s.fs.Remove(row.MetaPath)
			total -= row.ByteSize
			evicted++
		}
	}
	monitoring.Logf("capture: evicted %d oldest samples, storage now %d/%d bytes", evicted, total, ceiling)
	return nil
}

// TotalBytes returns the indexed storage footprint.
func (s *Store) TotalBytes() (int64, error) {
	return s.db.TotalBytes()
}

// SampleCount returns the number of indexed samples.
func (s *Store) SampleCount() (int64, error) {
	return s.db.Count()
}

// Samples lists the indexed samples in capture order.
func (s *Store) Samples() ([]sqlite.SampleRow, error) {
	return s.db.List()
}

// Halted reports whether the halt policy has tripped.
func (s *Store) Halted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.halted
}

// Clear drops every sample, on disk and in the index, and rewinds the sample
// counter. Called on session restart.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	imagesDir := filepath.Join(s.dir, imagesSubdir)
	if err := s.fs.RemoveAll(imagesDir); err != nil {
		return fmt.Errorf("clear sample dir: %w", err)
	}
	if err := s.fs.MkdirAll(imagesDir, 0755); err != nil {
		return fmt.Errorf("recreate sample dir: %w", err)
	}
	if err := s.db.Clear(); err != nil {
		return err
	}
	s.nextIdx = 0
	s.sinceCheck = 0
	s.halted = false
	return nil
}
