package store

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"cmc_performance/models"
	"cmc_performance/parser"
	"cmc_performance/utils"
)

const (
	UniverseFile    = "coin_universe.csv"
	AverageFile     = "average_performance.csv"
	IndexFile       = "runs.jsonl"
	PricingPrefix   = "pricing_data_"
	HistoryPrefix   = "currency_performance_data_"
	SuffixLayout    = "20060102_150405"
	legacyRunID     = "legacy"
	fileExtension   = ".csv"
	defaultFileMode = 0644
)

// ErrNotFound is returned when a required file or index entry is missing.
var ErrNotFound = errors.New("not found")

// ErrNoSnapshot is returned by LatestPricing when no snapshot was ever recorded.
var ErrNoSnapshot = fmt.Errorf("pricing snapshot: %w", ErrNotFound)

// Store is the flat-file data directory shared by all stages.
type Store struct {
	dir   string
	index *Index
}

// Open prepares dir and rebuilds the run index from existing file names
// the first time a directory without one is used.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	s := &Store{dir: dir, index: NewIndex(filepath.Join(dir, IndexFile))}

	exists, err := s.index.Exists()
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := s.rebuildIndex(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) Dir() string { return s.dir }

func (s *Store) Index() *Index { return s.index }

func (s *Store) path(name string) string { return filepath.Join(s.dir, name) }

// PricingFileName is the snapshot name for ts, e.g. pricing_data_20240501_120000.csv.
func PricingFileName(ts time.Time) string {
	return PricingPrefix + ts.Format(SuffixLayout) + fileExtension
}

// HistoryFileName is the performance file name for ts.
func HistoryFileName(ts time.Time) string {
	return HistoryPrefix + ts.Format(SuffixLayout) + fileExtension
}

// WriteUniverse replaces coin_universe.csv.
func (s *Store) WriteUniverse(coins []models.CoinRecord) error {
	return s.replace(UniverseFile, func(w io.Writer) error {
		return parser.WriteCoins(w, coins)
	})
}

// ReadUniverse reads coin_universe.csv.
func (s *Store) ReadUniverse() ([]models.CoinRecord, error) {
	var coins []models.CoinRecord
	err := s.read(UniverseFile, func(r io.Reader) (err error) {
		coins, err = parser.ReadCoins(r)
		return err
	})
	return coins, err
}

// AppendPricing writes a new pricing snapshot and records it in the index.
func (s *Store) AppendPricing(runID string, ts time.Time, records []models.PricingRecord) (string, error) {
	name := PricingFileName(ts)
	if err := s.create(name, func(w io.Writer) error {
		return parser.WritePricing(w, records)
	}); err != nil {
		return "", err
	}
	if err := s.index.Append(Entry{RunID: runID, Kind: KindPricing, File: name, Timestamp: ts}); err != nil {
		return "", err
	}
	return name, nil
}

// LatestPricing reads the snapshot most recently recorded in the index.
func (s *Store) LatestPricing() ([]models.PricingRecord, Entry, error) {
	entry, ok, err := s.index.Latest(KindPricing)
	if err != nil {
		return nil, Entry{}, err
	}
	if !ok {
		return nil, Entry{}, ErrNoSnapshot
	}

	var records []models.PricingRecord
	err = s.read(entry.File, func(r io.Reader) (err error) {
		records, err = parser.ReadPricing(r)
		return err
	})
	return records, entry, err
}

// AppendPerformance writes a new performance history file and records it.
func (s *Store) AppendPerformance(runID string, ts time.Time, records []models.PerformanceRecord) (string, error) {
	name := HistoryFileName(ts)
	if err := s.create(name, func(w io.Writer) error {
		return parser.WritePerformance(w, records)
	}); err != nil {
		return "", err
	}
	if err := s.index.Append(Entry{RunID: runID, Kind: KindPerformance, File: name, Timestamp: ts}); err != nil {
		return "", err
	}
	return name, nil
}

// PerformanceHistory lists every recorded performance file.
func (s *Store) PerformanceHistory() ([]Entry, error) {
	return s.index.All(KindPerformance)
}

// ReadPerformance reads one performance history file.
func (s *Store) ReadPerformance(name string) ([]models.PerformanceRecord, error) {
	var records []models.PerformanceRecord
	err := s.read(name, func(r io.Reader) (err error) {
		records, err = parser.ReadPerformance(r)
		return err
	})
	return records, err
}

// WriteAverages replaces average_performance.csv.
func (s *Store) WriteAverages(records []models.AveragePerformance) error {
	return s.replace(AverageFile, func(w io.Writer) error {
		return parser.WriteAverages(w, records)
	})
}

// ReadAverages reads average_performance.csv.
func (s *Store) ReadAverages() ([]models.AveragePerformance, error) {
	var records []models.AveragePerformance
	err := s.read(AverageFile, func(r io.Reader) (err error) {
		records, err = parser.ReadAverages(r)
		return err
	})
	return records, err
}

// ReadTracked reads the externally maintained tracked coins file.
func ReadTracked(path string) (models.TrackedSet, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("tracked coins file %s: %w", path, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to open tracked coins file: %w", err)
	}
	defer f.Close()

	tracked, err := parser.ReadTracked(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tracked, nil
}

func (s *Store) read(name string, decode func(io.Reader) error) error {
	f, err := os.Open(s.path(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s: %w", name, ErrNotFound)
		}
		return fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer f.Close()

	if err := decode(f); err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	return nil
}

// create writes a file that must not exist yet; history is never overwritten.
func (s *Store) create(name string, encode func(io.Writer) error) error {
	path := s.path(name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, defaultFileMode)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	if err := encode(f); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("failed to close %s: %w", name, err)
	}
	return nil
}

// replace writes through a temp file and renames it over name.
func (s *Store) replace(name string, encode func(io.Writer) error) error {
	tmp, err := os.CreateTemp(s.dir, "."+name+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", name, err)
	}
	defer os.Remove(tmp.Name())

	if err := encode(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", name, err)
	}
	if err := os.Chmod(tmp.Name(), defaultFileMode); err != nil {
		return fmt.Errorf("failed to chmod %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), s.path(name)); err != nil {
		return fmt.Errorf("failed to replace %s: %w", name, err)
	}
	return nil
}

// rebuildIndex seeds the index from files named by the timestamp convention.
func (s *Store) rebuildIndex() error {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("failed to read data dir: %w", err)
	}

	var names []string
	for _, de := range dirEntries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), fileExtension) {
			continue
		}
		if strings.HasPrefix(de.Name(), PricingPrefix) || strings.HasPrefix(de.Name(), HistoryPrefix) {
			names = append(names, de.Name())
		}
	}
	if len(names) == 0 {
		return nil
	}
	sort.Strings(names)

	entries := make([]Entry, 0, len(names))
	for _, name := range names {
		kind, prefix := KindPricing, PricingPrefix
		if strings.HasPrefix(name, HistoryPrefix) {
			kind, prefix = KindPerformance, HistoryPrefix
		}
		suffix := strings.TrimSuffix(strings.TrimPrefix(name, prefix), fileExtension)
		ts, err := time.ParseInLocation(SuffixLayout, suffix, time.Local)
		if err != nil {
			utils.Logger.Warnw("Skipping file with unexpected name", "file", name)
			continue
		}
		entries = append(entries, Entry{RunID: legacyRunID, Kind: kind, File: name, Timestamp: ts})
	}

	utils.Logger.Infow("Rebuilt run index from data directory",
		"index", s.index.Path(),
		"entries", len(entries))
	return s.index.Append(entries...)
}
