package infra

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/eliteGoblin/focusd/totalctl/internal/domain"
)

// ProgressCacheFileName is the default fitness cache inside the data directory.
const ProgressCacheFileName = "fitness_cache.json"

type progressCacheRecord struct {
	Date        string           `json:"date"`
	Steps       int              `json:"steps"`
	WorkoutMins int              `json:"workout_mins"`
	Location    *domain.Location `json:"location,omitempty"`
	LastSync    string           `json:"last_sync,omitempty"`
}

// ProgressCacheFile implements domain.ProgressCache as a small JSON file.
type ProgressCacheFile struct {
	path string
}

// NewProgressCacheFile creates a cache at path.
func NewProgressCacheFile(path string) *ProgressCacheFile {
	return &ProgressCacheFile{path: path}
}

// Load returns the cached record. A missing file is a zero record.
func (c *ProgressCacheFile) Load() (domain.ProgressRecord, error) {
	data, err := os.ReadFile(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.ProgressRecord{}, nil
	}
	if err != nil {
		return domain.ProgressRecord{}, err
	}

	var rec progressCacheRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return domain.ProgressRecord{}, err
	}

	out := domain.ProgressRecord{
		Day:            rec.Date,
		Steps:          rec.Steps,
		WorkoutMinutes: rec.WorkoutMins,
		Location:       rec.Location,
	}
	if rec.LastSync != "" {
		out.LastSync, _ = time.Parse(time.RFC3339, rec.LastSync)
	}
	return out, nil
}

// Save replaces the cache.
func (c *ProgressCacheFile) Save(r domain.ProgressRecord) error {
	rec := progressCacheRecord{
		Date:        r.Day,
		Steps:       r.Steps,
		WorkoutMins: r.WorkoutMinutes,
		Location:    r.Location,
	}
	if !r.LastSync.IsZero() {
		rec.LastSync = r.LastSync.Format(time.RFC3339)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return atomicWriteFile(c.path, data, 0600)
}

var _ domain.ProgressCache = (*ProgressCacheFile)(nil)
