package jobs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/realjkeee/zenbot/pkg/logger"
)

// ArtifactPatterns are the files a search leaves in its output directory
var ArtifactPatterns = []string{"backtesting_*.csv", "generation_data_*_gen_*.json"}

// ArtifactCleanupJob removes result and checkpoint files older than the retention.
// The newest file of every pattern is always kept so a run can resume.
type ArtifactCleanupJob struct {
	dir       string
	retention time.Duration
	now       func() time.Time
	logger    *logger.Logger
}

// NewArtifactCleanupJob creates a cleanup job for dir
func NewArtifactCleanupJob(dir string, retention time.Duration, log *logger.Logger) *ArtifactCleanupJob {
	return &ArtifactCleanupJob{
		dir:       dir,
		retention: retention,
		now:       time.Now,
		logger:    log,
	}
}

// Name returns the job name
func (j *ArtifactCleanupJob) Name() string {
	return "artifact_cleanup"
}

// Schedule returns the cron schedule (every 15 minutes)
func (j *ArtifactCleanupJob) Schedule() string {
	return "0 */15 * * * *"
}

// Run deletes expired artifacts
func (j *ArtifactCleanupJob) Run(ctx context.Context) error {
	if j.retention <= 0 {
		return nil
	}

	cutoff := j.now().Add(-j.retention)
	removed := 0

	for _, pattern := range ArtifactPatterns {
		files, err := newestFirst(filepath.Join(j.dir, pattern))
		if err != nil {
			return err
		}

		for i, f := range files {
			if err := ctx.Err(); err != nil {
				return err
			}
			if i == 0 || f.modTime.After(cutoff) {
				continue
			}
			if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("remove %s: %w", f.path, err)
			}
			removed++
		}
	}

	if removed > 0 {
		j.logger.WithFields(map[string]interface{}{
			"removed":   removed,
			"retention": j.retention.String(),
		}).Info("Artifact cleanup completed")
	}
	return nil
}

type artifact struct {
	path    string
	modTime time.Time
}

func newestFirst(pattern string) ([]artifact, error) {
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", pattern, err)
	}

	files := make([]artifact, 0, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		files = append(files, artifact{path: p, modTime: info.ModTime()})
	}
	sort.Slice(files, func(i, k int) bool {
		return files[i].modTime.After(files[k].modTime)
	})
	return files, nil
}
