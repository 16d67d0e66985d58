package sim

import (
	"time"

	"github.com/aweeri/TLEscope/internal/metrics"
)

// datasetChanged checks if the TLE dataset has been updated since the
// roster was last built.
func (r *Runner) datasetChanged() bool {
	if r.store == nil {
		return false
	}
	ds := r.store.Get()
	if ds == nil {
		return false
	}
	return !ds.FetchedAt.Equal(r.currentFetchedAt)
}

// performCutover rebuilds the roster from the new dataset. Selection and
// hover follow satellites by name; every orbit ring starts over.
func (r *Runner) performCutover() {
	ds := r.store.Get()
	if ds == nil {
		return
	}

	r.logger.Info("TLE cutover starting",
		"old_dataset_fetched_at", r.currentFetchedAt.UTC().Format(time.RFC3339),
		"new_dataset_fetched_at", ds.FetchedAt.UTC().Format(time.RFC3339),
		"satellites", len(ds.Satellites),
	)

	start := time.Now()
	added := r.sim.Replace(ds.Satellites)
	r.currentFetchedAt = ds.FetchedAt
	metrics.IncSimCutovers()

	r.logger.Info("TLE cutover complete",
		"duration_ms", time.Since(start).Milliseconds(),
		"satellites", added,
		"dropped", len(ds.Satellites)-added,
	)
}
