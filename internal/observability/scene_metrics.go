package observability

import "time"

// Mount results.
const (
	MountReady     = "ready"
	MountFailed    = "failed"
	MountCancelled = "cancelled"
)

// ObserveTessellation records how long one layer took to build.
func (c *GlobeCollector) ObserveTessellation(kind, mode string, d time.Duration) {
	if c == nil || c.TessellationDuration == nil {
		return
	}
	c.TessellationDuration.WithLabelValues(kind, mode).Observe(d.Seconds())
}

// IncWorkerFallback counts a tessellation that ran inline.
func (c *GlobeCollector) IncWorkerFallback(kind string) {
	if c == nil || c.WorkerFallbacks == nil {
		return
	}
	c.WorkerFallbacks.WithLabelValues(kind).Inc()
}

// ObserveCacheLookup counts a layer cache hit or miss.
func (c *GlobeCollector) ObserveCacheLookup(hit bool) {
	if c == nil || c.CacheLookups == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	c.CacheLookups.WithLabelValues(result).Inc()
}

// ObserveMount counts a finished mount attempt.
func (c *GlobeCollector) ObserveMount(result string) {
	if c == nil || c.Mounts == nil {
		return
	}
	c.Mounts.WithLabelValues(result).Inc()
}

// SceneStarted increments the live scene gauge.
func (c *GlobeCollector) SceneStarted() {
	if c == nil || c.ActiveScenes == nil {
		return
	}
	c.ActiveScenes.Inc()
}

// SceneStopped decrements the live scene gauge.
func (c *GlobeCollector) SceneStopped() {
	if c == nil || c.ActiveScenes == nil {
		return
	}
	c.ActiveScenes.Dec()
}

// IncFrames counts one rendered frame.
func (c *GlobeCollector) IncFrames() {
	if c == nil || c.FramesRendered == nil {
		return
	}
	c.FramesRendered.Inc()
}
