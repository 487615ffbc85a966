package store

import (
	"io"

	vm "github.com/VictoriaMetrics/metrics"
	gometrics "github.com/rcrowley/go-metrics"
)

// controllerMetrics are the metrics of a single controller. Every controller owns
// its own set, so multiple controllers in one process do not collide.
type controllerMetrics struct {
	set *vm.Set

	registered    *vm.Counter
	unregistered  *vm.Counter
	lookups       *vm.Counter
	unavailable   *vm.Counter
	startFailures *vm.Counter

	timings   gometrics.Registry
	startTime gometrics.Timer
	stopTime  gometrics.Timer
}

func newControllerMetrics(c *Controller, timings gometrics.Registry) *controllerMetrics {
	if timings == nil {
		timings = gometrics.NewRegistry()
	}

	set := vm.NewSet()
	m := &controllerMetrics{
		set:           set,
		registered:    set.NewCounter("itemstore_register_total"),
		unregistered:  set.NewCounter("itemstore_unregister_total"),
		lookups:       set.NewCounter("itemstore_lookup_total"),
		unavailable:   set.NewCounter("itemstore_unavailable_total"),
		startFailures: set.NewCounter("itemstore_start_failures_total"),
		timings:       timings,
		startTime:     gometrics.GetOrRegisterTimer("store.start", timings),
		stopTime:      gometrics.GetOrRegisterTimer("store.stop", timings),
	}

	set.NewGauge("itemstore_state", func() float64 {
		return float64(c.State())
	})
	set.NewGauge("itemstore_health", func() float64 {
		return float64(c.Health())
	})
	// -1 if the active index does not track its size
	set.NewGauge("itemstore_index_entries", func() float64 {
		size, ok := c.IndexSize()
		if !ok {
			return -1
		}
		return float64(size)
	})

	return m
}

// WriteMetrics writes the metrics of the controller in Prometheus text format
func (c *Controller) WriteMetrics(w io.Writer) {
	c.metrics.set.WritePrometheus(w)
}

// Timings returns the registry holding the lifecycle timers ("store.start", "store.stop")
// and the timers of scanners that share it
func (c *Controller) Timings() gometrics.Registry {
	return c.metrics.timings
}
