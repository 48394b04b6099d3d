package weakref

import (
	"runtime"
	"sync"
	"time"

	"github.com/hypernetix/weakling/libs/logging"
)

const (
	defaultCollectPasses = 5
	defaultCollectPause  = 10 * time.Millisecond
)

// Collector forces garbage collection. Collections are best effort: a
// referent still reachable from somewhere survives any number of passes.
type Collector interface {
	Collect()
}

// CollectorFunc adapts a function to the Collector interface
type CollectorFunc func()

func (f CollectorFunc) Collect() { f() }

// RuntimeCollector runs runtime.GC Passes times and sleeps Pause after each
// pass, giving the cleanup goroutine time to deliver handles into queues.
type RuntimeCollector struct {
	Passes int
	Pause  time.Duration
}

func (c RuntimeCollector) Collect() {
	passes := c.Passes
	if passes <= 0 {
		passes = 1
	}
	for i := 0; i < passes; i++ {
		runtime.GC()
		if c.Pause > 0 {
			time.Sleep(c.Pause)
		}
	}
}

var (
	collectorMu      sync.RWMutex
	defaultCollector Collector = RuntimeCollector{Passes: defaultCollectPasses, Pause: defaultCollectPause}
)

func DefaultCollector() Collector {
	collectorMu.RLock()
	defer collectorMu.RUnlock()
	return defaultCollector
}

// SetDefaultCollector replaces the collector used by ForceCollection,
// nil restores the runtime collector with default settings
func SetDefaultCollector(c Collector) {
	if c == nil {
		c = RuntimeCollector{Passes: defaultCollectPasses, Pause: defaultCollectPause}
	}
	collectorMu.Lock()
	defaultCollector = c
	collectorMu.Unlock()
}

// ForceCollection runs the default collector
func ForceCollection() {
	c := DefaultCollector()
	logging.Trace("weakref: forcing collection with %T", c)
	c.Collect()
}
