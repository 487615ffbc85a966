package scanner

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/itemstore/lib/store"
	"github.com/lni/dragonboat/v4/logger"
	gometrics "github.com/rcrowley/go-metrics"
)

var log = logger.GetLogger("scanner")

// PassFunc is a single run of a scanner. It is only called while the store is started.
// The store waits for a running pass without holding its lifecycle lock, so a pass
// may call back into the controller.
type PassFunc func(owner store.IScannerOwner, now time.Time) error

// Passes assigns pass functions to scanner kinds
type Passes map[store.ScannerKind]PassFunc

// idle is the pass of scanners without work
func idle(store.IScannerOwner, time.Time) error { return nil }

// --------------------------------------------------------------------------
// Periodic Scanner
// --------------------------------------------------------------------------

// Periodic is a store.IScanner that runs its pass at a fixed interval.
// A Periodic can be started once, a stopped scanner is not restarted.
//
// Thread-safety: This type is thread-safe.
type Periodic struct {
	kind  store.ScannerKind
	pass  PassFunc
	timer gometrics.Timer

	passes   atomic.Int64
	failures atomic.Int64

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
	started   atomic.Bool
}

// New creates a scanner of the given kind. A nil pass creates an idle scanner,
// a nil registry keeps the pass timer private.
func New(kind store.ScannerKind, pass PassFunc, registry gometrics.Registry) *Periodic {
	if pass == nil {
		pass = idle
	}
	if registry == nil {
		registry = gometrics.NewRegistry()
	}
	return &Periodic{
		kind:  kind,
		pass:  pass,
		timer: gometrics.GetOrRegisterTimer(fmt.Sprintf("scanner.%s.pass", kind), registry),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// Factory returns a store.ScannerFactory creating Periodic scanners with the given passes.
// Kinds without a pass get an idle scanner.
func Factory(registry gometrics.Registry, passes Passes) store.ScannerFactory {
	return func(kind store.ScannerKind) store.IScanner {
		return New(kind, passes[kind], registry)
	}
}

// Kind returns the kind of the scanner
func (p *Periodic) Kind() store.ScannerKind {
	return p.kind
}

// Passes returns the number of completed passes
func (p *Periodic) Passes() int64 {
	return p.passes.Load()
}

// Failures returns the number of passes that returned an error
func (p *Periodic) Failures() int64 {
	return p.failures.Load()
}

// Start launches the scanner goroutine. Only the first call has an effect.
func (p *Periodic) Start(interval time.Duration, owner store.IScannerOwner) {
	p.startOnce.Do(func() {
		if interval <= 0 {
			close(p.done)
			return
		}
		p.started.Store(true)
		go p.run(interval, owner)
		log.Debugf("scanner %s started (interval %s)", p.kind, interval)
	})
}

// Stop stops the scanner and waits for a running pass to finish
func (p *Periodic) Stop() {
	p.stopOnce.Do(func() {
		close(p.stop)
	})
	// never started: make sure a later Start does nothing
	p.startOnce.Do(func() { close(p.done) })
	<-p.done
	if p.started.Load() {
		log.Debugf("scanner %s stopped after %d passes", p.kind, p.passes.Load())
	}
}

func (p *Periodic) run(interval time.Duration, owner store.IScannerOwner) {
	defer close(p.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case now := <-ticker.C:
			if owner.State() != store.StateStarted {
				continue
			}
			var err error
			p.timer.Time(func() {
				err = p.pass(owner, now)
			})
			p.passes.Add(1)
			if err != nil {
				p.failures.Add(1)
				log.Warningf("scanner %s pass failed: %v", p.kind, err)
			}
		}
	}
}

// --------------------------------------------------------------------------
// Schedule Passes
// --------------------------------------------------------------------------

// ExpiryPass unregisters every link whose deadline in the schedule has passed
func ExpiryPass(s *Schedule) PassFunc {
	return func(owner store.IScannerOwner, now time.Time) error {
		for _, id := range s.Due(now) {
			link, ok, err := owner.FindByID(id)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			if _, err := owner.Unregister(link); err != nil {
				return err
			}
		}
		return nil
	}
}

// DelayPass hands every registered link whose delivery deadline has passed to deliver
func DelayPass(s *Schedule, deliver func(link store.Link)) PassFunc {
	return func(owner store.IScannerOwner, now time.Time) error {
		for _, id := range s.Due(now) {
			link, ok, err := owner.FindByID(id)
			if err != nil {
				return err
			}
			if ok {
				deliver(link)
			}
		}
		return nil
	}
}
