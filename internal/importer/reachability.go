package importer

import (
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Reachability reports whether the network is usable. The Manager pauses
// automatically while unreachable and resumes when connectivity returns.
type Reachability interface {
	// Reachable reports the current status.
	Reachable() bool

	// Changes delivers a value whenever the status flips. The channel is
	// never closed while the prober runs.
	Changes() <-chan bool

	// Stop ends monitoring.
	Stop()
}

// AlwaysReachable is a Reachability that never reports an outage.
type AlwaysReachable struct{}

func (AlwaysReachable) Reachable() bool      { return true }
func (AlwaysReachable) Changes() <-chan bool { return nil }
func (AlwaysReachable) Stop()                {}

// Prober implements Reachability by issuing periodic HEAD requests against a
// probe URL.
type Prober struct {
	url      string
	interval time.Duration
	client   *http.Client
	logger   *log.Logger

	mu        sync.Mutex
	reachable bool

	changes chan bool
	stop    chan struct{}
	once    sync.Once
}

// NewProber starts probing the URL at the given interval. The prober starts
// out assuming the network is reachable; the first failed probe flips it.
func NewProber(url string, interval time.Duration, logger *log.Logger) *Prober {
	p := &Prober{
		url:       url,
		interval:  interval,
		client:    &http.Client{Timeout: 5 * time.Second},
		logger:    logger,
		reachable: true,
		changes:   make(chan bool, 1),
		stop:      make(chan struct{}),
	}

	go p.loop()
	return p
}

func (p *Prober) Reachable() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reachable
}

func (p *Prober) Changes() <-chan bool {
	return p.changes
}

func (p *Prober) Stop() {
	p.once.Do(func() { close(p.stop) })
}

func (p *Prober) loop() {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.update(p.probe())
		}
	}
}

func (p *Prober) probe() bool {
	resp, err := p.client.Head(p.url)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}

func (p *Prober) update(reachable bool) {
	p.mu.Lock()
	changed := reachable != p.reachable
	p.reachable = reachable
	p.mu.Unlock()

	if !changed {
		return
	}

	p.logger.Info("network status changed", "reachable", reachable)

	// Drop a stale notification rather than block the probe loop.
	select {
	case p.changes <- reachable:
	default:
		select {
		case <-p.changes:
		default:
		}
		p.changes <- reachable
	}
}
