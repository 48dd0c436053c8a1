// Package provisioner runs keypair generation for sources in the background,
// gated on the system entropy estimate and deduplicated per identity.
package provisioner

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/deaddrop/internal/keys"
	"github.com/dmitrijs2005/deaddrop/internal/logging"
	"github.com/dmitrijs2005/deaddrop/internal/server/models"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultThreshold = 256
	DefaultWorkers   = 2
	DefaultQueueSize = 64
)

// Decision is the outcome of ProvisionIfNeeded.
type Decision int

const (
	// Present: the source already has a key.
	Present Decision = iota
	// Deferred: entropy was below the threshold; retried on the next submission.
	Deferred
	// InFlight: generation for this identity is already queued or running.
	InFlight
	// Queued: generation was dispatched.
	Queued
	// Saturated: the queue was full or the provisioner is stopped.
	Saturated
)

func (d Decision) String() string {
	switch d {
	case Present:
		return "present"
	case Deferred:
		return "deferred"
	case InFlight:
		return "in-flight"
	case Queued:
		return "queued"
	case Saturated:
		return "saturated"
	}
	return "unknown"
}

// KeyStore persists the public half once generation completes.
type KeyStore interface {
	SetPublicKey(ctx context.Context, filesystemID string, pub []byte) error
}

type Config struct {
	Threshold int
	Workers   int
	QueueSize int
}

// Provisioner owns a bounded queue drained by a fixed set of workers. Tasks
// run on the provisioner's lifetime context, never on a request context.
type Provisioner struct {
	gen       keys.Generator
	entropy   keys.EntropyEstimator
	store     KeyStore
	log       logging.Logger
	threshold int
	workers   int

	tasks chan string

	mu       sync.Mutex
	inflight map[string]struct{}
	stopped  bool

	cancel context.CancelFunc
	group  *errgroup.Group
}

func New(gen keys.Generator, entropy keys.EntropyEstimator, store KeyStore, cfg Config, log logging.Logger) *Provisioner {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	return &Provisioner{
		gen:       gen,
		entropy:   entropy,
		store:     store,
		log:       log.With("module", "provisioner"),
		threshold: cfg.Threshold,
		workers:   cfg.Workers,
		tasks:     make(chan string, cfg.QueueSize),
		inflight:  make(map[string]struct{}),
	}
}

// Start launches the workers. ctx bounds the lifetime of every generation.
func (p *Provisioner) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	p.group, ctx = errgroup.WithContext(ctx)
	for i := 0; i < p.workers; i++ {
		p.group.Go(func() error {
			for identity := range p.tasks {
				p.generate(ctx, identity)
			}
			return nil
		})
	}
}

// Shutdown stops intake and waits for queued work. If ctx expires first the
// running generations are canceled.
func (p *Provisioner) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	close(p.tasks)
	p.mu.Unlock()

	if p.group == nil {
		return nil
	}
	done := make(chan error, 1)
	go func() { done <- p.group.Wait() }()

	select {
	case err := <-done:
		p.cancel()
		return err
	case <-ctx.Done():
		p.cancel()
		<-done
		return ctx.Err()
	}
}

// ProvisionIfNeeded decides synchronously whether to start key generation
// for src and never waits for it.
func (p *Provisioner) ProvisionIfNeeded(ctx context.Context, src *models.Source) Decision {
	if src.HasKey() {
		return Present
	}

	estimate, err := p.entropy.EntropyEstimate()
	if err != nil {
		p.log.Warn(ctx, "couldn't read entropy estimate, deferring key generation", "error", err)
		return Deferred
	}
	if estimate < p.threshold {
		p.log.Warn(ctx, "entropy too low to generate keypair, deferring",
			"estimate", estimate, "threshold", p.threshold)
		return Deferred
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return Saturated
	}
	if _, ok := p.inflight[src.FilesystemID]; ok {
		return InFlight
	}
	select {
	case p.tasks <- src.FilesystemID:
		p.inflight[src.FilesystemID] = struct{}{}
		return Queued
	default:
		p.log.Warn(ctx, "key generation queue is full, deferring", "capacity", cap(p.tasks))
		return Saturated
	}
}

// Pending reports how many identities are queued or being generated.
func (p *Provisioner) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.inflight)
}

func (p *Provisioner) generate(ctx context.Context, identity string) {
	defer p.release(identity)

	pub, err := p.gen.GenerateKeypair(ctx, identity)
	if err != nil {
		p.log.Error(ctx, "keypair generation failed", "error", err)
		return
	}
	if err := p.store.SetPublicKey(ctx, identity, pub[:]); err != nil {
		p.log.Error(ctx, "couldn't store generated public key", "error", err)
		return
	}
	p.log.Info(ctx, "keypair provisioned")
}

func (p *Provisioner) release(identity string) {
	p.mu.Lock()
	delete(p.inflight, identity)
	p.mu.Unlock()
}
