package transport

import "context"

// Breaker decides whether a call may run. A circuit breaker returns its
// own error without calling fn while the provider is considered down.
type Breaker interface {
	Execute(ctx context.Context, fn func(context.Context) error) error
}

// Guarded routes every remote call of a Service through a Breaker. It does
// not retry.
type Guarded struct {
	service Service
	breaker Breaker
}

func NewGuarded(service Service, breaker Breaker) *Guarded {
	return &Guarded{service: service, breaker: breaker}
}

func (g *Guarded) Send(ctx context.Context, archive ArchiveFile) error {
	return g.breaker.Execute(ctx, func(ctx context.Context) error {
		return g.service.Send(ctx, archive)
	})
}

func (g *Guarded) Scan(ctx context.Context) ([]string, error) {
	var names []string
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		names, err = g.service.Scan(ctx)
		return err
	})
	return names, err
}

func (g *Guarded) Receive(ctx context.Context, name, localDir string) (string, error) {
	var local string
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		local, err = g.service.Receive(ctx, name, localDir)
		return err
	})
	return local, err
}

func (g *Guarded) Processed(ctx context.Context, name string) error {
	return g.breaker.Execute(ctx, func(ctx context.Context) error {
		return g.service.Processed(ctx, name)
	})
}

func (g *Guarded) Delete(ctx context.Context, name string) error {
	return g.breaker.Execute(ctx, func(ctx context.Context) error {
		return g.service.Delete(ctx, name)
	})
}

func (g *Guarded) Close() error {
	return g.service.Close()
}
