package zoning

import (
	"context"

	"github.com/sells-group/zoning-cli/internal/model"
	"github.com/sells-group/zoning-cli/internal/resilience"
)

type guardedResolver struct {
	next    Resolver
	breaker *resilience.Breaker
}

// Guarded returns a Resolver that fails fast with a ZoneServiceError while
// the breaker is open. A missing zone counts as a healthy service response.
func Guarded(next Resolver, b *resilience.Breaker) Resolver {
	if b == nil {
		return next
	}
	return &guardedResolver{next: next, breaker: b}
}

func (g *guardedResolver) ResolveZone(ctx context.Context, pt model.ProjectedPoint) (*model.ZoneMatch, error) {
	if err := g.breaker.Allow(); err != nil {
		return nil, &model.ZoneServiceError{Op: "circuit", Err: err}
	}
	match, err := g.next.ResolveZone(ctx, pt)
	g.breaker.Record(err)
	return match, err
}
