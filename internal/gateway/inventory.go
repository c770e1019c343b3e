package gateway

import (
	"context"

	"github.com/orchidnexus/orchid/internal/authz"
	"github.com/orchidnexus/orchid/internal/domain"
	"github.com/orchidnexus/orchid/internal/inventory"
	"github.com/orchidnexus/orchid/internal/metrics"
)

// Distribute logs stock leaving a location. Non-positive quantities are
// rejected here; sufficiency is checked by the backend.
func (g *Gateway) Distribute(ctx context.Context, m inventory.Movement) (domain.InventoryRecord, error) {
	var out domain.InventoryRecord
	err := g.run(authz.Distribute, func() error {
		if err := inventory.ValidateDistribution(m); err != nil {
			return err
		}
		var err error
		out, err = g.backend.Distribute(ctx, m)
		return err
	})
	return out, err
}

// Stock adds quantity at a location. Setting a low-stock threshold at the
// same time needs its own capability.
func (g *Gateway) Stock(ctx context.Context, m inventory.Movement) (domain.InventoryRecord, error) {
	if m.Threshold != nil {
		if err := authz.Check(g.role, authz.SetThreshold); err != nil {
			g.metrics.ObserveMutation(string(authz.SetThreshold), metrics.OutcomeForbidden)
			return domain.InventoryRecord{}, err
		}
	}
	var out domain.InventoryRecord
	err := g.run(authz.AddStock, func() error {
		if err := inventory.ValidateStock(m); err != nil {
			return err
		}
		var err error
		out, err = g.backend.Stock(ctx, m)
		return err
	})
	return out, err
}

func (g *Gateway) CreateItem(ctx context.Context, name string) (domain.Item, error) {
	var out domain.Item
	err := g.run(authz.CreateItem, func() error {
		var err error
		out, err = g.backend.CreateItem(ctx, name)
		return err
	})
	return out, err
}

func (g *Gateway) CreateLocation(ctx context.Context, name string) (domain.Location, error) {
	var out domain.Location
	err := g.run(authz.CreateLocation, func() error {
		var err error
		out, err = g.backend.CreateLocation(ctx, name)
		return err
	})
	return out, err
}
