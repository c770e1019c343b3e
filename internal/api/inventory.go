package api

import (
	"context"
	"net/http"

	"github.com/orchidnexus/orchid/internal/domain"
	"github.com/orchidnexus/orchid/internal/inventory"
)

func (c *Client) ListInventory(ctx context.Context) ([]domain.InventoryRecord, error) {
	var out []domain.InventoryRecord
	err := c.do(ctx, http.MethodGet, "/inventory/", nil, &out)
	return out, err
}

func (c *Client) LowStockAlerts(ctx context.Context) ([]domain.InventoryRecord, error) {
	var out []domain.InventoryRecord
	err := c.do(ctx, http.MethodGet, "/inventory/low-stock-alerts", nil, &out)
	return out, err
}

func (c *Client) Distribute(ctx context.Context, m inventory.Movement) (domain.InventoryRecord, error) {
	m.Threshold = nil
	var out domain.InventoryRecord
	err := c.do(ctx, http.MethodPost, "/inventory/distribute", m, &out)
	return out, err
}

func (c *Client) Stock(ctx context.Context, m inventory.Movement) (domain.InventoryRecord, error) {
	var out domain.InventoryRecord
	err := c.do(ctx, http.MethodPost, "/inventory/stock", m, &out)
	return out, err
}

func (c *Client) ListItems(ctx context.Context) ([]domain.Item, error) {
	var out []domain.Item
	err := c.do(ctx, http.MethodGet, "/items/", nil, &out)
	return out, err
}

func (c *Client) CreateItem(ctx context.Context, name string) (domain.Item, error) {
	var out domain.Item
	err := c.do(ctx, http.MethodPost, "/items/", nameBody{Name: name}, &out)
	return out, err
}

func (c *Client) ListLocations(ctx context.Context) ([]domain.Location, error) {
	var out []domain.Location
	err := c.do(ctx, http.MethodGet, "/locations/", nil, &out)
	return out, err
}

func (c *Client) CreateLocation(ctx context.Context, name string) (domain.Location, error) {
	var out domain.Location
	err := c.do(ctx, http.MethodPost, "/locations/", nameBody{Name: name}, &out)
	return out, err
}
