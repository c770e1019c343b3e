package inventory

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orchidnexus/orchid/internal/domain"
)

func rec(id, qty, threshold int) domain.InventoryRecord {
	return domain.InventoryRecord{ID: id, Quantity: qty, LowStockThreshold: threshold, ItemID: id, LocationID: 1}
}

func TestIsLow(t *testing.T) {
	cases := []struct {
		name      string
		qty, thr  int
		wantAlert bool
	}{
		{"zero threshold is disabled even at zero stock", 0, 0, false},
		{"equal to threshold alerts", 5, 5, true},
		{"above threshold does not alert", 6, 5, false},
		{"below threshold alerts", 1, 5, true},
		{"empty stock with threshold alerts", 0, 1, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.wantAlert, IsLow(rec(1, tc.qty, tc.thr)))
		})
	}
}

func TestListAlerts_PreservesOrder(t *testing.T) {
	records := []domain.InventoryRecord{rec(1, 2, 5), rec(2, 0, 0), rec(3, 10, 5), rec(4, 5, 5)}
	alerts := ListAlerts(records)
	require.Len(t, alerts, 2)
	assert.Equal(t, 1, alerts[0].ID)
	assert.Equal(t, 4, alerts[1].ID)
	assert.Empty(t, ListAlerts(nil))
}

func TestValidateDistribution(t *testing.T) {
	assert.NoError(t, ValidateDistribution(Movement{ItemID: 1, LocationID: 2, Quantity: 3}))

	err := ValidateDistribution(Movement{ItemID: 1, LocationID: 2, Quantity: 0})
	assert.True(t, errors.Is(err, ErrInvalidQuantity))
	err = ValidateDistribution(Movement{ItemID: 1, LocationID: 2, Quantity: -4})
	assert.True(t, errors.Is(err, ErrInvalidQuantity))

	assert.ErrorIs(t, ValidateDistribution(Movement{LocationID: 2, Quantity: 1}), ErrMissingItem)
	assert.ErrorIs(t, ValidateDistribution(Movement{ItemID: 1, Quantity: 1}), ErrMissingLocation)
}

func TestValidateStock(t *testing.T) {
	thr := 5
	assert.NoError(t, ValidateStock(Movement{ItemID: 1, LocationID: 1, Quantity: 10, Threshold: &thr}))

	neg := -1
	assert.ErrorIs(t, ValidateStock(Movement{ItemID: 1, LocationID: 1, Quantity: 10, Threshold: &neg}), ErrInvalidThreshold)
	assert.ErrorIs(t, ValidateStock(Movement{ItemID: 1, LocationID: 1}), ErrInvalidQuantity)
}

func TestLevelsAndByLocation(t *testing.T) {
	a := rec(1, 4, 0)
	a.Location = domain.Location{ID: 1, Name: "Depot"}
	b := rec(2, 9, 0)
	b.LocationID = 2
	b.Location = domain.Location{ID: 2, Name: "Clinic"}

	levels := Levels([]domain.InventoryRecord{a, b})
	assert.Equal(t, 4, levels[Key{ItemID: 1, LocationID: 1}])
	assert.Equal(t, 9, levels[Key{ItemID: 2, LocationID: 2}])

	groups := ByLocation([]domain.InventoryRecord{a, b})
	assert.Len(t, groups["Depot"], 1)
	assert.Len(t, groups["Clinic"], 1)
}
