package catalog

import (
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pos-terminal/internal/models"
)

func TestLoadFile(t *testing.T) {
	c, err := LoadFile(filepath.Join("testdata", "catalog.yaml"))
	require.NoError(t, err)

	rice, err := c.GetItem("rice")
	require.NoError(t, err)
	assert.Equal(t, "35.50", rice.UnitPrice.StringFixed(2))
	assert.Equal(t, models.PricingFixed, rice.Mode)

	halo, err := c.GetItem("halo-halo")
	require.NoError(t, err)
	large, ok := halo.FindVariant("Large")
	require.True(t, ok)
	assert.Equal(t, "140.00", large.Price.StringFixed(2))

	_, err = c.GetItem("sisig")
	assert.ErrorIs(t, err, ErrItemNotFound)

	items := c.Items()
	require.Len(t, items, 4)
	assert.Equal(t, "Desserts", items[0].Category)
}

func TestNewStatic_Rejects(t *testing.T) {
	tests := []struct {
		name string
		item models.CatalogItem
	}{
		{name: "no price", item: models.CatalogItem{ID: "a", Name: "A", Mode: models.PricingFixed}},
		{name: "variant without variants", item: models.CatalogItem{ID: "a", Name: "A", Mode: models.PricingVariant}},
		{name: "unknown mode", item: models.CatalogItem{ID: "a", Name: "A", Mode: "BUNDLE", UnitPrice: decimal.NewFromInt(1)}},
		{name: "missing id", item: models.CatalogItem{Name: "A", Mode: models.PricingFixed, UnitPrice: decimal.NewFromInt(1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewStatic([]models.CatalogItem{tt.item})
			assert.Error(t, err)
		})
	}

	item := models.CatalogItem{ID: "a", Name: "A", Mode: models.PricingFixed, UnitPrice: decimal.NewFromInt(1)}
	_, err := NewStatic([]models.CatalogItem{item, item})
	assert.ErrorContains(t, err, "duplicate")
}

func TestLoadStaffFile(t *testing.T) {
	dir, err := LoadStaffFile(filepath.Join("testdata", "staff.yaml"))
	require.NoError(t, err)

	s, err := dir.GetStaff("s-01")
	require.NoError(t, err)
	assert.Equal(t, "Maria Santos", s.Name)

	_, err = dir.GetStaff("s-99")
	assert.ErrorIs(t, err, ErrStaffNotFound)
}
