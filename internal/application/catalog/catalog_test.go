package catalog_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/agro-pos-api/internal/application/catalog"
	"github.com/jhoicas/agro-pos-api/internal/application/dto"
	"github.com/jhoicas/agro-pos-api/internal/domain"
	"github.com/jhoicas/agro-pos-api/internal/infrastructure/memory"
)

func TestCustomerUseCase(t *testing.T) {
	ctx := context.Background()
	uc := catalog.NewCustomerUseCase(memory.NewStore().Customers())

	t.Run("state from GSTIN", func(t *testing.T) {
		out, err := uc.Create(ctx, "m-1", dto.CreateCustomerRequest{Name: "Green Farms", GSTIN: "29aagcb7383j1z4"})
		require.NoError(t, err)
		assert.Equal(t, "29AAGCB7383J1Z4", out.GSTIN)
		assert.Equal(t, "29", out.StateCode)

		got, err := uc.Get(ctx, "m-1", out.ID)
		require.NoError(t, err)
		assert.Equal(t, out.Name, got.Name)

		_, err = uc.Get(ctx, "m-2", out.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("state by name, no GSTIN", func(t *testing.T) {
		out, err := uc.Create(ctx, "m-1", dto.CreateCustomerRequest{Name: "Ramesh", StateCode: "karnataka"})
		require.NoError(t, err)
		assert.Equal(t, "29", out.StateCode)
	})

	t.Run("walk-in style buyer without state", func(t *testing.T) {
		out, err := uc.Create(ctx, "m-1", dto.CreateCustomerRequest{Name: "Suresh"})
		require.NoError(t, err)
		assert.Empty(t, out.StateCode)
	})

	tests := []struct {
		name string
		in   dto.CreateCustomerRequest
		want error
	}{
		{"missing name", dto.CreateCustomerRequest{Name: " "}, domain.ErrInvalidInput},
		{"unknown state", dto.CreateCustomerRequest{Name: "X", StateCode: "Narnia"}, domain.ErrInvalidTaxJurisdiction},
		{"bad checksum", dto.CreateCustomerRequest{Name: "X", GSTIN: "29AAGCB7383J1Z5"}, domain.ErrInvalidInput},
		{"state disagrees with GSTIN", dto.CreateCustomerRequest{Name: "X", GSTIN: "29AAGCB7383J1Z4", StateCode: "27"}, domain.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := uc.Create(ctx, "m-1", tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestProductUseCase(t *testing.T) {
	ctx := context.Background()
	uc := catalog.NewProductUseCase(memory.NewStore().Products())

	out, err := uc.Create(ctx, "m-1", dto.CreateProductRequest{
		SKU: "UREA-45", Name: "Urea 45kg", HSNCode: "31021000", Unit: "bag",
		Price: decimal.RequireFromString("266.505"), GSTRate: decimal.NewFromInt(5),
	})
	require.NoError(t, err)
	assert.Equal(t, "BAG", out.Unit)
	assert.Equal(t, "266.51", out.Price.StringFixed(2))

	got, err := uc.Get(ctx, "m-1", out.ID)
	require.NoError(t, err)
	assert.Equal(t, "UREA-45", got.SKU)

	_, err = uc.Create(ctx, "m-1", dto.CreateProductRequest{SKU: "UREA-45", Name: "Again"})
	assert.ErrorIs(t, err, domain.ErrDuplicate)

	other, err := uc.Create(ctx, "m-2", dto.CreateProductRequest{SKU: "UREA-45", Name: "Other shop"})
	require.NoError(t, err)
	assert.Equal(t, catalog.DefaultUnit, other.Unit)

	_, err = uc.Create(ctx, "m-1", dto.CreateProductRequest{SKU: "X", Name: "X", GSTRate: decimal.NewFromInt(30)})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = uc.Create(ctx, "m-1", dto.CreateProductRequest{SKU: "Y", Name: "Y", HSNCode: "310"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = uc.Create(ctx, "m-1", dto.CreateProductRequest{SKU: "Z", Name: "Z", Price: decimal.NewFromInt(-1)})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = uc.Get(ctx, "m-2", out.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
