package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accruals/internal/accounting/memory"
	"accruals/internal/core"
)

func TestResolverTaxType(t *testing.T) {
	ctx := context.Background()
	p := memory.NewSeeded(testTenant)
	r := NewResolver(p, p)

	taxType, ok, err := r.TaxType(ctx, testTenant, "20% (vat on income)")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "OUTPUT2", taxType)

	_, ok, err = r.TaxType(ctx, testTenant, "20%")
	require.NoError(t, err)
	assert.False(t, ok, "partial names do not match")

	_, ok, err = r.TaxType(ctx, testTenant, "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResolverDoesNotCache(t *testing.T) {
	ctx := context.Background()
	p := memory.NewSeeded(testTenant)
	r := NewResolver(p, p)

	_, ok, _ := r.AccountByCode(ctx, testTenant, "830")
	assert.False(t, ok)

	p.AddAccount(core.Account{Code: "830", Name: "Campaign Accruals"})
	a, ok, err := r.AccountByCode(ctx, testTenant, "830")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Campaign Accruals", a.Name)
}

func TestResolverPropagatesProviderErrors(t *testing.T) {
	ctx := context.Background()
	p := memory.NewSeeded(testTenant)
	p.FailOn(memory.OpListTaxRates, &core.ExternalServiceError{Op: "ListTaxRates", StatusCode: 503, Message: "down"})
	r := NewResolver(p, p)

	_, _, err := r.TaxType(ctx, testTenant, "No VAT")
	assert.True(t, core.IsExternal(err))
}

func TestVerifySettings(t *testing.T) {
	ctx := context.Background()
	p := memory.NewSeeded(testTenant)
	p.FailOn(memory.OpListTaxRates, errors.New("boom"))
	r := NewResolver(p, p)

	checks := r.VerifySettings(ctx, testTenant, core.Settings{
		RevenueCode:  "200",
		CostCode:     "999",
		AccrualCode:  "820",
		SalesTaxName: "No VAT",
	})
	require.Len(t, checks, 4)

	byKey := map[string]SettingCheck{}
	for _, c := range checks {
		byKey[c.Key] = c
	}
	assert.True(t, byKey[core.SettingRevenueCode].Found)
	assert.Equal(t, "Sales", byKey[core.SettingRevenueCode].Resolved)
	assert.False(t, byKey[core.SettingCostCode].Found)
	assert.True(t, byKey[core.SettingAccrualCode].Found)
	assert.NotEmpty(t, byKey[core.SettingSalesTaxName].Error)
}
