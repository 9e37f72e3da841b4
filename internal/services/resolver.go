package services

import (
	"context"
	"fmt"
	"strings"

	"accruals/internal/accounting"
	"accruals/internal/core"
)

// Resolver maps human-readable names to provider identifiers. Every lookup is
// a fresh provider call; nothing is cached.
type Resolver struct {
	taxRates accounting.TaxRateReader
	accounts accounting.AccountReader
}

func NewResolver(taxRates accounting.TaxRateReader, accounts accounting.AccountReader) *Resolver {
	return &Resolver{taxRates: taxRates, accounts: accounts}
}

// TaxType returns the tax type of the rate whose name matches name
// case-insensitively. A miss is ("", false, nil).
func (r *Resolver) TaxType(ctx context.Context, tenantID, name string) (string, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", false, nil
	}
	rates, err := r.taxRates.ListTaxRates(ctx, tenantID)
	if err != nil {
		return "", false, fmt.Errorf("list tax rates: %w", err)
	}
	for _, rate := range rates {
		if strings.EqualFold(strings.TrimSpace(rate.Name), name) {
			return rate.TaxType, true, nil
		}
	}
	return "", false, nil
}

// AccountByCode returns the chart-of-accounts entry with the given code.
func (r *Resolver) AccountByCode(ctx context.Context, tenantID, code string) (core.Account, bool, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return core.Account{}, false, nil
	}
	accounts, err := r.accounts.ListAccounts(ctx, tenantID)
	if err != nil {
		return core.Account{}, false, fmt.Errorf("list accounts: %w", err)
	}
	for _, a := range accounts {
		if strings.EqualFold(strings.TrimSpace(a.Code), code) {
			return a, true, nil
		}
	}
	return core.Account{}, false, nil
}

// SettingCheck is the result of resolving one configured setting.
type SettingCheck struct {
	Key      string `json:"key"`
	Value    string `json:"value"`
	Found    bool   `json:"found"`
	Resolved string `json:"resolved,omitempty"`
	Error    string `json:"error,omitempty"`
}

// VerifySettings resolves every configured account code and the sales tax
// name against the provider.
func (r *Resolver) VerifySettings(ctx context.Context, tenantID string, s core.Settings) []SettingCheck {
	checks := make([]SettingCheck, 0, 4)
	for _, kv := range []struct{ key, code string }{
		{core.SettingRevenueCode, s.RevenueCode},
		{core.SettingCostCode, s.CostCode},
		{core.SettingAccrualCode, s.AccrualCode},
	} {
		c := SettingCheck{Key: kv.key, Value: kv.code}
		a, ok, err := r.AccountByCode(ctx, tenantID, kv.code)
		switch {
		case err != nil:
			c.Error = err.Error()
		case ok:
			c.Found = true
			c.Resolved = a.Name
		}
		checks = append(checks, c)
	}

	c := SettingCheck{Key: core.SettingSalesTaxName, Value: s.SalesTaxName}
	taxType, ok, err := r.TaxType(ctx, tenantID, s.SalesTaxName)
	switch {
	case err != nil:
		c.Error = err.Error()
	case ok:
		c.Found = true
		c.Resolved = taxType
	}
	return append(checks, c)
}
