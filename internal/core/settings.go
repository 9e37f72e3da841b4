package core

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cast"
)

// Recognized settings keys.
const (
	SettingRevenueCode      = "revenueCode"
	SettingCostCode         = "costCode"
	SettingAccrualCode      = "accrualCode"
	SettingSalesTaxName     = "salesTaxName"
	SettingAutoApproveBills = "autoApproveBills"
)

// SettingKeys lists the recognized keys in display order.
var SettingKeys = []string{
	SettingRevenueCode,
	SettingCostCode,
	SettingAccrualCode,
	SettingSalesTaxName,
	SettingAutoApproveBills,
}

// Settings is the process-wide accounting configuration shared by onboarding
// and reconciliation. Account codes are not checked against the provider on write.
type Settings struct {
	RevenueCode      string `json:"revenueCode"`
	CostCode         string `json:"costCode"`
	AccrualCode      string `json:"accrualCode"`
	SalesTaxName     string `json:"salesTaxName"`
	AutoApproveBills bool   `json:"autoApproveBills"`
}

// SettingsPatch carries a partial update. Nil fields are left untouched.
type SettingsPatch struct {
	RevenueCode      *string
	CostCode         *string
	AccrualCode      *string
	SalesTaxName     *string
	AutoApproveBills *bool
}

// Apply returns a copy of s with the patch applied.
func (p SettingsPatch) Apply(s Settings) Settings {
	if p.RevenueCode != nil {
		s.RevenueCode = *p.RevenueCode
	}
	if p.CostCode != nil {
		s.CostCode = *p.CostCode
	}
	if p.AccrualCode != nil {
		s.AccrualCode = *p.AccrualCode
	}
	if p.SalesTaxName != nil {
		s.SalesTaxName = *p.SalesTaxName
	}
	if p.AutoApproveBills != nil {
		s.AutoApproveBills = *p.AutoApproveBills
	}
	return s
}

// Empty reports whether the patch changes nothing.
func (p SettingsPatch) Empty() bool {
	return p.RevenueCode == nil && p.CostCode == nil && p.AccrualCode == nil &&
		p.SalesTaxName == nil && p.AutoApproveBills == nil
}

// ParseSettingsPatch coerces loosely typed values (as decoded from JSON or
// given as key=value pairs) into a patch. Unknown keys are ignored.
func ParseSettingsPatch(values map[string]any) (SettingsPatch, error) {
	var p SettingsPatch
	for key, raw := range values {
		switch key {
		case SettingRevenueCode, SettingCostCode, SettingAccrualCode, SettingSalesTaxName:
			s, err := coerceString(raw)
			if err != nil {
				return SettingsPatch{}, &ValidationError{Field: key, Message: err.Error()}
			}
			switch key {
			case SettingRevenueCode:
				p.RevenueCode = &s
			case SettingCostCode:
				p.CostCode = &s
			case SettingAccrualCode:
				p.AccrualCode = &s
			case SettingSalesTaxName:
				p.SalesTaxName = &s
			}
		case SettingAutoApproveBills:
			b, err := coerceBool(raw)
			if err != nil {
				return SettingsPatch{}, &ValidationError{Field: key, Message: err.Error()}
			}
			p.AutoApproveBills = &b
		}
	}
	return p, nil
}

// Values flattens settings into string form, keyed by setting name.
func (s Settings) Values() map[string]string {
	return map[string]string{
		SettingRevenueCode:      s.RevenueCode,
		SettingCostCode:         s.CostCode,
		SettingAccrualCode:      s.AccrualCode,
		SettingSalesTaxName:     s.SalesTaxName,
		SettingAutoApproveBills: strconv.FormatBool(s.AutoApproveBills),
	}
}

func coerceString(v any) (string, error) {
	s, err := cast.ToStringE(v)
	if err != nil {
		return "", fmt.Errorf("expected a string, got %T", v)
	}
	return strings.TrimSpace(s), nil
}

// coerceBool accepts what cast.ToBoolE does plus yes/no and on/off; an empty
// string is false.
func coerceBool(v any) (bool, error) {
	if s, ok := v.(string); ok {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "", "no", "off":
			return false, nil
		case "yes", "on":
			return true, nil
		}
		v = strings.TrimSpace(s)
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		if s, ok := v.(string); ok {
			return false, fmt.Errorf("cannot interpret %q as a boolean", s)
		}
		return false, fmt.Errorf("expected a boolean, got %T", v)
	}
	return b, nil
}
