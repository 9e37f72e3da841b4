package core

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

// CampaignRequest is the input of campaign onboarding. Amounts are pointers so
// that an absent value can be told apart from zero.
type CampaignRequest struct {
	ClientContactID   string           `json:"clientContactId,omitempty" validate:"required_without=ClientContactName"`
	ClientContactName string           `json:"clientContactName,omitempty" validate:"required_without=ClientContactID"`
	CampaignRef       string           `json:"campaignRef" validate:"required"`
	SaleNet           *decimal.Decimal `json:"saleNet" validate:"required"`
	ExpectedCostNet   *decimal.Decimal `json:"expectedCostNet" validate:"required"`
	DueDate           string           `json:"dueDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Description       string           `json:"description,omitempty"`
	SalesTaxName      string           `json:"salesTaxName,omitempty"`
}

// CampaignResult describes what onboarding created.
type CampaignResult struct {
	InvoiceID     string          `json:"invoiceId"`
	InvoiceNumber string          `json:"invoiceNumber,omitempty"`
	JournalID     string          `json:"journalId"`
	CampaignRef   string          `json:"campaignRef"`
	Accrued       decimal.Decimal `json:"accrued"`
	AccruedTotal  decimal.Decimal `json:"accruedTotal"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON names so messages match what the caller sent.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Normalize trims free-text fields in place.
func (r *CampaignRequest) Normalize() {
	r.ClientContactID = strings.TrimSpace(r.ClientContactID)
	r.ClientContactName = strings.TrimSpace(r.ClientContactName)
	r.CampaignRef = strings.TrimSpace(r.CampaignRef)
	r.DueDate = strings.TrimSpace(r.DueDate)
	r.Description = strings.TrimSpace(r.Description)
	r.SalesTaxName = strings.TrimSpace(r.SalesTaxName)
}

// Validate returns a *ValidationError describing the first problem found.
func (r CampaignRequest) Validate() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &ValidationError{Message: err.Error()}
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return &ValidationError{Field: fe.Field(), Message: "is required"}
	case "required_without":
		return &ValidationError{Field: "clientContact", Message: "clientContactId or clientContactName is required"}
	case "datetime":
		return &ValidationError{Field: fe.Field(), Message: "must be a date in YYYY-MM-DD format"}
	default:
		return &ValidationError{Field: fe.Field(), Message: "failed " + fe.Tag() + " check"}
	}
}

// Due parses the optional due date. The zero time means none was given.
func (r CampaignRequest) Due() time.Time {
	if r.DueDate == "" {
		return time.Time{}
	}
	t, err := time.Parse(DateLayout, r.DueDate)
	if err != nil {
		return time.Time{}
	}
	return t
}

// LineDescription is the sales line text, defaulting to the campaign reference.
func (r CampaignRequest) LineDescription() string {
	if r.Description != "" {
		return r.Description
	}
	return "Campaign " + r.CampaignRef
}
