package xero

import "github.com/shopspring/decimal"

// amount is a decimal encoded as a bare JSON number.
type amount decimal.Decimal

func (a amount) MarshalJSON() ([]byte, error) {
	return []byte(decimal.Decimal(a).String()), nil
}

func (a *amount) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return err
	}
	*a = amount(d)
	return nil
}

type (
	connection struct {
		TenantID   string `json:"tenantId"`
		TenantType string `json:"tenantType"`
		TenantName string `json:"tenantName"`
	}

	contact struct {
		ContactID string `json:"ContactID,omitempty"`
		Name      string `json:"Name,omitempty"`
	}

	contactsEnvelope struct {
		Contacts []contact `json:"Contacts"`
	}

	taxRate struct {
		Name    string `json:"Name"`
		TaxType string `json:"TaxType"`
		Status  string `json:"Status"`
	}

	taxRatesEnvelope struct {
		TaxRates []taxRate `json:"TaxRates"`
	}

	account struct {
		AccountID string `json:"AccountID"`
		Code      string `json:"Code"`
		Name      string `json:"Name"`
		Type      string `json:"Type"`
		Status    string `json:"Status"`
	}

	accountsEnvelope struct {
		Accounts []account `json:"Accounts"`
	}

	lineItem struct {
		Description string `json:"Description,omitempty"`
		Quantity    amount `json:"Quantity"`
		UnitAmount  amount `json:"UnitAmount"`
		AccountCode string `json:"AccountCode,omitempty"`
		TaxType     string `json:"TaxType,omitempty"`
	}

	invoice struct {
		InvoiceID       string     `json:"InvoiceID,omitempty"`
		InvoiceNumber   string     `json:"InvoiceNumber,omitempty"`
		Type            string     `json:"Type,omitempty"`
		Status          string     `json:"Status,omitempty"`
		Reference       string     `json:"Reference,omitempty"`
		Contact         *contact   `json:"Contact,omitempty"`
		Date            string     `json:"Date,omitempty"`
		DueDate         string     `json:"DueDate,omitempty"`
		DateString      string     `json:"DateString,omitempty"`
		DueDateString   string     `json:"DueDateString,omitempty"`
		LineAmountTypes string     `json:"LineAmountTypes,omitempty"`
		LineItems       []lineItem `json:"LineItems,omitempty"`
	}

	invoicesEnvelope struct {
		Invoices []invoice `json:"Invoices"`
	}

	journalLine struct {
		LineAmount  amount `json:"LineAmount"`
		AccountCode string `json:"AccountCode"`
		Description string `json:"Description,omitempty"`
		TaxType     string `json:"TaxType,omitempty"`
	}

	manualJournal struct {
		ManualJournalID string        `json:"ManualJournalID,omitempty"`
		Narration       string        `json:"Narration,omitempty"`
		Date            string        `json:"Date,omitempty"`
		Status          string        `json:"Status,omitempty"`
		JournalLines    []journalLine `json:"JournalLines,omitempty"`
	}

	manualJournalsEnvelope struct {
		ManualJournals []manualJournal `json:"ManualJournals"`
	}

	validationError struct {
		Message string `json:"Message"`
	}

	apiError struct {
		ErrorNumber int    `json:"ErrorNumber"`
		Type        string `json:"Type"`
		Message     string `json:"Message"`
		Title       string `json:"Title"`
		Detail      string `json:"Detail"`
		Elements    []struct {
			ValidationErrors []validationError `json:"ValidationErrors"`
		} `json:"Elements"`
	}
)
