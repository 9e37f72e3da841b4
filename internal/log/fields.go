package log

// Common field names for structured logging
const (
	FieldComponent     = "component"
	FieldRequestID     = "request_id"
	FieldClientIP      = "client_ip"
	FieldMethod        = "method"
	FieldPath          = "path"
	FieldQuery         = "query"
	FieldStatusCode    = "status_code"
	FieldDuration      = "duration_ms"
	FieldUserAgent     = "user_agent"
	FieldSuccess       = "success"
	FieldError         = "error"
	FieldErrorType     = "error_type"
	FieldOperation     = "operation"
	FieldTenantID      = "tenant_id"
	FieldCampaignRef   = "campaign_ref"
	FieldInvoiceID     = "invoice_id"
	FieldContactID     = "contact_id"
	FieldContactName   = "contact_name"
	FieldTaxName       = "tax_name"
	FieldInvoiceNumber = "invoice_number"
	FieldBillID        = "bill_id"
	FieldBillStatus    = "bill_status"
	FieldJournalID     = "journal_id"
	FieldAccrued       = "accrued"
	FieldNetAmount     = "net_amount"
	FieldBaseline      = "baseline"
	FieldVariance      = "variance"
	FieldDirection     = "direction"
	FieldAction        = "action"
	FieldReason        = "reason"
	FieldEventType     = "event_type"
	FieldQueue         = "queue"
)

// Components defines standard component names
const (
	ComponentApp        = "app"
	ComponentHTTP       = "http"
	ComponentCampaign   = "campaign"
	ComponentReconciler = "reconciler"
	ComponentWebhook    = "webhook"
	ComponentStorage    = "storage"
	ComponentAMQP       = "amqp"
	ComponentWorker     = "worker"
	ComponentProvider   = "provider"
	ComponentAudit      = "audit"
	ComponentRateLimit  = "rate_limit"
	ComponentTrace      = "trace"
	ComponentBackend    = "backend"
)

// Operations defines standard operation names
const (
	OpCreate    = "create"
	OpRead      = "read"
	OpUpdate    = "update"
	OpList      = "list"
	OpReconcile = "reconcile"
	OpPublish   = "publish"
	OpConsume   = "consume"
	OpVerify    = "verify"
	OpShutdown  = "shutdown"
	OpStartup   = "startup"
)

// ErrorTypes defines standard error type categories
const (
	ErrorTypeValidation    = "validation_error"
	ErrorTypeConfiguration = "configuration_error"
	ErrorTypeDatabase      = "database_error"
	ErrorTypeAuth          = "auth_error"
	ErrorTypeExternal      = "external_service_error"
	ErrorTypeInternal      = "internal_error"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithComponent adds component field
func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithRequestID adds request ID field
func (f LogFields) WithRequestID(requestID string) LogFields {
	f[FieldRequestID] = requestID
	return f
}

// WithClientIP adds client IP field
func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithCampaign adds campaign onboarding fields
func (f LogFields) WithCampaign(ref, invoiceID, journalID, accrued string) LogFields {
	f[FieldCampaignRef] = ref
	f[FieldInvoiceID] = invoiceID
	f[FieldJournalID] = journalID
	f[FieldAccrued] = accrued
	return f
}

// WithBill adds bill identification fields
func (f LogFields) WithBill(billID, status, ref string) LogFields {
	f[FieldBillID] = billID
	f[FieldBillStatus] = status
	if ref != "" {
		f[FieldCampaignRef] = ref
	}
	return f
}

// WithHTTPRequest adds HTTP request fields
func (f LogFields) WithHTTPRequest(method, path, query, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldQuery] = query
	if userAgent != "" {
		f[FieldUserAgent] = userAgent
	}
	return f
}

// WithHTTPResponse adds HTTP response fields
func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64, success bool) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = success
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
