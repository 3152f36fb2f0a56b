package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"

	FieldSessionRef    = "session_ref"
	FieldTransactionID = "transaction_id"
	FieldChurchID      = "church_id"
	FieldCategory      = "category"
	FieldAmountCents   = "amount_cents"
	FieldAttempt       = "attempt"
)

// Components defines standard component names
const (
	ComponentApp    = "app"
	ComponentHTTP   = "http"
	ComponentWorker = "worker"
)
