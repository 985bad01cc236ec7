package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldSuccess    = "success"
	FieldError      = "error"
	FieldOperation  = "operation"

	FieldYear             = "year"
	FieldMonth            = "month"
	FieldPurchaseID       = "purchase_id"
	FieldPersonName       = "person"
	FieldItemName         = "item"
	FieldPrincipalCents   = "principal_cents"
	FieldInstallments     = "installments_total"
	FieldInstallmentsPaid = "installments_paid"
	FieldLedgerRef        = "ledger_ref"
)

// Components defines standard component names
const (
	ComponentApp      = "app"
	ComponentHTTP     = "http"
	ComponentPurchase = "purchase"
	ComponentStorage  = "storage"
	ComponentAMQP     = "amqp"
	ComponentWorker   = "worker"
	ComponentLedger   = "ledger"
	ComponentCache    = "cache"
)
