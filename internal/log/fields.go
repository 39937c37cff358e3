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
	FieldError      = "error"
	FieldOperation  = "operation"

	FieldHabitID     = "habit_id"
	FieldHabitName   = "habit_name"
	FieldDate        = "date"
	FieldStatus      = "status"
	FieldLabel       = "label"
	FieldCategoryKey = "category_key"
	FieldAmountCents = "amount_cents"
)

// Components defines standard component names
const (
	ComponentApp      = "app"
	ComponentHTTP     = "http"
	ComponentHabit    = "habit"
	ComponentFinance  = "finance"
	ComponentStorage  = "storage"
	ComponentAMQP     = "amqp"
	ComponentWorker   = "worker"
	ComponentExport   = "export"
	ComponentSuggest  = "suggest"
)
