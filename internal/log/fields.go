package log

import "github.com/shopspring/decimal"

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldCollection = "collection"
	FieldRecordID   = "record_id"
	FieldDebtID     = "debt_id"
	FieldGoalID     = "goal_id"
	FieldSavingID   = "saving_id"
	FieldPersonID   = "person_id"
	FieldAmount     = "amount"
	FieldOverflow   = "overflow"
	FieldCycle      = "cycle"
	FieldMessageID  = "message_id"
	FieldCount      = "count"
	FieldDuration   = "duration_ms"
	FieldSheetsRef  = "sheets_ref"
)

// Components defines standard component names
const (
	ComponentApp      = "app"
	ComponentCLI      = "cli"
	ComponentDebts    = "debts"
	ComponentGoals    = "goals"
	ComponentSavings  = "savings"
	ComponentLottery  = "lottery"
	ComponentPersons  = "persons"
	ComponentStorage  = "storage"
	ComponentAMQP     = "amqp"
	ComponentWorker   = "worker"
	ComponentSheets   = "sheets"
	ComponentCache    = "cache"
	ComponentBackend  = "backend"
	ComponentSchedule = "schedule"
)

// Operations defines standard operation names
const (
	OpCreate    = "create"
	OpUpdate    = "update"
	OpDelete    = "delete"
	OpSync      = "sync"
	OpTransfer  = "transfer"
	OpRestart   = "restart"
	OpReconcile = "reconcile"
	OpPrune     = "prune"
	OpShutdown  = "shutdown"
	OpStartup   = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithError adds the error message; nil errors are skipped.
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithRecord identifies a stored record.
func (f LogFields) WithRecord(collection string, id int64) LogFields {
	f[FieldCollection] = collection
	f[FieldRecordID] = id
	return f
}

// WithAmount records a monetary amount as its exact string form.
func (f LogFields) WithAmount(amount decimal.Decimal) LogFields {
	f[FieldAmount] = amount.String()
	return f
}

func (f LogFields) WithDuration(durationMs int64) LogFields {
	f[FieldDuration] = durationMs
	return f
}

// ToSlice converts fields to key/value pairs for slog.
func (f LogFields) ToSlice() []any {
	out := make([]any, 0, len(f)*2)
	for k, v := range f {
		out = append(out, k, v)
	}
	return out
}
