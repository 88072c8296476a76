package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldQuery       = "query"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
	FieldSuccess     = "success"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldYear        = "year"
	FieldMonth       = "month"
	FieldDay         = "day"
	FieldMovementID  = "movement_id"
	FieldKind        = "kind"
	FieldCategoryID  = "category_id"
	FieldAmount      = "amount"
	FieldCacheKey    = "cache_key"
	FieldNotifyID    = "notification_id"
	FieldNotifyKind  = "notification_kind"
	FieldUsername    = "username"
	FieldCredential  = "credential_id"
	FieldSheetsRef   = "sheets_ref"
	FieldSynced      = "synced"
	FieldFailed      = "failed"
	FieldTotal       = "total"
)

// Components defines standard component names
const (
	ComponentApp      = "app"
	ComponentGateway  = "gateway"
	ComponentSession  = "session"
	ComponentCache    = "cache"
	ComponentSync     = "sync"
	ComponentMovement = "movement"
	ComponentNotify   = "notify"
	ComponentStorage  = "storage"
	ComponentAMQP     = "amqp"
	ComponentSheets   = "sheets"
	ComponentAuth     = "auth"
)

// Operations defines standard operation names
const (
	OpCreate     = "create"
	OpRead       = "read"
	OpUpdate     = "update"
	OpDelete     = "delete"
	OpList       = "list"
	OpSync       = "sync"
	OpValidate   = "validate"
	OpLogin      = "login"
	OpLogout     = "logout"
	OpInvalidate = "invalidate"
	OpRollback   = "rollback"
	OpExport     = "export"
)

// ErrorTypes defines standard error type categories
const (
	ErrorTypeValidation    = "validation_error"
	ErrorTypeConfiguration = "configuration_error"
	ErrorTypeNetwork       = "network_error"
	ErrorTypeAuth          = "auth_error"
	ErrorTypeNotFound      = "not_found_error"
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

// WithMovement adds movement-related fields
func (f LogFields) WithMovement(id string, day, month, year int, kind string, categoryID int, amount string) LogFields {
	if id != "" {
		f[FieldMovementID] = id
	}
	f[FieldDay] = day
	f[FieldMonth] = month
	f[FieldYear] = year
	f[FieldKind] = kind
	f[FieldCategoryID] = categoryID
	f[FieldAmount] = amount
	return f
}

// WithHTTPRequest adds outbound request fields
func (f LogFields) WithHTTPRequest(method, path, query string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	if query != "" {
		f[FieldQuery] = query
	}
	return f
}

// WithHTTPResponse adds response fields
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
