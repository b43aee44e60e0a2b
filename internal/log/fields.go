package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldQuery       = "query"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
	FieldSuccess     = "success"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldModelName   = "model_name"
	FieldGranularity = "granularity"
	FieldRunID       = "run_id"
	FieldTarget      = "target"
	FieldAlgo        = "algo"
	FieldMAE         = "mae_val"
	FieldBaselineMAE = "baseline_mae_val"
	FieldLags        = "lags"
	FieldSamples     = "samples"
	FieldHorizon     = "horizon"
	FieldAnchor      = "anchor"
	FieldFallback    = "fallback"
	FieldRiskScore   = "risk_score"
	FieldAccountID   = "account_id"
)

// Components defines standard component names
const (
	ComponentApp      = "app"
	ComponentHTTP     = "http"
	ComponentTrainer  = "trainer"
	ComponentForecast = "forecast"
	ComponentService  = "service"
	ComponentStorage  = "storage"
	ComponentAMQP     = "amqp"
	ComponentWorker   = "worker"
	ComponentCache    = "cache"
)

// Operations defines standard operation names
const (
	OpTrain    = "train"
	OpForecast = "forecast"
	OpRetrain  = "retrain"
	OpRead     = "read"
	OpSave     = "save"
	OpList     = "list"
	OpValidate = "validate"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// ErrorTypes defines standard error type categories
const (
	ErrorTypeValidation    = "validation_error"
	ErrorTypeConfiguration = "configuration_error"
	ErrorTypeDatabase      = "database_error"
	ErrorTypeNetwork       = "network_error"
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

// WithRequestID adds request ID field
func (f LogFields) WithRequestID(requestID string) LogFields {
	f[FieldRequestID] = requestID
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

// WithModel adds the model name and its granularity
func (f LogFields) WithModel(name, granularity string) LogFields {
	f[FieldModelName] = name
	f[FieldGranularity] = granularity
	return f
}

// WithTarget adds the outcome of fitting one target
func (f LogFields) WithTarget(target, algo string, mae, baselineMAE float64) LogFields {
	f[FieldTarget] = target
	f[FieldAlgo] = algo
	f[FieldMAE] = mae
	f[FieldBaselineMAE] = baselineMAE
	return f
}

// WithForecast adds forecast request fields
func (f LogFields) WithForecast(horizon int, anchor string) LogFields {
	f[FieldHorizon] = horizon
	f[FieldAnchor] = anchor
	return f
}

// WithHTTPRequest adds HTTP request fields
func (f LogFields) WithHTTPRequest(method, path, query string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldQuery] = query
	return f
}

// WithHTTPResponse adds HTTP response fields
func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64, success bool) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = success
	return f
}

// With adds an arbitrary field
func (f LogFields) With(key string, value any) LogFields {
	f[key] = value
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
