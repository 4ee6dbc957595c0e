// Package alert defines the core domain types for alert evaluation: the
// query result contract, execution outcomes, and the status vocabulary.
package alert

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kyle-gehring/sqlsentinel/internal/errors"
)

// Check statuses reported by alert queries and stored in state/history.
const (
	StatusAlert = "ALERT"
	StatusOK    = "OK"
	StatusError = "ERROR"
)

// Execution outcomes returned to callers. Stable three-way result
// regardless of the underlying cause.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultError   = "error"
)

// Execution provenance tags.
const (
	TriggeredByCron   = "CRON"
	TriggeredByManual = "MANUAL"
	TriggeredByAPI    = "API"
)

// Reserved column names in alert query results.
const (
	columnStatus      = "status"
	columnActualValue = "actual_value"
	columnThreshold   = "threshold"
)

// QueryResult is the normalized result of evaluating one alert's check:
// exactly one row with a status column, optional actual_value/threshold
// scalars, and any remaining columns as context.
type QueryResult struct {
	Status      string
	ActualValue *float64
	Threshold   *float64
	Context     map[string]any
}

// ContextKeys returns the context field names in a deterministic order.
func (r *QueryResult) ContextKeys() []string {
	keys := make([]string, 0, len(r.Context))
	for k := range r.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ExecutionResult is the outcome of one full alert run.
type ExecutionResult struct {
	AlertName   string
	Timestamp   time.Time
	Status      string // success, failure, error
	QueryResult *QueryResult
	Duration    time.Duration
	Error       string
}

// BuildQueryResult validates the query-contract on raw adapter rows and
// produces a QueryResult. The contract: exactly one row, containing a
// "status" column whose value is ALERT or OK (case-insensitive). Optional
// actual_value and threshold columns are coerced to floats; everything else
// becomes context. Violations are validation errors, distinct from
// adapter-level execution failures.
func BuildQueryResult(rows []map[string]any) (*QueryResult, error) {
	if len(rows) == 0 {
		return nil, errors.New(errors.CategoryValidation,
			"query returned no rows; alert queries must return exactly one row with a 'status' column")
	}
	if len(rows) > 1 {
		return nil, errors.Newf(errors.CategoryValidation,
			"query returned %d rows; alert queries must return exactly one row", len(rows))
	}

	row := rows[0]
	rawStatus, ok := row[columnStatus]
	if !ok {
		cols := make([]string, 0, len(row))
		for k := range row {
			cols = append(cols, k)
		}
		sort.Strings(cols)
		return nil, errors.Newf(errors.CategoryValidation,
			"query result missing required 'status' column (available: %s)", strings.Join(cols, ", "))
	}

	status := strings.ToUpper(strings.TrimSpace(fmt.Sprintf("%v", rawStatus)))
	if status != StatusAlert && status != StatusOK {
		return nil, errors.Newf(errors.CategoryValidation,
			"status must be 'ALERT' or 'OK', got %q", rawStatus)
	}

	result := &QueryResult{
		Status:  status,
		Context: make(map[string]any),
	}
	for key, value := range row {
		switch key {
		case columnStatus:
		case columnActualValue:
			result.ActualValue = coerceFloat(value)
			if result.ActualValue == nil && value != nil {
				result.Context[key] = value
			}
		case columnThreshold:
			result.Threshold = coerceFloat(value)
			if result.Threshold == nil && value != nil {
				result.Context[key] = value
			}
		default:
			result.Context[key] = value
		}
	}
	return result, nil
}

// coerceFloat converts the numeric types SQL drivers hand back into a
// float64, or nil when the value is absent or non-numeric.
func coerceFloat(val any) *float64 {
	f, err := toFloat64(val)
	if err != nil {
		return nil
	}
	return &f
}

func toFloat64(val any) (float64, error) {
	switch v := val.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int8:
		return float64(v), nil
	case int16:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint:
		return float64(v), nil
	case uint8:
		return float64(v), nil
	case uint16:
		return float64(v), nil
	case uint32:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case []byte:
		return strconv.ParseFloat(string(v), 64)
	case string:
		return strconv.ParseFloat(v, 64)
	default:
		return 0, fmt.Errorf("cannot convert %T to float64", val)
	}
}
