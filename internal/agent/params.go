package agent

import (
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"

	"github.com/sells-group/fieldops/internal/model"
)

// Params is the loosely typed argument bag an agent sends. Values arrive as
// strings from the platform envelope and as JSON scalars from the HTTP API.
type Params map[string]any

// String returns the trimmed string value of key, or "" when absent.
func (p Params) String(key string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return ""
	}
	return strings.TrimSpace(cast.ToString(v))
}

// First returns the first non-empty string among keys. Agents are not
// consistent about parameter names.
func (p Params) First(keys ...string) string {
	for _, k := range keys {
		if s := p.String(k); s != "" {
			return s
		}
	}
	return ""
}

// Int parses key as an integer. Absent or empty values yield def.
func (p Params) Int(key string, def int) (int, error) {
	if p.String(key) == "" {
		return def, nil
	}
	n, err := cast.ToIntE(p[key])
	if err != nil {
		if f, ferr := cast.ToFloat64E(p[key]); ferr == nil && f == float64(int(f)) {
			return int(f), nil
		}
		return 0, model.NewValidationError(key, "must be an integer")
	}
	return n, nil
}

// Float parses key as a number. Absent or empty values yield def.
func (p Params) Float(key string, def float64) (float64, error) {
	if p.String(key) == "" {
		return def, nil
	}
	f, err := cast.ToFloat64E(p[key])
	if err != nil {
		return 0, model.NewValidationError(key, "must be a number")
	}
	return f, nil
}

// Decimal parses key as a money amount. Absent or empty values yield zero.
func (p Params) Decimal(key string) (decimal.Decimal, error) {
	s := strings.ReplaceAll(p.String(key), ",", "")
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, model.NewValidationError(key, "must be a number")
	}
	return d, nil
}

// Bool parses key as a boolean. Absent or malformed values yield false.
func (p Params) Bool(key string) bool {
	return cast.ToBool(p.String(key))
}
