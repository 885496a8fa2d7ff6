package rack

import (
	"math"
	"strconv"
)

// Effect is one declarative rack entry.
type Effect struct {
	ID       string  `yaml:"id"`
	Type     string  `yaml:"type"`
	Bypassed bool    `yaml:"bypassed,omitempty"`
	Options  Options `yaml:"options,omitempty"`
}

// WithOptions returns a copy of e with the given options merged over its
// own. The receiver's map is not modified.
func (e Effect) WithOptions(over Options) Effect {
	merged := make(Options, len(e.Options)+len(over))
	for k, v := range e.Options {
		merged[k] = v
	}
	for k, v := range over {
		merged[k] = v
	}
	e.Options = merged
	return e
}

// Options holds loosely typed effect options as they come from presets and
// YAML files.
type Options map[string]any

// GetNum returns a numeric option, or def when the key is missing, not a
// number, NaN or infinite.
func (o Options) GetNum(key string, def float64) float64 {
	var v float64
	switch x := o[key].(type) {
	case float64:
		v = x
	case float32:
		v = float64(x)
	case int:
		v = float64(x)
	case int64:
		v = float64(x)
	case uint64:
		v = float64(x)
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return def
		}
		v = f
	default:
		return def
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return def
	}
	return v
}

// GetInt returns GetNum rounded to the nearest integer.
func (o Options) GetInt(key string, def int) int {
	return int(math.Round(o.GetNum(key, float64(def))))
}

// GetString returns a string option or def.
func (o Options) GetString(key, def string) string {
	if s, ok := o[key].(string); ok && s != "" {
		return s
	}
	return def
}

// GetBool returns a boolean option or def.
func (o Options) GetBool(key string, def bool) bool {
	if b, ok := o[key].(bool); ok {
		return b
	}
	return def
}
