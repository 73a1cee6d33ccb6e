package object

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/conduit-lang/objectstore/internal/orm/schema"
)

// Normalize converts a Go or driver value into the canonical representation for a field type:
// int64 for integers, float64 for floats and decimals, string for text and JSON, bool,
// time.Time for temporal types and uuid.UUID for identifiers.
func Normalize(spec *schema.TypeSpec, value interface{}) (interface{}, error) {
	if value == nil {
		return nil, nil
	}
	if b, ok := value.([]byte); ok && spec.BaseType != schema.TypeUUID {
		value = string(b)
	}

	switch spec.BaseType {
	case schema.TypeString, schema.TypeText:
		if s, ok := value.(string); ok {
			return s, nil
		}
		return nil, fmt.Errorf("expected string, got %T", value)

	case schema.TypeInt, schema.TypeBigInt:
		return toInt64(value)

	case schema.TypeFloat, schema.TypeDecimal:
		return toFloat64(value)

	case schema.TypeBool:
		switch v := value.(type) {
		case bool:
			return v, nil
		case int64:
			return v != 0, nil
		case string:
			return strconv.ParseBool(v)
		}
		return nil, fmt.Errorf("expected bool, got %T", value)

	case schema.TypeTimestamp, schema.TypeDate, schema.TypeTime:
		switch v := value.(type) {
		case time.Time:
			return v, nil
		case string:
			for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05", "2006-01-02", "15:04:05"} {
				if t, err := time.Parse(layout, v); err == nil {
					return t, nil
				}
			}
			return nil, fmt.Errorf("cannot parse %q as time", v)
		}
		return nil, fmt.Errorf("expected time, got %T", value)

	case schema.TypeUUID:
		switch v := value.(type) {
		case uuid.UUID:
			return v, nil
		case [16]byte:
			return uuid.UUID(v), nil
		case string:
			return uuid.Parse(v)
		case []byte:
			if len(v) == 16 {
				return uuid.FromBytes(v)
			}
			return uuid.ParseBytes(v)
		}
		return nil, fmt.Errorf("expected uuid, got %T", value)

	case schema.TypeJSON:
		switch v := value.(type) {
		case string:
			return v, nil
		case json.RawMessage:
			return string(v), nil
		default:
			encoded, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("cannot encode json: %w", err)
			}
			return string(encoded), nil
		}
	}

	return nil, fmt.Errorf("unsupported type %s", spec.BaseType)
}

func toInt64(value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		return int64(v), nil
	case float64:
		if v == float64(int64(v)) {
			return int64(v), nil
		}
	case string:
		return strconv.ParseInt(v, 10, 64)
	}
	return nil, fmt.Errorf("expected integer, got %T", value)
}

func toFloat64(value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	case string:
		return strconv.ParseFloat(v, 64)
	}
	i, err := toInt64(value)
	if err != nil {
		return nil, fmt.Errorf("expected number, got %T", value)
	}
	return float64(i.(int64)), nil
}
