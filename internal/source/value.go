package source

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// FormatValue converts a driver value to the raw string form the ingestion
// path expects:
//   - nil is ""
//   - time values are RFC 3339
//   - 16-byte arrays (pgx uuid) use the canonical UUID form
//   - maps, slices and other structured values are JSON
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int16:
		return strconv.FormatInt(int64(t), 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case time.Time:
		return t.Format(time.RFC3339)
	case [16]byte:
		return uuid.UUID(t).String()
	case fmt.Stringer:
		return t.String()
	}

	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	// Scalar wrappers such as pgtype.Numeric marshal to a JSON number or
	// string; unwrap strings so they are not double-quoted.
	var s string
	if json.Unmarshal(b, &s) == nil {
		return s
	}
	return string(b)
}
