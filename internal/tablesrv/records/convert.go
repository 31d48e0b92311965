package records

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgtype"
	"github.com/tansive/tablebase/internal/common/apperrors"
	"github.com/tansive/tablebase/internal/common/uuid"
	"github.com/tansive/tablebase/internal/tablesrv/db/models"
	"github.com/tansive/tablebase/internal/tablesrv/tableschema"
	"github.com/tidwall/gjson"
)

// ConvertValue turns a JSON value into a query parameter for the column. JSON null
// is accepted only for nullable columns.
func ConvertValue(c *models.Column, v gjson.Result) (any, error) {
	if v.Type == gjson.Null {
		if !c.Nullable {
			return nil, fmt.Errorf("column %s does not accept null", c.Name)
		}
		return nil, nil
	}
	switch c.DataType {
	case tableschema.TypeText:
		if v.Type != gjson.String {
			return nil, mismatch(c, "a string")
		}
		return v.Str, nil
	case tableschema.TypeInteger:
		return integerValue(c, v, 32)
	case tableschema.TypeBigInt:
		return integerValue(c, v, 64)
	case tableschema.TypeDecimal:
		var s string
		switch v.Type {
		case gjson.Number:
			s = v.Raw
		case gjson.String:
			s = strings.TrimSpace(v.Str)
		default:
			return nil, mismatch(c, "a number")
		}
		return parseDecimal(c, s)
	case tableschema.TypeBoolean:
		if v.Type != gjson.True && v.Type != gjson.False {
			return nil, mismatch(c, "true or false")
		}
		return v.Bool(), nil
	case tableschema.TypeTimestamp:
		if v.Type != gjson.String {
			return nil, mismatch(c, "an RFC 3339 timestamp")
		}
		return parseTimestamp(c, v.Str)
	case tableschema.TypeDate:
		if v.Type != gjson.String {
			return nil, mismatch(c, "a date as YYYY-MM-DD")
		}
		return parseDate(c, v.Str)
	case tableschema.TypeJSON:
		return pgtype.JSONB{Bytes: []byte(v.Raw), Status: pgtype.Present}, nil
	case tableschema.TypeUUID:
		if v.Type != gjson.String {
			return nil, mismatch(c, "a UUID string")
		}
		return parseUUID(c, v.Str)
	}
	return nil, fmt.Errorf("column %s has unsupported type %s", c.Name, c.DataType)
}

// ParseKey converts a record id taken from a URL into a parameter for the primary
// key column.
func ParseKey(c *models.Column, s string) (any, error) {
	switch c.DataType {
	case tableschema.TypeText:
		return s, nil
	case tableschema.TypeInteger, tableschema.TypeBigInt:
		bits := 64
		if c.DataType == tableschema.TypeInteger {
			bits = 32
		}
		n, err := strconv.ParseInt(s, 10, bits)
		if err != nil {
			return nil, mismatch(c, "an integer")
		}
		return n, nil
	case tableschema.TypeDecimal:
		return parseDecimal(c, s)
	case tableschema.TypeBoolean:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, mismatch(c, "true or false")
		}
		return b, nil
	case tableschema.TypeTimestamp:
		return parseTimestamp(c, s)
	case tableschema.TypeDate:
		return parseDate(c, s)
	case tableschema.TypeUUID:
		return parseUUID(c, s)
	}
	return nil, fmt.Errorf("column %s of type %s cannot identify a record", c.Name, c.DataType)
}

func integerValue(c *models.Column, v gjson.Result, bits int) (any, error) {
	var s string
	switch v.Type {
	case gjson.Number:
		s = v.Raw
	case gjson.String:
		s = strings.TrimSpace(v.Str)
	default:
		return nil, mismatch(c, "an integer")
	}
	n, err := strconv.ParseInt(s, 10, bits)
	if err != nil {
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			return nil, fmt.Errorf("column %s: value %s is out of range", c.Name, s)
		}
		return nil, mismatch(c, "an integer")
	}
	return n, nil
}

func parseDecimal(c *models.Column, s string) (any, error) {
	if s == "" {
		return nil, mismatch(c, "a number")
	}
	if !numericInRange(s) {
		return nil, mismatch(c, "a number within the numeric range")
	}
	if strings.ContainsAny(s, "eE") {
		f, _, err := big.ParseFloat(s, 10, 256, big.ToNearestEven)
		if err != nil {
			return nil, mismatch(c, "a number")
		}
		s = f.Text('f', -1)
	}
	var n pgtype.Numeric
	if err := n.Set(s); err != nil {
		return nil, mismatch(c, "a number")
	}
	if n.Status != pgtype.Present || n.NaN || n.InfinityModifier != pgtype.None {
		return nil, mismatch(c, "a finite number")
	}
	return n, nil
}

// Limits of the PostgreSQL numeric type.
const (
	numericMaxIntDigits  = 131072
	numericMaxFracDigits = 16383
)

// numericInRange reports whether the decimal text s, expanded without an exponent,
// fits the digits PostgreSQL numeric can hold. Malformed text passes and is left to
// the parser.
func numericInRange(s string) bool {
	s = strings.TrimLeft(s, "+-")
	mantissa, exp := s, 0
	if i := strings.IndexAny(s, "eE"); i >= 0 {
		e, err := strconv.Atoi(s[i+1:])
		if err != nil {
			return strings.Trim(s[i+1:], "+-0123456789") != ""
		}
		if e > numericMaxIntDigits+len(s) || e < -(numericMaxFracDigits+len(s)) {
			return strings.Trim(s[:i], "0.") == ""
		}
		mantissa, exp = s[:i], e
	}
	intPart, frac, _ := strings.Cut(mantissa, ".")
	digits := intPart + frac
	point := len(intPart) + exp
	trimmed := strings.TrimLeft(digits, "0")
	point -= len(digits) - len(trimmed)
	trimmed = strings.TrimRight(trimmed, "0")
	if trimmed == "" {
		return true
	}
	return point <= numericMaxIntDigits && len(trimmed)-point <= numericMaxFracDigits
}

func parseTimestamp(c *models.Column, s string) (any, error) {
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, mismatch(c, "an RFC 3339 timestamp")
	}
	return ts, nil
}

func parseDate(c *models.Column, s string) (any, error) {
	if len(s) != len("2006-01-02") {
		return nil, mismatch(c, "a date as YYYY-MM-DD")
	}
	var d pgtype.Date
	if err := d.DecodeText(nil, []byte(s)); err != nil || d.InfinityModifier != pgtype.None {
		return nil, mismatch(c, "a date as YYYY-MM-DD")
	}
	return d, nil
}

func parseUUID(c *models.Column, s string) (any, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, mismatch(c, "a UUID string")
	}
	return id.String(), nil
}

func mismatch(c *models.Column, want string) error {
	return fmt.Errorf("column %s expects %s", c.Name, want)
}

// valuesFromPayload converts the settable columns present in a JSON object. Keys
// that do not name a settable column are ignored.
func valuesFromPayload(table *models.Table, payload []byte, update bool) ([]models.ColumnValue, apperrors.Error) {
	if !gjson.ValidBytes(payload) {
		return nil, ErrInvalidPayload.Msg("payload is not valid JSON")
	}
	root := gjson.ParseBytes(payload)
	if !root.IsObject() {
		return nil, ErrInvalidPayload.Msg("payload must be a JSON object")
	}

	var (
		values   []models.ColumnValue
		problems []string
	)
	for i := range table.Columns {
		c := &table.Columns[i]
		if c.Implicit || (update && c.PrimaryKey) {
			continue
		}
		v := root.Get(c.Name)
		if !v.Exists() {
			continue
		}
		param, err := ConvertValue(c, v)
		if err != nil {
			problems = append(problems, err.Error())
			continue
		}
		values = append(values, models.ColumnValue{Name: c.Name, Value: param})
	}
	if len(problems) > 0 {
		return nil, ErrInvalidValue.Msg(strings.Join(problems, "; "))
	}
	if len(values) == 0 {
		return nil, ErrNoSettableValues
	}
	return values, nil
}
