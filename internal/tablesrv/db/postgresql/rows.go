package postgresql

import (
	"database/sql"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/tansive/tablebase/internal/common/uuid"
	"github.com/tansive/tablebase/internal/tablesrv/db/models"
	"github.com/tansive/tablebase/internal/tablesrv/tableschema"
)

const dateLayout = "2006-01-02"

// scanRecords reads all rows. Column types come from types when the column is known,
// otherwise from the type the driver reports.
func scanRecords(rows *sql.Rows, types map[string]tableschema.DataType) ([]models.Record, error) {
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(colTypes))
	dataTypes := make([]tableschema.DataType, len(colTypes))
	for i, ct := range colTypes {
		names[i] = ct.Name()
		if t, ok := types[ct.Name()]; ok {
			dataTypes[i] = t
		} else {
			dataTypes[i] = tableschema.FromDatabaseTypeName(ct.DatabaseTypeName())
		}
	}

	records := []models.Record{}
	for rows.Next() {
		values := make([]any, len(names))
		dest := make([]any, len(names))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		for i := range values {
			values[i] = normalizeValue(dataTypes[i], values[i])
		}
		records = append(records, models.Record{Columns: names, Values: values})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// normalizeValue converts a driver value into its JSON rendering: json columns stay
// raw, decimals keep their exact digits and dates drop the time of day.
func normalizeValue(t tableschema.DataType, v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case []byte:
		return normalizeText(t, string(val))
	case string:
		return normalizeText(t, val)
	case time.Time:
		if t == tableschema.TypeDate {
			return val.Format(dateLayout)
		}
		return val.UTC()
	case [16]byte:
		return uuid.UUID(val).String()
	}
	return v
}

func normalizeText(t tableschema.DataType, s string) any {
	switch t {
	case tableschema.TypeJSON:
		if jsoniter.Valid([]byte(s)) {
			return jsoniter.RawMessage(s)
		}
	case tableschema.TypeDecimal:
		switch s {
		case "NaN", "Infinity", "-Infinity":
			return s
		}
		return jsoniter.Number(s)
	}
	return s
}
