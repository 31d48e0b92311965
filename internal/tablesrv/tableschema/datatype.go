package tableschema

import (
	"strings"
)

// DataType is the declared type of a tenant column.
type DataType string

const (
	TypeText      DataType = "text"
	TypeInteger   DataType = "integer"
	TypeBigInt    DataType = "bigint"
	TypeDecimal   DataType = "decimal"
	TypeBoolean   DataType = "boolean"
	TypeTimestamp DataType = "timestamp"
	TypeDate      DataType = "date"
	TypeJSON      DataType = "json"
	TypeUUID      DataType = "uuid"
)

var sqlTypes = map[DataType]string{
	TypeText:      "TEXT",
	TypeInteger:   "INTEGER",
	TypeBigInt:    "BIGINT",
	TypeDecimal:   "NUMERIC",
	TypeBoolean:   "BOOLEAN",
	TypeTimestamp: "TIMESTAMPTZ",
	TypeDate:      "DATE",
	TypeJSON:      "JSONB",
	TypeUUID:      "UUID",
}

// DataTypes lists the supported types in declaration order.
func DataTypes() []DataType {
	return []DataType{
		TypeText, TypeInteger, TypeBigInt, TypeDecimal, TypeBoolean,
		TypeTimestamp, TypeDate, TypeJSON, TypeUUID,
	}
}

func (t DataType) IsValid() bool {
	_, ok := sqlTypes[t]
	return ok
}

// SQLType returns the PostgreSQL column type, or "" for an unknown type.
func (t DataType) SQLType() string {
	return sqlTypes[t]
}

// FromDatabaseTypeName maps a PostgreSQL type name, as reported by the driver for a
// result column, back to a DataType. Types outside the supported set map to text.
func FromDatabaseTypeName(name string) DataType {
	switch strings.ToUpper(name) {
	case "INT2", "INT4", "INTEGER", "SMALLINT":
		return TypeInteger
	case "INT8", "BIGINT":
		return TypeBigInt
	case "NUMERIC", "DECIMAL", "FLOAT4", "FLOAT8":
		return TypeDecimal
	case "BOOL", "BOOLEAN":
		return TypeBoolean
	case "TIMESTAMPTZ", "TIMESTAMP":
		return TypeTimestamp
	case "DATE":
		return TypeDate
	case "JSON", "JSONB":
		return TypeJSON
	case "UUID":
		return TypeUUID
	}
	return TypeText
}
