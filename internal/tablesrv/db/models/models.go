package models

import (
	"time"

	"github.com/tansive/tablebase/internal/common/uuid"
	"github.com/tansive/tablebase/internal/tablesrv/tableschema"
)

type Project struct {
	ProjectID uuid.UUID
	Slug      string
	OwnerID   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Table is a tenant table as recorded in the catalog, with its columns in physical
// order.
type Table struct {
	TableID      uuid.UUID
	ProjectID    uuid.UUID
	Name         string
	DisplayName  string
	Description  string
	PhysicalName string
	RowCount     int64
	Fingerprint  string // hash of the canonical definition
	Definition   []byte // canonical JSON definition, only set on create
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Columns      []Column
}

type Column struct {
	TableID     uuid.UUID
	Name        string
	DisplayName string
	DataType    tableschema.DataType
	Nullable    bool
	PrimaryKey  bool
	Unique      bool
	Implicit    bool
	Default     *string
	Ordinal     int
}

// PrimaryKey returns the primary key column, or nil for a table without columns.
func (t *Table) PrimaryKey() *Column {
	for i := range t.Columns {
		if t.Columns[i].PrimaryKey {
			return &t.Columns[i]
		}
	}
	return nil
}

func (t *Table) Column(name string) *Column {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// ColumnTypes maps column names to their declared types.
func (t *Table) ColumnTypes() map[string]tableschema.DataType {
	types := make(map[string]tableschema.DataType, len(t.Columns))
	for _, c := range t.Columns {
		types[c.Name] = c.DataType
	}
	return types
}

// ColumnValue is a converted value bound to a column in an insert or update.
type ColumnValue struct {
	Name  string
	Value any
}

// Query is a statement accepted by the raw query gateway.
type Query struct {
	Text        string
	ReturnsRows bool
	IsWrite     bool
	Timeout     time.Duration
}

type QueryResult struct {
	Rows         []Record
	RowsAffected *int64 // nil for statements that only read
	Elapsed      time.Duration
}
