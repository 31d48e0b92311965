package tablemanager

import (
	"time"

	"github.com/tansive/tablebase/internal/tablesrv/db/models"
	"github.com/tansive/tablebase/internal/tablesrv/tableschema"
)

// TableDescriptor is the client view of a table, with the implicit columns included.
type TableDescriptor struct {
	Name         string             `json:"name"`
	DisplayName  string             `json:"displayName"`
	Description  string             `json:"description"`
	PhysicalName string             `json:"physicalName"`
	RowCount     int64              `json:"rowCount"`
	Fingerprint  string             `json:"fingerprint"`
	CreatedAt    time.Time          `json:"createdAt"`
	UpdatedAt    time.Time          `json:"updatedAt"`
	Columns      []ColumnDescriptor `json:"columns,omitempty"`
}

type ColumnDescriptor struct {
	Name        string               `json:"name"`
	DisplayName string               `json:"displayName"`
	Type        tableschema.DataType `json:"type"`
	Nullable    bool                 `json:"nullable"`
	PrimaryKey  bool                 `json:"primaryKey"`
	Unique      bool                 `json:"unique"`
	Implicit    bool                 `json:"implicit"`
	Default     *string              `json:"default,omitempty"`
	Ordinal     int                  `json:"ordinal"`
}

func Describe(t *models.Table) *TableDescriptor {
	d := &TableDescriptor{
		Name:         t.Name,
		DisplayName:  t.DisplayName,
		Description:  t.Description,
		PhysicalName: t.PhysicalName,
		RowCount:     t.RowCount,
		Fingerprint:  t.Fingerprint,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
	if len(t.Columns) > 0 {
		d.Columns = DescribeColumns(t.Columns)
	}
	return d
}

func DescribeColumns(columns []models.Column) []ColumnDescriptor {
	out := make([]ColumnDescriptor, 0, len(columns))
	for _, c := range columns {
		out = append(out, ColumnDescriptor{
			Name:        c.Name,
			DisplayName: c.DisplayName,
			Type:        c.DataType,
			Nullable:    c.Nullable,
			PrimaryKey:  c.PrimaryKey,
			Unique:      c.Unique,
			Implicit:    c.Implicit,
			Default:     c.Default,
			Ordinal:     c.Ordinal,
		})
	}
	return out
}
