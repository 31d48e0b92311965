package tableschema

import (
	"strings"

	"github.com/lib/pq"
	"github.com/tansive/tablebase/internal/common/uuid"
)

// PhysicalColumn is a column of the physical table, in physical order.
type PhysicalColumn struct {
	Column
	Implicit bool // synthesized primary key or timestamp column
	Ordinal  int
}

// Clause renders the column definition used inside CREATE TABLE.
func (c PhysicalColumn) Clause() string {
	var b strings.Builder
	b.WriteString(pq.QuoteIdentifier(c.Name))
	b.WriteByte(' ')
	b.WriteString(c.Type.SQLType())
	switch {
	case c.PrimaryKey:
		b.WriteString(" PRIMARY KEY")
	case !c.Nullable:
		b.WriteString(" NOT NULL")
	}
	if c.Unique && !c.PrimaryKey {
		b.WriteString(" UNIQUE")
	}
	if c.Default != nil {
		b.WriteString(" DEFAULT ")
		b.WriteString(*c.Default)
	}
	return b.String()
}

func implicitColumn(name string, t DataType, def string, pk bool) PhysicalColumn {
	return PhysicalColumn{
		Column: Column{
			Name:        name,
			DisplayName: name,
			Type:        t,
			PrimaryKey:  pk,
			Default:     &def,
		},
		Implicit: true,
	}
}

// Compile turns declared columns into the physical column list. A UUID primary key
// named id is prepended when no column is declared primary key, and created_at and
// updated_at are always appended. Declared columns keep their order.
func Compile(columns []Column) ([]PhysicalColumn, bool) {
	defs := make([]PhysicalColumn, 0, len(columns)+3)

	hasPrimaryKey := false
	for _, c := range columns {
		if c.PrimaryKey {
			hasPrimaryKey = true
			break
		}
	}
	if !hasPrimaryKey {
		defs = append(defs, implicitColumn(ImplicitPrimaryKey, TypeUUID, "gen_random_uuid()", true))
	}
	for _, c := range columns {
		if c.DisplayName == "" {
			c.DisplayName = c.Name
		}
		defs = append(defs, PhysicalColumn{Column: c})
	}
	defs = append(defs,
		implicitColumn(CreatedAtColumn, TypeTimestamp, "now()", false),
		implicitColumn(UpdatedAtColumn, TypeTimestamp, "now()", false),
	)
	for i := range defs {
		defs[i].Ordinal = i
	}
	return defs, !hasPrimaryKey
}

// PhysicalTableName returns the storage name of a logical table of a project.
func PhysicalTableName(projectID uuid.UUID, name string) string {
	return PhysicalTablePrefix(projectID) + name
}

// PhysicalTablePrefix returns the prefix shared by every physical table of a project.
func PhysicalTablePrefix(projectID uuid.UUID) string {
	return "t_" + uuid.Hex(projectID) + "_"
}

// CreateTableStatement returns the DDL creating physicalName with the given columns.
// It fails if the table already exists.
func CreateTableStatement(physicalName string, defs []PhysicalColumn) string {
	clauses := make([]string, 0, len(defs))
	for _, c := range defs {
		clauses = append(clauses, c.Clause())
	}
	return "CREATE TABLE " + pq.QuoteIdentifier(physicalName) +
		" (\n  " + strings.Join(clauses, ",\n  ") + "\n)"
}

func DropTableStatement(physicalName string) string {
	return "DROP TABLE IF EXISTS " + pq.QuoteIdentifier(physicalName)
}
