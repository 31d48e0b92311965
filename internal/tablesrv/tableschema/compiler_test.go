package tableschema

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tansive/tablebase/internal/common/uuid"
)

func strPtr(s string) *string { return &s }

func TestCompileImplicitPrimaryKey(t *testing.T) {
	defs, added := Compile([]Column{
		{Name: "title", Type: TypeText},
		{Name: "done", Type: TypeBoolean, Default: strPtr("false")},
	})
	require.True(t, added)
	require.Len(t, defs, 5)

	names := make([]string, len(defs))
	for i, d := range defs {
		names[i] = d.Name
		assert.Equal(t, i, d.Ordinal)
	}
	assert.Equal(t, []string{"id", "title", "done", "created_at", "updated_at"}, names)

	assert.True(t, defs[0].Implicit)
	assert.True(t, defs[0].PrimaryKey)
	assert.Equal(t, `"id" UUID PRIMARY KEY DEFAULT gen_random_uuid()`, defs[0].Clause())
	assert.Equal(t, `"title" TEXT NOT NULL`, defs[1].Clause())
	assert.Equal(t, "title", defs[1].DisplayName)
	assert.Equal(t, `"done" BOOLEAN NOT NULL DEFAULT false`, defs[2].Clause())
	assert.Equal(t, `"created_at" TIMESTAMPTZ NOT NULL DEFAULT now()`, defs[3].Clause())
	assert.True(t, defs[4].Implicit)
}

func TestCompileDeclaredPrimaryKey(t *testing.T) {
	defs, added := Compile([]Column{
		{Name: "sku", Type: TypeText, PrimaryKey: true, Unique: true},
		{Name: "price", Type: TypeDecimal, Nullable: true},
		{Name: "code", Type: TypeInteger, Unique: true},
	})
	require.False(t, added)
	require.Len(t, defs, 5)
	assert.Equal(t, `"sku" TEXT PRIMARY KEY`, defs[0].Clause())
	assert.False(t, defs[0].Implicit)
	assert.Equal(t, `"price" NUMERIC`, defs[1].Clause())
	assert.Equal(t, `"code" INTEGER NOT NULL UNIQUE`, defs[2].Clause())
}

func TestCompileTypeMapping(t *testing.T) {
	want := map[DataType]string{
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
	for _, dt := range DataTypes() {
		defs, _ := Compile([]Column{{Name: "c", Type: dt, Nullable: true}})
		assert.Equal(t, `"c" `+want[dt], defs[1].Clause(), string(dt))
	}
	assert.Equal(t, "", DataType("money").SQLType())
}

func TestPhysicalTableName(t *testing.T) {
	p1 := uuid.MustParse("0196a3a0-1b2c-7d3e-8f40-5a6b7c8d9e0f")
	p2 := uuid.MustParse("0196a3a0-1b2c-7d3e-8f40-5a6b7c8d9e10")

	assert.Equal(t, "t_0196a3a01b2c7d3e8f405a6b7c8d9e0f_todos", PhysicalTableName(p1, "todos"))
	assert.NotEqual(t, PhysicalTableName(p1, "todos"), PhysicalTableName(p2, "todos"))
	assert.True(t, strings.HasPrefix(PhysicalTableName(p2, "x"), PhysicalTablePrefix(p2)))

	longest := PhysicalTableName(p1, strings.Repeat("a", MaxTableNameLength))
	assert.LessOrEqual(t, len(longest), 63)
}

func TestCreateTableStatement(t *testing.T) {
	defs, _ := Compile([]Column{{Name: "title", Type: TypeText}})
	stmt := CreateTableStatement("t_abc_todos", defs)
	assert.True(t, strings.HasPrefix(stmt, `CREATE TABLE "t_abc_todos" (`))
	assert.Contains(t, stmt, `"title" TEXT NOT NULL,`)
	assert.Equal(t, `DROP TABLE IF EXISTS "t_abc_todos"`, DropTableStatement("t_abc_todos"))
}
