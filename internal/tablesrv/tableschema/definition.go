// Package tableschema describes tenant tables and compiles them into PostgreSQL DDL.
// Physical table names are derived from the project id and the logical name, so two
// projects can never collide on storage.
package tableschema

import (
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
	"github.com/tansive/tablebase/internal/tablesrv/sqlscan"
)

const (
	// MaxTableNameLength keeps "t_" + 32 hex digits + "_" + name within the 63 byte
	// PostgreSQL identifier limit.
	MaxTableNameLength  = 28
	MaxColumnNameLength = 63
	MaxColumns          = 1000
	MaxDisplayNameLen   = 256
	MaxDescriptionLen   = 1024
	MaxDefaultExprLen   = 1024
)

// Names of the engine maintained columns.
const (
	ImplicitPrimaryKey = "id"
	CreatedAtColumn    = "created_at"
	UpdatedAtColumn    = "updated_at"
)

var identifierRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Column is a column as declared by the tenant.
type Column struct {
	Name        string   `json:"name" validate:"required,columnName"`
	DisplayName string   `json:"displayName,omitempty" validate:"max=256"`
	Type        DataType `json:"type" validate:"required,dataType"`
	Nullable    bool     `json:"nullable,omitempty"`
	PrimaryKey  bool     `json:"primaryKey,omitempty"`
	Unique      bool     `json:"unique,omitempty"`
	Default     *string  `json:"default,omitempty" validate:"omitnil,min=1,max=1024"`
}

// Definition is a table as declared by the tenant.
type Definition struct {
	Name        string   `json:"name" validate:"required,tableName"`
	DisplayName string   `json:"displayName,omitempty" validate:"max=256"`
	Description string   `json:"description,omitempty" validate:"max=1024"`
	Columns     []Column `json:"columns" validate:"required,min=1,max=1000,dive"`
}

var schemaValidator *validator.Validate

// V returns the validator used for definitions, with the custom name and type tags
// registered.
func V() *validator.Validate {
	if schemaValidator == nil {
		schemaValidator = validator.New(validator.WithRequiredStructEnabled())
	}
	return schemaValidator
}

func tableNameValidator(fl validator.FieldLevel) bool {
	return IsValidTableName(fl.Field().String())
}

func columnNameValidator(fl validator.FieldLevel) bool {
	return IsValidColumnName(fl.Field().String())
}

func dataTypeValidator(fl validator.FieldLevel) bool {
	return DataType(fl.Field().String()).IsValid()
}

func init() {
	V().RegisterValidation("tableName", tableNameValidator)
	V().RegisterValidation("columnName", columnNameValidator)
	V().RegisterValidation("dataType", dataTypeValidator)
}

func IsValidTableName(name string) bool {
	return len(name) <= MaxTableNameLength && identifierRegex.MatchString(name)
}

func IsValidColumnName(name string) bool {
	return len(name) <= MaxColumnNameLength && identifierRegex.MatchString(name)
}

// PrimaryKey returns the declared primary key column, or nil if the engine will
// synthesize one.
func (d *Definition) PrimaryKey() *Column {
	for i := range d.Columns {
		if d.Columns[i].PrimaryKey {
			return &d.Columns[i]
		}
	}
	return nil
}

// Validate checks the definition and returns every problem found, or nil.
func (d *Definition) Validate() ValidationErrors {
	var errs ValidationErrors
	if err := V().Struct(d); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return append(errs, ValidationError{Field: "definition", ErrStr: err.Error()})
		}
		for _, e := range verrs {
			errs = append(errs, toValidationError(e))
		}
		return errs
	}

	seen := make(map[string]bool, len(d.Columns))
	primaryKeys := 0
	for i, c := range d.Columns {
		field := fmt.Sprintf("columns[%d].name", i)
		if seen[c.Name] {
			errs = append(errs, ValidationError{Field: field, Value: c.Name, ErrStr: "duplicate column name " + inQuotes(c.Name)})
		}
		seen[c.Name] = true
		if c.Name == CreatedAtColumn || c.Name == UpdatedAtColumn {
			errs = append(errs, ValidationError{Field: field, Value: c.Name, ErrStr: "column name " + inQuotes(c.Name) + " is reserved"})
		}
		if c.PrimaryKey {
			primaryKeys++
			if c.Nullable {
				errs = append(errs, ValidationError{Field: fmt.Sprintf("columns[%d].nullable", i), ErrStr: "primary key cannot be nullable"})
			}
			if c.Type == TypeJSON {
				errs = append(errs, ValidationError{Field: fmt.Sprintf("columns[%d].type", i), Value: c.Type, ErrStr: "json columns cannot be primary keys"})
			}
		}
		if c.Default != nil {
			if err := sqlscan.CheckExpression(*c.Default); err != nil {
				errs = append(errs, ValidationError{Field: fmt.Sprintf("columns[%d].default", i), Value: *c.Default, ErrStr: "invalid default expression: " + err.Error()})
			}
		}
	}
	if primaryKeys > 1 {
		errs = append(errs, ValidationError{Field: "columns", ErrStr: "at most one column can be the primary key"})
	}
	if primaryKeys == 0 && seen[ImplicitPrimaryKey] {
		errs = append(errs, ValidationError{Field: "columns", Value: ImplicitPrimaryKey,
			ErrStr: "column name " + inQuotes(ImplicitPrimaryKey) + " is reserved unless a primary key is declared"})
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

func toValidationError(e validator.FieldError) ValidationError {
	field := jsonPath(e.Namespace())
	switch e.Tag() {
	case "required":
		return ValidationError{Field: field, ErrStr: "missing required attribute"}
	case "tableName":
		return ValidationError{Field: field, Value: e.Value(),
			ErrStr: fmt.Sprintf("invalid table name %s; allowed characters: [A-Za-z0-9_], must not start with a digit, at most %d characters", inQuotes(fmt.Sprint(e.Value())), MaxTableNameLength)}
	case "columnName":
		return ValidationError{Field: field, Value: e.Value(),
			ErrStr: fmt.Sprintf("invalid column name %s; allowed characters: [A-Za-z0-9_], must not start with a digit, at most %d characters", inQuotes(fmt.Sprint(e.Value())), MaxColumnNameLength)}
	case "dataType":
		return ValidationError{Field: field, Value: e.Value(),
			ErrStr: fmt.Sprintf("unknown data type %s", inQuotes(fmt.Sprint(e.Value())))}
	case "min":
		return ValidationError{Field: field, ErrStr: "must have at least " + e.Param() + " element(s)"}
	case "max":
		return ValidationError{Field: field, ErrStr: "exceeds maximum length " + e.Param()}
	}
	return ValidationError{Field: field, Value: e.Value(), ErrStr: "validation failed: " + e.Tag()}
}
