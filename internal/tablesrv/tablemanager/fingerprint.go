package tablemanager

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/anand-gl/jsoncanonicalizer"
	"github.com/tansive/tablebase/internal/common/apperrors"
	"github.com/tansive/tablebase/internal/tablesrv/db"
	"github.com/tansive/tablebase/internal/tablesrv/db/dberror"
	"github.com/tansive/tablebase/internal/tablesrv/tableschema"
)

// Canonicalize renders a normalized definition as canonical JSON and returns it with
// its SHA-256 fingerprint. Definitions that differ only in key order or whitespace
// share a fingerprint.
func Canonicalize(def *tableschema.Definition) ([]byte, string, error) {
	raw, err := json.Marshal(def)
	if err != nil {
		return nil, "", err
	}
	canonical, err := jsoncanonicalizer.Transform(raw)
	if err != nil {
		return nil, "", err
	}
	sum := sha256.Sum256(canonical)
	return canonical, hex.EncodeToString(sum[:]), nil
}

// GetDefinition returns the canonical definition the named table was created from.
func GetDefinition(ctx context.Context, name string) ([]byte, apperrors.Error) {
	if _, aerr := requireScope(ctx); aerr != nil {
		return nil, aerr
	}
	if !tableschema.IsValidTableName(name) {
		return nil, ErrInvalidTableName.Msg("invalid table name " + name)
	}
	definition, err := db.DB(ctx).GetTableDefinition(ctx, name)
	if err != nil {
		if errors.Is(err, dberror.ErrNotFound) {
			return nil, ErrTableNotFound.Msg("table " + name + " not found")
		}
		return nil, err
	}
	return definition, nil
}
