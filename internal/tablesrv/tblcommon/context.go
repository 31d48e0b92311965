// Package tblcommon carries the identity of the caller and the project being acted on
// through the request context.
package tblcommon

import (
	"context"

	"github.com/tansive/tablebase/internal/common/uuid"
)

type ctxKeyType string

const (
	ctxProjectIdKey   ctxKeyType = "TablesProjectId"
	ctxUserContextKey ctxKeyType = "TablesUserContext"
	ctxTestContextKey ctxKeyType = "TablesTestContext"
)

// Scope is the capability a token grants beyond ownership of its projects.
type Scope string

const (
	ScopeDefault Scope = ""
	ScopeTrusted Scope = "trusted" // raw queries skip statement checks when enabled
)

// UserContext identifies the authenticated caller.
type UserContext struct {
	UserID string
	Scope  Scope
}

func WithUserContext(ctx context.Context, uc *UserContext) context.Context {
	return context.WithValue(ctx, ctxUserContextKey, uc)
}

// GetUserContext returns the caller, or nil for unauthenticated contexts.
func GetUserContext(ctx context.Context) *UserContext {
	if uc, ok := ctx.Value(ctxUserContextKey).(*UserContext); ok {
		return uc
	}
	return nil
}

func GetUserID(ctx context.Context) string {
	if uc := GetUserContext(ctx); uc != nil {
		return uc.UserID
	}
	return ""
}

func WithProjectID(ctx context.Context, projectID uuid.UUID) context.Context {
	return context.WithValue(ctx, ctxProjectIdKey, projectID)
}

// GetProjectID returns the project of the request, or uuid.Nil if none was loaded.
func GetProjectID(ctx context.Context) uuid.UUID {
	if id, ok := ctx.Value(ctxProjectIdKey).(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}

func WithTestContext(ctx context.Context, isTest bool) context.Context {
	return context.WithValue(ctx, ctxTestContextKey, isTest)
}

func GetTestContext(ctx context.Context) bool {
	isTest, _ := ctx.Value(ctxTestContextKey).(bool)
	return isTest
}
