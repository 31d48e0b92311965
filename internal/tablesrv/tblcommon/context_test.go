package tblcommon

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tansive/tablebase/internal/common/uuid"
)

func TestContext(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, GetUserContext(ctx))
	assert.Equal(t, "", GetUserID(ctx))
	assert.Equal(t, uuid.Nil, GetProjectID(ctx))
	assert.False(t, GetTestContext(ctx))

	projectID := uuid.New()
	ctx = WithUserContext(ctx, &UserContext{UserID: "users/alice", Scope: ScopeTrusted})
	ctx = WithProjectID(ctx, projectID)
	ctx = WithTestContext(ctx, true)

	assert.Equal(t, "users/alice", GetUserID(ctx))
	assert.Equal(t, ScopeTrusted, GetUserContext(ctx).Scope)
	assert.Equal(t, projectID, GetProjectID(ctx))
	assert.True(t, GetTestContext(ctx))
}
