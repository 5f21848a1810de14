package testutil_test

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/DealScope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DealScope/internal/testutil"
)

func TestMockLogger_Records(t *testing.T) {
	logger := testutil.NewMockLogger()
	logger.Info("valuation completed", logging.String("method", "berkus"))

	msgs := logger.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "info", msgs[0].Level)
	v, ok := msgs[0].Field("method")
	assert.True(t, ok)
	assert.Equal(t, "berkus", v)

	logger.Clear()
	assert.Empty(t, logger.Messages())

	logger.Error("persist failed")
	assert.True(t, logger.HasMessage("error", "persist failed"))
	assert.False(t, logger.HasMessage("info", "persist failed"))
}

func TestMockLogger_ChildrenShareRecord(t *testing.T) {
	logger := testutil.NewMockLogger()
	ctx := logging.WithScope(context.Background(), "org-1", "user-1", "pitch-1")

	logger.WithContext(ctx).WithError(stderrors.New("boom")).Warn("cache unavailable")

	lm, ok := logger.Find("warn", "cache unavailable")
	require.True(t, ok)
	org, _ := lm.Field(logging.FieldOrgID)
	assert.Equal(t, "org-1", org)
	errText, _ := lm.Field("error")
	assert.Equal(t, "boom", errText)
}
