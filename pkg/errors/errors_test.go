package errors_test

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turtacn/DealScope/pkg/errors"
)

func TestNew_FieldsAreSetCorrectly(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		code    errors.ErrorCode
		message string
	}{
		{"internal error", errors.CodeInternal, "unexpected failure"},
		{"invalid input", errors.ErrCodeInvalidInput, "investment_amount must be > 0"},
		{"insufficient data", errors.ErrCodeInsufficientData, "need at least 2 comparables"},
		{"division by zero", errors.ErrCodeDivisionByZero, "pre-investment shares total zero"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ae := errors.New(tc.code, tc.message)

			require.NotNil(t, ae)
			assert.Equal(t, tc.code, ae.Code)
			assert.Equal(t, tc.message, ae.Message)
			assert.Empty(t, ae.Detail)
			assert.Nil(t, ae.Cause)
			assert.Contains(t, ae.Stack, "errors_test.go")
		})
	}
}

func TestFactories_SetExpectedCodes(t *testing.T) {
	t.Parallel()

	assert.Equal(t, errors.ErrCodeInvalidInput, errors.InvalidInput("x").Code)
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.InvalidInputf("x=%d", 1).Code)
	assert.Equal(t, "x=1", errors.InvalidInputf("x=%d", 1).Message)
	assert.Equal(t, errors.ErrCodeInsufficientData, errors.InsufficientData("x").Code)
	assert.Equal(t, errors.ErrCodeDivisionByZero, errors.DivisionByZero("x").Code)
	assert.Equal(t, errors.ErrCodeNotFound, errors.NotFound("x").Code)
	assert.Equal(t, errors.ErrCodeBadRequest, errors.InvalidParam("x").Code)
	assert.Equal(t, errors.ErrCodeInternal, errors.Internal("x").Code)
	assert.Equal(t, "weights sum to 7", errors.Newf(errors.ErrCodeValidation, "weights sum to %d", 7).Message)
}

func TestWrap_NilErrReturnsNil(t *testing.T) {
	t.Parallel()

	assert.Nil(t, errors.Wrap(nil, errors.CodeInternal, "should not matter"))
}

func TestWrap_CauseChainIsPreserved(t *testing.T) {
	t.Parallel()

	root := stderrors.New("connection refused")
	wrapped := errors.Wrap(root, errors.ErrCodeDatabaseError, "failed to save run")

	require.NotNil(t, wrapped)
	assert.Equal(t, errors.ErrCodeDatabaseError, wrapped.Code)
	assert.Equal(t, root, stderrors.Unwrap(wrapped))
	assert.True(t, stderrors.Is(wrapped, root))
}

func TestWrap_PreservesOriginalCodeWhenCodeUnknown(t *testing.T) {
	t.Parallel()

	inner := errors.InsufficientData("sample too small")
	outer := errors.Wrap(inner, errors.CodeUnknown, "comps failed")

	assert.Equal(t, errors.ErrCodeInsufficientData, outer.Code)
}

func TestWrap_OverridesCodeWhenExplicit(t *testing.T) {
	t.Parallel()

	inner := errors.InvalidInput("bad")
	outer := errors.Wrap(inner, errors.CodeInternal, "unexpected state")

	assert.Equal(t, errors.CodeInternal, outer.Code)
	assert.True(t, errors.IsCode(outer, errors.ErrCodeInvalidInput), "inner code remains reachable")
}

func TestError_Format(t *testing.T) {
	t.Parallel()

	plain := errors.InvalidInput("weights must not be negative")
	assert.Equal(t, "[CALC_001] weights must not be negative", plain.Error())

	detailed := plain.WithDetail("weight[team]=-1")
	assert.Equal(t, "[CALC_001] weights must not be negative: weight[team]=-1", detailed.Error())
	assert.Empty(t, plain.Detail, "WithDetail must not mutate the receiver")

	formatted := plain.WithDetailf("n=%d", 3)
	assert.True(t, strings.HasSuffix(formatted.Error(), ": n=3"))
}

func TestWithCause(t *testing.T) {
	t.Parallel()

	cause := stderrors.New("io")
	ae := errors.Internal("boom").WithCause(cause)
	assert.Equal(t, cause, ae.Cause)

	var nilErr *errors.AppError
	assert.Nil(t, nilErr.WithCause(cause))
	assert.Nil(t, nilErr.WithDetail("x"))
}

func TestIsCode_TraversesForeignWrappers(t *testing.T) {
	t.Parallel()

	base := errors.DivisionByZero("zero shares")
	wrapped := fmt.Errorf("simulate: %w", base)

	assert.True(t, errors.IsCode(wrapped, errors.ErrCodeDivisionByZero))
	assert.False(t, errors.IsCode(wrapped, errors.ErrCodeInvalidInput))
	assert.False(t, errors.IsCode(nil, errors.ErrCodeInvalidInput))
}

func TestGetCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, errors.CodeOK, errors.GetCode(nil))
	assert.Equal(t, errors.CodeUnknown, errors.GetCode(stderrors.New("plain")))
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.GetCode(fmt.Errorf("ctx: %w", errors.InvalidInput("x"))))
}

func TestIsNotFound(t *testing.T) {
	t.Parallel()

	assert.True(t, errors.IsNotFound(errors.NotFound("x")))
	assert.True(t, errors.IsNotFound(errors.New(errors.ErrCodeRunNotFound, "run")))
	assert.True(t, errors.IsNotFound(errors.New(errors.ErrCodeCompsNotFound, "comps")))
	assert.False(t, errors.IsNotFound(errors.Internal("x")))
	assert.False(t, errors.IsNotFound(nil))
}

func TestIsValidation(t *testing.T) {
	t.Parallel()

	assert.True(t, errors.IsValidation(errors.InvalidInput("x")))
	assert.True(t, errors.IsValidation(errors.InsufficientData("x")))
	assert.True(t, errors.IsValidation(errors.DivisionByZero("x")))
	assert.True(t, errors.IsValidation(errors.InvalidParam("x")))
	assert.False(t, errors.IsValidation(errors.Internal("x")))
	assert.False(t, errors.IsValidation(stderrors.New("x")))
}

func TestAsAppError(t *testing.T) {
	t.Parallel()

	ae, ok := errors.AsAppError(fmt.Errorf("outer: %w", errors.InsufficientData("n=1")))
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeInsufficientData, ae.Code)

	_, ok = errors.AsAppError(stderrors.New("plain"))
	assert.False(t, ok)
}
