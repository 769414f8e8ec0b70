package feederr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyStatus(t *testing.T) {
	cases := []struct {
		status int
		kind   AuthKind
	}{
		{429, AuthRateLimited},
		{403, AuthBlocked},
		{401, AuthInvalid},
	}
	for _, c := range cases {
		err := ClassifyStatus(c.status)
		kind, ok := AuthKindOf(err)
		require.True(t, ok, "status %d", c.status)
		assert.Equal(t, c.kind, kind)
	}

	// Other 4xx/5xx are transient network failures
	var ne *NetworkError
	assert.ErrorAs(t, ClassifyStatus(500), &ne)
	assert.ErrorAs(t, ClassifyStatus(404), &ne)

	assert.NoError(t, ClassifyStatus(200))
}

func TestAuthKindSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("connect session: %w",
		&AuthError{Kind: AuthRateLimited, Err: errors.New("slow down")})

	kind, ok := AuthKindOf(err)
	require.True(t, ok)
	assert.Equal(t, AuthRateLimited, kind)
	assert.False(t, IsFatalAuth(err))

	fatal := fmt.Errorf("connect: %w", &AuthError{Kind: AuthInvalid, Err: errors.New("bad token")})
	assert.True(t, IsFatalAuth(fatal))
}

func TestUnwrapChains(t *testing.T) {
	inner := errors.New("boom")
	assert.ErrorIs(t, &NetworkError{Op: "dial", Err: inner}, inner)
	assert.ErrorIs(t, &ProtocolError{SessionID: "s", Err: inner}, inner)
	assert.ErrorIs(t, &DeliveryError{Err: inner}, inner)
	assert.ErrorIs(t, &PinError{MessageID: 7, Err: inner}, inner)
}
