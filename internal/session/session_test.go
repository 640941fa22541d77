package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerify(t *testing.T) {
	issuer := NewIssuer("top-secret", time.Hour)

	sess, err := issuer.Issue("doc-1", RoleDoctor)
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Token)

	got, err := issuer.Verify(sess.Token)
	require.NoError(t, err)
	assert.Equal(t, "doc-1", got.ActorID)
	assert.Equal(t, RoleDoctor, got.Role)
}

func TestVerifyRejectsWrongSecretAndExpired(t *testing.T) {
	sess, err := NewIssuer("a", time.Hour).Issue("u-1", RolePatient)
	require.NoError(t, err)

	_, err = NewIssuer("b", time.Hour).Verify(sess.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := NewIssuer("a", time.Minute)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, err := expired.Issue("u-1", RolePatient)
	require.NoError(t, err)
	_, err = NewIssuer("a", time.Minute).Verify(old.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIssueRejectsUnknownRole(t *testing.T) {
	_, err := NewIssuer("a", time.Hour).Issue("x", Role("nurse"))
	assert.ErrorIs(t, err, ErrUnknownRole)
}

func TestFromTokenReadsClaimsUnverified(t *testing.T) {
	sess, err := NewIssuer("server-only", time.Hour).Issue("admin-1", RoleAdmin)
	require.NoError(t, err)

	got, err := FromToken("Bearer " + sess.Token)
	require.NoError(t, err)
	assert.Equal(t, "admin-1", got.ActorID)
	assert.Equal(t, RoleAdmin, got.Role)
	assert.Equal(t, sess.Token, got.Token)

	_, err = FromToken("")
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = FromToken("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthorizationHeaderOmittedWithoutToken(t *testing.T) {
	assert.Equal(t, "", Session{ActorID: "u"}.AuthorizationHeader())
	assert.Equal(t, "Bearer abc", Session{Token: "abc"}.AuthorizationHeader())
}

func TestContextRoundTrip(t *testing.T) {
	ctx := WithSession(context.Background(), Session{ActorID: "u-9", Role: RolePatient})
	got, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "u-9", got.ActorID)

	_, ok = FromContext(context.Background())
	assert.False(t, ok)
}
