package service

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCodec(t *testing.T, clock *fakeClock) *TokenCodec {
	t.Helper()
	codec, err := NewTokenCodec(testSecret, "")
	require.NoError(t, err)
	return codec.WithClock(clock.Now)
}

func TestNewTokenCodec_RequiresSecret(t *testing.T) {
	_, err := NewTokenCodec("   ", "")
	assert.ErrorIs(t, err, ErrMissingSigningSecret)

	_, err = NewTokenCodec("short", "")
	assert.ErrorIs(t, err, ErrMisconfigured)
}

func TestTokenCodec_SignVerifyRoundTrip(t *testing.T) {
	clock := newFakeClock()
	codec := newTestCodec(t, clock)

	token, expiresAt, err := codec.Sign("harry", TokenClaims{Type: "access", Permissions: []string{"profile:read"}}, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 3, len(strings.Split(token, ".")))
	assert.True(t, clock.Now().Add(time.Hour).Equal(expiresAt))

	claims, err := codec.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "harry", claims.Subject)
	assert.Equal(t, "access", claims.Type)
	assert.Equal(t, []string{"profile:read"}, claims.Permissions)
	assert.NotEmpty(t, claims.ID)
	assert.Equal(t, clock.Now().Unix(), claims.IssuedAt.Unix())
}

func TestTokenCodec_SignRejectsBadInput(t *testing.T) {
	codec := newTestCodec(t, newFakeClock())

	_, _, err := codec.Sign("", TokenClaims{}, time.Hour)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, _, err = codec.Sign("harry", TokenClaims{}, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestTokenCodec_TokensAreUnique(t *testing.T) {
	codec := newTestCodec(t, newFakeClock())

	a, _, err := codec.Sign("harry", TokenClaims{}, time.Hour)
	require.NoError(t, err)
	b, _, err := codec.Sign("harry", TokenClaims{}, time.Hour)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestTokenCodec_VerifyExpired(t *testing.T) {
	clock := newFakeClock()
	codec := newTestCodec(t, clock)

	token, _, err := codec.Sign("harry", TokenClaims{}, time.Minute)
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	_, err = codec.Verify(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestTokenCodec_ExpiredForeignTokenIsASignatureFailure(t *testing.T) {
	clock := newFakeClock()
	codec := newTestCodec(t, clock)
	other, err := NewTokenCodec("another-secret-that-is-long-enough-too", "")
	require.NoError(t, err)
	other.WithClock(clock.Now)

	foreign, _, err := other.Sign("harry", TokenClaims{}, time.Minute)
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	_, err = codec.Verify(foreign)
	assert.ErrorIs(t, err, ErrInvalidSignature)
	assert.NotErrorIs(t, err, ErrExpiredToken)
}

func TestTokenCodec_VerifyFailures(t *testing.T) {
	clock := newFakeClock()
	codec := newTestCodec(t, clock)

	other, err := NewTokenCodec("another-secret-that-is-long-enough-too", "")
	require.NoError(t, err)
	other.WithClock(clock.Now)
	foreign, _, err := other.Sign("harry", TokenClaims{}, time.Hour)
	require.NoError(t, err)

	claims := jwt.RegisteredClaims{
		Subject:   "harry",
		IssuedAt:  jwt.NewNumericDate(clock.Now()),
		ExpiresAt: jwt.NewNumericDate(clock.Now().Add(time.Hour)),
	}
	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	good, _, err := codec.Sign("harry", TokenClaims{}, time.Hour)
	require.NoError(t, err)
	parts := strings.Split(good, ".")
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{name: "empty", token: "", want: ErrMalformedToken},
		{name: "garbage", token: "not-a-token", want: ErrMalformedToken},
		{name: "foreign-key", token: foreign, want: ErrInvalidSignature},
		{name: "tampered-signature", token: tampered, want: ErrInvalidSignature},
		{name: "hs512", token: hs512, want: ErrUnsupportedToken},
		{name: "alg-none", token: unsigned, want: ErrUnsupportedToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := codec.Verify(tt.token)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestTokenCodec_ExtractSubject(t *testing.T) {
	clock := newFakeClock()
	codec := newTestCodec(t, clock)

	token, _, err := codec.Sign("harry", TokenClaims{}, time.Minute)
	require.NoError(t, err)

	subject, err := codec.ExtractSubject(token, true)
	require.NoError(t, err)
	assert.Equal(t, "harry", subject)

	clock.Advance(time.Hour)

	subject, err = codec.ExtractSubject(token, false)
	require.NoError(t, err)
	assert.Equal(t, "harry", subject)

	_, err = codec.ExtractSubject(token, true)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestTokenCodec_ExtractSubjectLenientStillChecksSignature(t *testing.T) {
	clock := newFakeClock()
	codec := newTestCodec(t, clock)

	other, err := NewTokenCodec("another-secret-that-is-long-enough-too", "")
	require.NoError(t, err)
	other.WithClock(clock.Now)
	foreign, _, err := other.Sign("harry", TokenClaims{}, time.Minute)
	require.NoError(t, err)

	clock.Advance(time.Hour)
	_, err = codec.ExtractSubject(foreign, false)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestTokenCodec_Issuer(t *testing.T) {
	clock := newFakeClock()
	issuing, err := NewTokenCodec(testSecret, "gym-crm")
	require.NoError(t, err)
	issuing.WithClock(clock.Now)

	token, _, err := issuing.Sign("harry", TokenClaims{}, time.Hour)
	require.NoError(t, err)

	claims, err := issuing.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "gym-crm", claims.Issuer)

	strangers, err := NewTokenCodec(testSecret, "someone-else")
	require.NoError(t, err)
	strangers.WithClock(clock.Now)
	_, err = strangers.Verify(token)
	assert.ErrorIs(t, err, ErrUnsupportedToken)
}
