package jwtx_test

import (
	"testing"
	"time"

	"github.com/aussiebroadwan/twofa/pkg/cryptox"
	"github.com/aussiebroadwan/twofa/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const exampleIssuer = "https://twofa.example.com"

func newSigner(t *testing.T, kid string) jwtx.Signer {
	t.Helper()
	pemKey, err := cryptox.GenerateEd25519Key()
	require.NoError(t, err)

	signer, err := jwtx.NewSignerEdDSA(kid, pemKey)
	require.NoError(t, err)
	require.NoError(t, signer.Validate())
	return signer
}

func TestEdDSASignAndVerify(t *testing.T) {
	signer := newSigner(t, "session-1")
	require.Equal(t, "EdDSA", signer.Alg())

	now := time.Now().UTC()
	claims := jwtx.NewSessionClaims(
		"acct-123",
		"oauth",
		"Ada Lovelace",
		[]string{jwtx.AMROAuth, jwtx.AMROTP, jwtx.AMRMFA},
		5*time.Minute,
		exampleIssuer,
		[]string{"twofa"},
		now,
	)

	token, err := signer.Sign(claims)
	require.NoError(t, err)

	keys := jwtx.NewKeySet()
	require.False(t, keys.IsReady())
	require.NoError(t, keys.AddSigner(signer))
	require.True(t, keys.IsReady())

	jwks := keys.PublicJWKS()
	require.Len(t, jwks.Keys, 1)
	require.Equal(t, "OKP", jwks.Keys[0].Kty)
	require.Equal(t, "Ed25519", jwks.Keys[0].Crv)

	parsed, err := jwtx.NewVerifierEdDSA(keys, exampleIssuer, []string{"twofa"}).Verify(token)
	require.NoError(t, err)
	require.Equal(t, "acct-123", parsed.Subject)
	require.Equal(t, "oauth", parsed.Kind)
	require.Equal(t, "Ada Lovelace", parsed.Name)
	require.True(t, parsed.HasAMR(jwtx.AMRMFA))
	require.False(t, parsed.HasAMR(jwtx.AMRPassword))
	require.NotEmpty(t, parsed.ID)
}

func TestEdDSAVerifyRejects(t *testing.T) {
	signer := newSigner(t, "session-1")
	keys := jwtx.NewKeySet()
	require.NoError(t, keys.AddSigner(signer))

	now := time.Now().UTC()
	token, err := signer.Sign(jwtx.NewSessionClaims("acct", "local", "", nil, time.Minute, exampleIssuer, nil, now))
	require.NoError(t, err)

	t.Run("wrong issuer", func(t *testing.T) {
		_, err := jwtx.NewVerifierEdDSA(keys, "someone-else", nil).Verify(token)
		require.ErrorIs(t, err, jwtx.ErrIssuer)
	})

	t.Run("wrong audience", func(t *testing.T) {
		_, err := jwtx.NewVerifierEdDSA(keys, exampleIssuer, []string{"admin"}).Verify(token)
		require.ErrorIs(t, err, jwtx.ErrAudience)
	})

	t.Run("expired", func(t *testing.T) {
		v := jwtx.NewVerifierEdDSA(keys, exampleIssuer, nil)
		v.Now = func() time.Time { return now.Add(2 * time.Minute) }
		_, err := v.Verify(token)
		require.ErrorIs(t, err, jwtx.ErrExpired)
	})

	t.Run("unknown key", func(t *testing.T) {
		other := jwtx.NewKeySet()
		require.NoError(t, other.AddSigner(newSigner(t, "session-2")))
		_, err := jwtx.NewVerifierEdDSA(other, exampleIssuer, nil).Verify(token)
		require.Error(t, err)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := jwtx.NewVerifierEdDSA(keys, exampleIssuer, nil).Verify("not.a.jwt")
		require.Error(t, err)
	})
}

func TestValidateExpiryAt(t *testing.T) {
	now := time.Now().UTC()
	c := &jwtx.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
		},
	}

	require.NoError(t, c.ValidateExpiryAt(now.Add(30*time.Second)))
	require.ErrorIs(t, c.ValidateExpiryAt(now.Add(-time.Minute)), jwtx.ErrNotYetValid)
	require.ErrorIs(t, c.ValidateExpiryAt(now.Add(2*time.Minute)), jwtx.ErrExpired)
}
