package http

import (
	"time"

	"github.com/aussiebroadwan/twofa/internal/twofa/domain"
	"github.com/aussiebroadwan/twofa/pkg/authsdk"
	"github.com/aussiebroadwan/twofa/pkg/jwtx"
)

// SessionIssuer mints the bearer assertion handed out once sign-in is complete.
type SessionIssuer struct {
	Signer   jwtx.Signer
	Issuer   string
	Audience []string
	TTL      time.Duration

	Now func() time.Time
}

func (s *SessionIssuer) Issue(res domain.LoginResult) (authsdk.SessionResponse, error) {
	ttl := s.TTL
	if ttl <= 0 {
		ttl = jwtx.DefaultSessionTTL
	}
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}

	claims := jwtx.NewSessionClaims(res.AccountID, string(res.Kind), res.Name, res.Methods, ttl, s.Issuer, s.Audience, now.UTC())
	token, err := s.Signer.Sign(claims)
	if err != nil {
		return authsdk.SessionResponse{}, err
	}

	out := authsdk.SessionResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(ttl.Seconds()),
		AccountID:   res.AccountID,
		Email:       res.Email,
		Name:        res.Name,
		Kind:        string(res.Kind),
		AMR:         res.Methods,
	}
	if res.OAuthTokens != nil {
		out.OAuthTokens = &authsdk.OAuthTokens{
			AccessToken:  res.OAuthTokens.AccessToken,
			RefreshToken: res.OAuthTokens.RefreshToken,
			UserInfo:     res.OAuthTokens.UserInfo,
		}
	}
	return out, nil
}
