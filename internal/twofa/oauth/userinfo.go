// Package oauth checks OAuth access tokens against the identity provider
// that issued them.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aussiebroadwan/twofa/internal/twofa/domain"
	"github.com/aussiebroadwan/twofa/internal/twofa/service"
	"github.com/aussiebroadwan/twofa/internal/twofa/store"
)

// AccountLookup is the slice of store.Accounts the verifier needs.
type AccountLookup interface {
	GetAccountByID(ctx context.Context, id string) (domain.Account, error)
}

// UserInfoVerifier proves token ownership by calling the provider's userinfo
// endpoint with the token and comparing the returned subject with the one
// stored on the account.
type UserInfoVerifier struct {
	Accounts AccountLookup

	// Endpoints maps Account.OAuthProvider to its userinfo URL.
	Endpoints map[string]string
	Client    *http.Client
}

func NewUserInfoVerifier(accounts AccountLookup, endpoints map[string]string, timeout time.Duration) *UserInfoVerifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &UserInfoVerifier{
		Accounts:  accounts,
		Endpoints: endpoints,
		Client:    &http.Client{Timeout: timeout},
	}
}

var _ service.TokenOwnershipVerifier = (*UserInfoVerifier)(nil)

func (v *UserInfoVerifier) Verify(ctx context.Context, accessToken, accountID string) (service.OwnershipResult, error) {
	acct, err := v.Accounts.GetAccountByID(ctx, accountID)
	if errors.Is(err, store.ErrNotFound) {
		return service.OwnershipResult{Reason: "unknown account"}, nil
	}
	if err != nil {
		return service.OwnershipResult{}, err
	}
	if acct.Kind != domain.KindOAuth || acct.OAuthSubject == "" {
		return service.OwnershipResult{Reason: "account has no provider identity"}, nil
	}

	endpoint, ok := v.Endpoints[acct.OAuthProvider]
	if !ok {
		return service.OwnershipResult{}, fmt.Errorf("oauth: no userinfo endpoint for provider %q", acct.OAuthProvider)
	}

	subject, rejected, err := v.fetchSubject(ctx, endpoint, accessToken)
	if err != nil {
		return service.OwnershipResult{}, err
	}
	if rejected {
		return service.OwnershipResult{Reason: "token rejected by provider"}, nil
	}
	if subject != acct.OAuthSubject {
		return service.OwnershipResult{Reason: "token issued to another subject"}, nil
	}
	return service.OwnershipResult{Valid: true}, nil
}

// fetchSubject returns rejected=true when the provider refuses the token.
// Any other non-200 answer is a transport failure.
func (v *UserInfoVerifier) fetchSubject(ctx context.Context, endpoint, accessToken string) (subject string, rejected bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", false, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	client := v.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", false, err
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", true, nil
	default:
		return "", false, fmt.Errorf("oauth: userinfo returned %d", resp.StatusCode)
	}

	// OIDC providers answer with "sub"; GitHub style APIs with a numeric "id".
	var payload struct {
		Sub string      `json:"sub"`
		ID  json.Number `json:"id"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&payload); err != nil {
		return "", false, fmt.Errorf("oauth: decode userinfo: %w", err)
	}
	if payload.Sub != "" {
		return payload.Sub, false, nil
	}
	return payload.ID.String(), false, nil
}
