package http

import (
	"net/http"

	"github.com/aussiebroadwan/twofa/internal/twofa/domain"
	"github.com/aussiebroadwan/twofa/internal/twofa/tokenstore"
	"github.com/aussiebroadwan/twofa/pkg/authsdk"
	"github.com/aussiebroadwan/twofa/pkg/httpx"
	"github.com/aussiebroadwan/twofa/pkg/slogx"
)

// DebugTokensHandler lists live temp and setup tokens by fingerprint, with
// secrets stripped from the values.
func DebugTokensHandler(temp tokenstore.Store[domain.TempLoginToken], setup tokenstore.Store[domain.SetupToken]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		out := authsdk.DebugTokensResponse{
			TempLogin: []authsdk.DebugToken{},
			Setup:     []authsdk.DebugToken{},
		}

		temps, err := temp.List(ctx)
		if err != nil {
			slogx.FromContext(ctx).Error("failed to list temp tokens", "err", err)
			authsdk.ErrServerError.WriteError(w)
			return
		}
		for _, e := range temps {
			t := e.Value.Redacted()
			out.TempLogin = append(out.TempLogin, authsdk.DebugToken{
				Fingerprint: e.Key, AccountID: t.AccountID, Kind: string(t.Kind),
				CreatedAt: t.CreatedAt, ExpiresAt: t.ExpiresAt,
			})
		}

		setups, err := setup.List(ctx)
		if err != nil {
			slogx.FromContext(ctx).Error("failed to list setup tokens", "err", err)
			authsdk.ErrServerError.WriteError(w)
			return
		}
		for _, e := range setups {
			t := e.Value.Redacted()
			out.Setup = append(out.Setup, authsdk.DebugToken{
				Fingerprint: e.Key, AccountID: t.AccountID, Kind: string(t.Kind),
				CreatedAt: t.CreatedAt, ExpiresAt: t.ExpiresAt,
			})
		}

		httpx.WriteJSON(w, http.StatusOK, out)
	}
}
