package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"crewsync/internal/config"
	"crewsync/internal/db/repository"
	"crewsync/internal/directory"
	"crewsync/internal/domain"
)

// loginStateTTL bounds how long a login redirect stays redeemable.
const loginStateTTL = 10 * time.Minute

// OAuthHandler implements the delegated-mode sign-in flow. The operator signs
// in once via /auth/login; the resulting token is cached in app metadata and
// used by the directory client until it expires.
type OAuthHandler struct {
	oauth    oauth2.Config
	meta     domain.MetadataStore
	tenantID string
	logger   *slog.Logger
}

// pendingLogin is the state nonce persisted between /auth/login and
// /auth/callback.
type pendingLogin struct {
	State     string    `json:"state"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewOAuthHandler creates the login flow handler from directory settings.
func NewOAuthHandler(cfg config.DirectoryConfig, meta domain.MetadataStore, logger *slog.Logger) *OAuthHandler {
	return &OAuthHandler{
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthorizeURL,
				TokenURL: cfg.TokenURL,
			},
		},
		meta:     meta,
		tenantID: cfg.TenantID,
		logger:   logger.With("component", "oauth"),
	}
}

// handleLogin starts the authorization-code flow: persist a state nonce and
// redirect to the identity provider.
func (o *OAuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	pending := pendingLogin{
		State:     uuid.NewString(),
		ExpiresAt: time.Now().Add(loginStateTTL),
	}
	raw, err := json.Marshal(pending)
	if err != nil {
		writeErrorCode(w, http.StatusInternalServerError, "marshal login state")
		return
	}
	if err := o.meta.Set(r.Context(), repository.MetaKeyPendingOAuth, string(raw)); err != nil {
		writeError(w, err)
		return
	}

	authURL := o.oauth.AuthCodeURL(pending.State, oauth2.AccessTypeOffline)
	http.Redirect(w, r, authURL, http.StatusFound)
}

// handleCallback redeems the authorization code and caches the user token
// for the directory client.
func (o *OAuthHandler) handleCallback(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")
	if state == "" || code == "" {
		writeErrorCode(w, http.StatusBadRequest, "missing state or code")
		return
	}

	raw, err := o.meta.Get(r.Context(), repository.MetaKeyPendingOAuth)
	if err != nil {
		writeErrorCode(w, http.StatusBadRequest, "no login in progress")
		return
	}
	var pending pendingLogin
	if err := json.Unmarshal([]byte(raw), &pending); err != nil {
		writeErrorCode(w, http.StatusBadRequest, "corrupt login state")
		return
	}
	if pending.State != state || time.Now().After(pending.ExpiresAt) {
		writeErrorCode(w, http.StatusBadRequest, "state mismatch or expired; retry /auth/login")
		return
	}

	token, err := o.oauth.Exchange(r.Context(), code)
	if err != nil {
		o.logger.Error("code exchange failed", "error", err)
		writeErrorCode(w, http.StatusBadGateway, "code exchange failed")
		return
	}

	cached := directory.CachedToken{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Expiry:       token.Expiry,
	}
	buf, err := json.Marshal(cached)
	if err != nil {
		writeErrorCode(w, http.StatusInternalServerError, "marshal token")
		return
	}
	if err := o.meta.Set(r.Context(), repository.MetaKeyUserToken, string(buf)); err != nil {
		writeError(w, err)
		return
	}
	_ = o.meta.Delete(r.Context(), repository.MetaKeyPendingOAuth)

	o.logger.Info("delegated sign-in complete", "token_expiry", token.Expiry)
	writeJSON(w, http.StatusOK, map[string]any{
		"signed_in":    true,
		"token_expiry": token.Expiry,
	})
}

// handleConsent redirects to the tenant's admin-consent page so an
// administrator can grant the application its directory permissions.
func (o *OAuthHandler) handleConsent(w http.ResponseWriter, r *http.Request) {
	if o.tenantID == "" {
		writeErrorCode(w, http.StatusBadRequest, "admin consent requires DIR_TENANT_ID")
		return
	}
	consentURL := fmt.Sprintf(
		"https://login.microsoftonline.com/%s/adminconsent?client_id=%s&redirect_uri=%s",
		url.PathEscape(o.tenantID),
		url.QueryEscape(o.oauth.ClientID),
		url.QueryEscape(o.oauth.RedirectURL),
	)
	http.Redirect(w, r, consentURL, http.StatusFound)
}
