package handler

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"

	"github.com/noah-isme/accounts-api/internal/models"
	"github.com/noah-isme/accounts-api/pkg/config"
	appErrors "github.com/noah-isme/accounts-api/pkg/errors"
	"github.com/noah-isme/accounts-api/pkg/response"
)

const stateCookieName = "oauth_state"
const stateCookieMaxAge = 600

type oauthService interface {
	OAuthLogin(ctx context.Context, info models.OAuthUserInfo) (*models.AuthResponse, string, error)
}

// OAuthHandler drives the authorization-code flow against the configured
// identity providers and hands the resolved identity to the auth service.
type OAuthHandler struct {
	service oauthService
	auth    *AuthHandler
	configs map[models.AuthProvider]*oauth2.Config
	logger  *zap.Logger
}

// NewOAuthHandler creates a new handler. Providers without client
// credentials are left unregistered and return 404.
func NewOAuthHandler(svc oauthService, auth *AuthHandler, cfg *config.Config, logger *zap.Logger) *OAuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}

	configs := make(map[models.AuthProvider]*oauth2.Config)
	if cfg.OAuth.Google.ClientID != "" {
		configs[models.ProviderGoogle] = &oauth2.Config{
			ClientID:     cfg.OAuth.Google.ClientID,
			ClientSecret: cfg.OAuth.Google.ClientSecret,
			RedirectURL:  cfg.OAuth.Google.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		}
	}
	if cfg.OAuth.GitHub.ClientID != "" {
		configs[models.ProviderGitHub] = &oauth2.Config{
			ClientID:     cfg.OAuth.GitHub.ClientID,
			ClientSecret: cfg.OAuth.GitHub.ClientSecret,
			RedirectURL:  cfg.OAuth.GitHub.RedirectURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		}
	}

	return &OAuthHandler{service: svc, auth: auth, configs: configs, logger: logger}
}

func (h *OAuthHandler) providerConfig(c *gin.Context) (models.AuthProvider, *oauth2.Config, bool) {
	provider, err := models.ParseAuthProvider(c.Param("provider"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "unknown provider"))
		return "", nil, false
	}
	conf, ok := h.configs[provider]
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "provider not configured"))
		return "", nil, false
	}
	return provider, conf, true
}

// Redirect godoc
// @Summary Start OAuth sign-in
// @Description Redirect the browser to the provider's consent screen
// @Tags OAuth
// @Param provider path string true "Provider name"
// @Success 307 "Redirect"
// @Failure 404 {object} response.Envelope
// @Router /oauth/{provider} [get]
func (h *OAuthHandler) Redirect(c *gin.Context) {
	_, conf, ok := h.providerConfig(c)
	if !ok {
		return
	}

	state, err := randomState()
	if err != nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(stateCookieName, state, stateCookieMaxAge, "/", "", false, true)
	c.Redirect(http.StatusTemporaryRedirect, conf.AuthCodeURL(state))
}

// Callback godoc
// @Summary Complete OAuth sign-in
// @Description Exchange the authorization code and sign the user in
// @Tags OAuth
// @Produce json
// @Param provider path string true "Provider name"
// @Param code query string true "Authorization code"
// @Param state query string true "CSRF state"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /oauth/{provider}/callback [get]
func (h *OAuthHandler) Callback(c *gin.Context) {
	provider, conf, ok := h.providerConfig(c)
	if !ok {
		return
	}

	expectedState, err := c.Cookie(stateCookieName)
	if err != nil || expectedState == "" || c.Query("state") != expectedState {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "state mismatch"))
		return
	}
	c.SetCookie(stateCookieName, "", -1, "/", "", false, true)

	code := c.Query("code")
	if code == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "authorization code missing"))
		return
	}

	oauthToken, err := conf.Exchange(c.Request.Context(), code)
	if err != nil {
		h.logger.Warn("oauth code exchange failed", zap.String("provider", string(provider)), zap.Error(err))
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "code exchange failed"))
		return
	}

	info, err := h.fetchUserInfo(c.Request.Context(), provider, conf, oauthToken)
	if err != nil {
		h.logger.Warn("oauth user info fetch failed", zap.String("provider", string(provider)), zap.Error(err))
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "failed to fetch user info"))
		return
	}
	info.IP = c.ClientIP()
	info.UserAgent = c.GetHeader("User-Agent")

	res, refresh, err := h.service.OAuthLogin(c.Request.Context(), info)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.auth.setRefreshCookie(c, refresh)
	response.JSON(c, http.StatusOK, res, nil)
}

func (h *OAuthHandler) fetchUserInfo(ctx context.Context, provider models.AuthProvider, conf *oauth2.Config, tok *oauth2.Token) (models.OAuthUserInfo, error) {
	client := conf.Client(ctx, tok)

	switch provider {
	case models.ProviderGoogle:
		var payload struct {
			ID    string `json:"id"`
			Email string `json:"email"`
			Name  string `json:"name"`
		}
		if err := getJSON(client, "https://www.googleapis.com/oauth2/v2/userinfo", &payload); err != nil {
			return models.OAuthUserInfo{}, err
		}
		return models.OAuthUserInfo{Provider: provider, ProviderID: payload.ID, Email: payload.Email, Name: payload.Name}, nil

	case models.ProviderGitHub:
		var payload struct {
			ID    int64  `json:"id"`
			Login string `json:"login"`
			Email string `json:"email"`
			Name  string `json:"name"`
		}
		if err := getJSON(client, "https://api.github.com/user", &payload); err != nil {
			return models.OAuthUserInfo{}, err
		}
		email := payload.Email
		if email == "" {
			email, _ = h.fetchGitHubPrimaryEmail(client)
		}
		name := payload.Name
		if name == "" {
			name = payload.Login
		}
		return models.OAuthUserInfo{Provider: provider, ProviderID: strconv.FormatInt(payload.ID, 10), Email: email, Name: name}, nil
	}

	return models.OAuthUserInfo{}, fmt.Errorf("no user info endpoint for provider %q", provider)
}

func (h *OAuthHandler) fetchGitHubPrimaryEmail(client *http.Client) (string, error) {
	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := getJSON(client, "https://api.github.com/user/emails", &emails); err != nil {
		return "", err
	}
	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email, nil
		}
	}
	return "", nil
}

func getJSON(client *http.Client, url string, out interface{}) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: unexpected status %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func randomState() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
