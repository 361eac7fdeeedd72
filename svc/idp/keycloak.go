package idp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"
)

const defaultCallTimeout = 30 * time.Second

// KeycloakConfig points the gateway at a Keycloak admin API. The service
// account behind ClientID must hold realm administration rights in the
// master realm.
type KeycloakConfig struct {
	BaseURL      string        `env:"KEYCLOAK_BASE_URL"`
	ClientID     string        `env:"KEYCLOAK_CLIENT_ID"`
	ClientSecret string        `env:"KEYCLOAK_CLIENT_SECRET"`
	CallTimeout  time.Duration `env:"KEYCLOAK_CALL_TIMEOUT" envDefault:"30s"`

	Realm RealmSettings
}

// RealmSettings is applied verbatim to every realm the gateway creates.
// The values map straight onto the provider's realm representation.
type RealmSettings struct {
	AccessTokenLifespan   int    `env:"KEYCLOAK_ACCESS_TOKEN_LIFESPAN" envDefault:"300"`
	SSOSessionIdleTimeout int    `env:"KEYCLOAK_SSO_IDLE_TIMEOUT" envDefault:"1800"`
	PasswordPolicy        string `env:"KEYCLOAK_PASSWORD_POLICY" envDefault:"length(12) and upperCase(1) and lowerCase(1) and digits(1) and specialChars(1)"`
	EmailAsUsername       bool   `env:"KEYCLOAK_EMAIL_AS_USERNAME" envDefault:"true"`
	OTPEnabled            bool   `env:"KEYCLOAK_OTP_ENABLED" envDefault:"false"`
}

// Keycloak talks to the Keycloak admin REST API. Tokens are acquired and
// refreshed through the client credentials grant.
type Keycloak struct {
	baseURL     string
	client      *http.Client
	callTimeout time.Duration
	realm       RealmSettings
}

// NewKeycloak builds a gateway from config. The returned gateway reuses a
// single token source for all calls.
func NewKeycloak(cfg KeycloakConfig) *Keycloak {
	creds := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     strings.TrimSuffix(cfg.BaseURL, "/") + "/realms/master/protocol/openid-connect/token",
	}
	timeout := cfg.CallTimeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	return &Keycloak{
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		client:      creds.Client(context.Background()),
		callTimeout: timeout,
		realm:       cfg.Realm,
	}
}

func (k *Keycloak) CreateRealm(ctx context.Context, realm, displayName string) error {
	if displayName == "" {
		displayName = realm
	}
	body := map[string]any{
		"realm":                       realm,
		"enabled":                     true,
		"displayName":                 displayName,
		"accessTokenLifespan":         k.realm.AccessTokenLifespan,
		"ssoSessionIdleTimeout":       k.realm.SSOSessionIdleTimeout,
		"passwordPolicy":              k.realm.PasswordPolicy,
		"loginWithEmailAllowed":       k.realm.EmailAsUsername,
		"registrationEmailAsUsername": k.realm.EmailAsUsername,
		"otpPolicyType":               otpPolicy(k.realm.OTPEnabled),
	}
	status, _, _, err := k.do(ctx, http.MethodPost, "/admin/realms", body)
	if err != nil {
		return err
	}
	switch status {
	case http.StatusCreated:
		return nil
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", ErrRealmExists, realm)
	default:
		return fmt.Errorf("%w: create realm %s: status %d", ErrRequestFailed, realm, status)
	}
}

func (k *Keycloak) CreateRealmRoles(ctx context.Context, realm string, roles []string) error {
	for _, role := range roles {
		body := map[string]any{"name": role}
		status, _, _, err := k.do(ctx, http.MethodPost, "/admin/realms/"+url.PathEscape(realm)+"/roles", body)
		if err != nil {
			return err
		}
		// 409 means the role is already defined, which is fine on retry.
		if status != http.StatusCreated && status != http.StatusConflict {
			return fmt.Errorf("%w: create role %s in %s: status %d", ErrRequestFailed, role, realm, status)
		}
	}
	return nil
}

func (k *Keycloak) CreateAdminUser(ctx context.Context, realm string, user User) error {
	return k.createUser(ctx, realm, user)
}

func (k *Keycloak) CreateUser(ctx context.Context, realm string, user User) error {
	return k.createUser(ctx, realm, user)
}

func (k *Keycloak) createUser(ctx context.Context, realm string, user User) error {
	body := map[string]any{
		"username":      user.Username,
		"email":         user.Email,
		"firstName":     user.FirstName,
		"lastName":      user.LastName,
		"enabled":       true,
		"emailVerified": false,
		"credentials": []map[string]any{{
			"type":      "password",
			"value":     user.Password,
			"temporary": user.Temporary,
		}},
	}
	status, headers, _, err := k.do(ctx, http.MethodPost, "/admin/realms/"+url.PathEscape(realm)+"/users", body)
	if err != nil {
		return err
	}
	if status != http.StatusCreated {
		return fmt.Errorf("%w: create user %s in %s: status %d", ErrRequestFailed, user.Username, realm, status)
	}
	if len(user.Roles) == 0 {
		return nil
	}

	userID := idFromLocation(headers.Get("Location"))
	if userID == "" {
		return fmt.Errorf("%w: create user %s in %s: missing Location header", ErrRequestFailed, user.Username, realm)
	}
	return k.assignRealmRoles(ctx, realm, userID, user.Roles)
}

func (k *Keycloak) assignRealmRoles(ctx context.Context, realm, userID string, roles []string) error {
	reps := make([]map[string]any, 0, len(roles))
	for _, role := range roles {
		status, _, payload, err := k.do(ctx, http.MethodGet, "/admin/realms/"+url.PathEscape(realm)+"/roles/"+url.PathEscape(role), nil)
		if err != nil {
			return err
		}
		if status != http.StatusOK {
			return fmt.Errorf("%w: lookup role %s in %s: status %d", ErrRequestFailed, role, realm, status)
		}
		var rep struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		}
		if err := json.Unmarshal(payload, &rep); err != nil {
			return fmt.Errorf("%w: decode role %s: %w", ErrRequestFailed, role, err)
		}
		reps = append(reps, map[string]any{"id": rep.ID, "name": rep.Name})
	}

	path := "/admin/realms/" + url.PathEscape(realm) + "/users/" + url.PathEscape(userID) + "/role-mappings/realm"
	status, _, _, err := k.do(ctx, http.MethodPost, path, reps)
	if err != nil {
		return err
	}
	if status != http.StatusNoContent {
		return fmt.Errorf("%w: assign roles to user %s in %s: status %d", ErrRequestFailed, userID, realm, status)
	}
	return nil
}

func (k *Keycloak) CreateClient(ctx context.Context, realm string, client Client) (ClientCredentials, error) {
	body := map[string]any{
		"clientId":                  client.ClientID,
		"name":                      client.Name,
		"enabled":                   true,
		"publicClient":              client.Public,
		"standardFlowEnabled":       true,
		"directAccessGrantsEnabled": !client.Public,
		"serviceAccountsEnabled":    !client.Public,
		"redirectUris":              client.RedirectURIs,
		"webOrigins":                client.WebOrigins,
	}
	status, headers, _, err := k.do(ctx, http.MethodPost, "/admin/realms/"+url.PathEscape(realm)+"/clients", body)
	if err != nil {
		return ClientCredentials{}, err
	}
	if status != http.StatusCreated {
		return ClientCredentials{}, fmt.Errorf("%w: create client %s in %s: status %d", ErrRequestFailed, client.ClientID, realm, status)
	}
	if client.Public {
		return ClientCredentials{ClientID: client.ClientID}, nil
	}

	internalID := idFromLocation(headers.Get("Location"))
	if internalID == "" {
		return ClientCredentials{}, fmt.Errorf("%w: create client %s in %s: missing Location header", ErrRequestFailed, client.ClientID, realm)
	}

	path := "/admin/realms/" + url.PathEscape(realm) + "/clients/" + url.PathEscape(internalID) + "/client-secret"
	status, _, payload, err := k.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return ClientCredentials{}, err
	}
	if status != http.StatusOK {
		return ClientCredentials{}, fmt.Errorf("%w: fetch secret for client %s in %s: status %d", ErrRequestFailed, client.ClientID, realm, status)
	}
	var secret struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(payload, &secret); err != nil {
		return ClientCredentials{}, fmt.Errorf("%w: decode client secret: %w", ErrRequestFailed, err)
	}
	return ClientCredentials{ClientID: client.ClientID, Secret: secret.Value}, nil
}

func (k *Keycloak) RealmExists(ctx context.Context, realm string) (bool, error) {
	status, _, _, err := k.do(ctx, http.MethodGet, "/admin/realms/"+url.PathEscape(realm), nil)
	if err != nil {
		return false, err
	}
	switch status {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("%w: check realm %s: status %d", ErrRequestFailed, realm, status)
	}
}

func (k *Keycloak) GetUserCount(ctx context.Context, realm string) (int, error) {
	status, _, payload, err := k.do(ctx, http.MethodGet, "/admin/realms/"+url.PathEscape(realm)+"/users/count", nil)
	if err != nil {
		return 0, err
	}
	if status == http.StatusNotFound {
		return 0, fmt.Errorf("%w: %s", ErrRealmNotFound, realm)
	}
	if status != http.StatusOK {
		return 0, fmt.Errorf("%w: count users in %s: status %d", ErrRequestFailed, realm, status)
	}
	var count int
	if err := json.Unmarshal(payload, &count); err != nil {
		return 0, fmt.Errorf("%w: decode user count: %w", ErrRequestFailed, err)
	}
	return count, nil
}

// do issues one admin API call with the per-call timeout applied. It
// returns the status code, response headers, and body so callers can map
// provider statuses to domain errors.
func (k *Keycloak) do(ctx context.Context, method, path string, body any) (int, http.Header, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, k.callTimeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, nil, nil, fmt.Errorf("%w: encode request: %w", ErrRequestFailed, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, k.baseURL+path, reader)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := k.client.Do(req)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, nil, nil, fmt.Errorf("%w: read response: %w", ErrRequestFailed, err)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return 0, nil, nil, fmt.Errorf("%w: status %d", ErrInvalidCredentials, resp.StatusCode)
	}
	return resp.StatusCode, resp.Header, payload, nil
}

func otpPolicy(enabled bool) string {
	if enabled {
		return "totp"
	}
	return ""
}

// idFromLocation extracts the created resource id from a Location header
// like ".../users/8f14e45f-...".
func idFromLocation(location string) string {
	if location == "" {
		return ""
	}
	idx := strings.LastIndex(location, "/")
	if idx < 0 || idx == len(location)-1 {
		return ""
	}
	return location[idx+1:]
}
