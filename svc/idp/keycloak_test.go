package idp_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/officekit/accountd/svc/idp"
)

// adminServer fakes the slice of the Keycloak admin API the gateway talks
// to, including the master realm token endpoint.
func adminServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/realms/master/protocol/openid-connect/token", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "test-token",
			"token_type":   "Bearer",
			"expires_in":   300,
		})
	})
	mux.HandleFunc("/admin/", handler)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newGateway(srv *httptest.Server) *idp.Keycloak {
	return idp.NewKeycloak(idp.KeycloakConfig{
		BaseURL:      srv.URL,
		ClientID:     "provisioner",
		ClientSecret: "secret",
	})
}

func TestKeycloakCreateRealm(t *testing.T) {
	t.Parallel()

	srv := adminServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/admin/realms", r.URL.Path)
		require.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "acme-corp", body["realm"])
		assert.Equal(t, "Acme Corp", body["displayName"])
		assert.Equal(t, true, body["enabled"])

		w.WriteHeader(http.StatusCreated)
	})

	err := newGateway(srv).CreateRealm(context.Background(), "acme-corp", "Acme Corp")
	require.NoError(t, err)
}

func TestKeycloakCreateRealmConflict(t *testing.T) {
	t.Parallel()

	srv := adminServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})

	err := newGateway(srv).CreateRealm(context.Background(), "acme-corp", "Acme Corp")
	require.ErrorIs(t, err, idp.ErrRealmExists)
}

func TestKeycloakCreateRealmRoles(t *testing.T) {
	t.Parallel()

	var created []string
	srv := adminServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/admin/realms/acme-corp/roles", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		created = append(created, body["name"].(string))
		w.WriteHeader(http.StatusCreated)
	})

	err := newGateway(srv).CreateRealmRoles(context.Background(), "acme-corp", []string{"admin", "member"})
	require.NoError(t, err)
	assert.Equal(t, []string{"admin", "member"}, created)
}

func TestKeycloakCreateUserAssignsRoles(t *testing.T) {
	t.Parallel()

	var assigned []map[string]any
	srv := adminServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/admin/realms/acme-corp/users":
			w.Header().Set("Location", r.Host+"/admin/realms/acme-corp/users/user-123")
			w.WriteHeader(http.StatusCreated)
		case r.Method == http.MethodGet && r.URL.Path == "/admin/realms/acme-corp/roles/admin":
			_ = json.NewEncoder(w).Encode(map[string]any{"id": "role-1", "name": "admin"})
		case r.Method == http.MethodPost && r.URL.Path == "/admin/realms/acme-corp/users/user-123/role-mappings/realm":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&assigned))
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected call: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})

	err := newGateway(srv).CreateAdminUser(context.Background(), "acme-corp", idp.User{
		Username:  "admin",
		Email:     "admin@acme.example",
		Password:  "initial",
		Temporary: true,
		Roles:     []string{"admin"},
	})
	require.NoError(t, err)
	require.Len(t, assigned, 1)
	assert.Equal(t, "role-1", assigned[0]["id"])
}

func TestKeycloakCreateClientReturnsSecret(t *testing.T) {
	t.Parallel()

	srv := adminServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/admin/realms/acme-corp/clients":
			w.Header().Set("Location", r.Host+"/admin/realms/acme-corp/clients/internal-9")
			w.WriteHeader(http.StatusCreated)
		case r.Method == http.MethodGet && r.URL.Path == "/admin/realms/acme-corp/clients/internal-9/client-secret":
			_ = json.NewEncoder(w).Encode(map[string]any{"type": "secret", "value": "s3cr3t"})
		default:
			t.Errorf("unexpected call: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})

	creds, err := newGateway(srv).CreateClient(context.Background(), "acme-corp", idp.Client{
		ClientID: "acme-corp-api",
		Public:   false,
	})
	require.NoError(t, err)
	assert.Equal(t, "acme-corp-api", creds.ClientID)
	assert.Equal(t, "s3cr3t", creds.Secret)
}

func TestKeycloakCreatePublicClientSkipsSecret(t *testing.T) {
	t.Parallel()

	srv := adminServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/admin/realms/acme-corp/clients", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, true, body["publicClient"])
		w.WriteHeader(http.StatusCreated)
	})

	creds, err := newGateway(srv).CreateClient(context.Background(), "acme-corp", idp.Client{
		ClientID: "acme-corp-ui",
		Public:   true,
	})
	require.NoError(t, err)
	assert.Empty(t, creds.Secret)
}

func TestKeycloakRealmExists(t *testing.T) {
	t.Parallel()

	srv := adminServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/admin/realms/acme-corp" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})

	gw := newGateway(srv)
	exists, err := gw.RealmExists(context.Background(), "acme-corp")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = gw.RealmExists(context.Background(), "ghost")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestKeycloakGetUserCount(t *testing.T) {
	t.Parallel()

	srv := adminServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/admin/realms/acme-corp/users/count", r.URL.Path)
		_, _ = w.Write([]byte("42"))
	})

	count, err := newGateway(srv).GetUserCount(context.Background(), "acme-corp")
	require.NoError(t, err)
	assert.Equal(t, 42, count)
}

func TestKeycloakUnauthorized(t *testing.T) {
	t.Parallel()

	srv := adminServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	err := newGateway(srv).CreateRealm(context.Background(), "acme-corp", "Acme Corp")
	require.ErrorIs(t, err, idp.ErrInvalidCredentials)
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	reg := idp.NewRegistry()
	fake := idp.NewFake()
	reg.Register("keycloak", fake)

	gw, err := reg.Get("keycloak")
	require.NoError(t, err)
	assert.Same(t, idp.Gateway(fake), gw)

	_, err = reg.Get("okta")
	require.ErrorIs(t, err, idp.ErrProviderNotFound)
}
