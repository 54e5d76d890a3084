package app

import (
	"context"
	"encoding/json"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"gopkg.in/yaml.v3"

	"github.com/praekelt/helpdesk/pkg/config"
	"github.com/praekelt/helpdesk/pkg/models"
)

const testConfig = `
gateway:
  base_url: http://gateway.invalid
  token: secret
orgs:
  - id: 1
    name: UNICEF
    banner_text: Welcome
    suspend_groups: [G-001]
  - id: 2
    name: Nyaruka
    api_token: other
users:
  - org: 1
    name: Kidus
    email: kidus@unicef.org
    role: admin
  - org: 1
    name: Evan
    email: evan@moh.org
    role: manager
    partner: MOH
  - org: 1
    name: Rick
    email: rick@moh.org
    role: analyst
    partner: moh
`

func newTestApp(t *testing.T) *App {
	t.Helper()
	var cfg config.Config
	require.NoError(t, yaml.Unmarshal([]byte(testConfig), &cfg))
	eff := config.EffectiveConfigResult{Config: &cfg, Addr: "127.0.0.1:0", DBPath: t.TempDir(), Source: "test"}
	require.NoError(t, config.ValidateConfig(&eff))

	a, err := New(context.Background(), eff, "test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.close() })
	return a
}

func TestSeed(t *testing.T) {
	a := newTestApp(t)

	org, err := a.store.GetOrg(1)
	require.NoError(t, err)
	assert.Equal(t, "UNICEF", org.Name)
	assert.Equal(t, "Welcome", org.BannerText)
	assert.Equal(t, []string{"G-001"}, org.SuspendGroups)

	users, err := a.store.ListUsers(1)
	require.NoError(t, err)
	require.Len(t, users, 3)

	partners, err := a.store.ListPartners(1)
	require.NoError(t, err)
	require.Len(t, partners, 1, "partner names match case-insensitively")
	for _, u := range users {
		if u.Role == models.RoleAdmin {
			assert.Zero(t, u.PartnerID)
		} else {
			assert.Equal(t, partners[0].ID, u.PartnerID)
		}
	}

	// seeding again adds nobody
	require.NoError(t, a.seed(a.eff.Config))
	users, err = a.store.ListUsers(1)
	require.NoError(t, err)
	assert.Len(t, users, 3)
}

func request(h fasthttp.RequestHandler, method, uri string, header ...string) *fasthttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(uri)
	for i := 0; i+1 < len(header); i += 2 {
		ctx.Request.Header.Set(header[i], header[i+1])
	}
	h(ctx)
	return ctx
}

func TestHandler(t *testing.T) {
	a := newTestApp(t)
	h := a.Handler(context.Background())

	ctx := request(h, "GET", "/healthz")
	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())

	ctx = request(h, "GET", "/readyz")
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	var body map[string]string
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &body))
	assert.Equal(t, "test", body["version"])

	ctx = request(h, "GET", "/api/v1/org")
	assert.Equal(t, fasthttp.StatusUnauthorized, ctx.Response.StatusCode())

	users, err := a.store.ListUsers(1)
	require.NoError(t, err)
	require.NotEmpty(t, users)
	ctx = request(h, "GET", "/api/v1/org", "X-User-ID", strconv.FormatInt(users[0].ID, 10))
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode(), string(ctx.Response.Body()))

	ctx = request(h, "GET", "/nowhere")
	assert.Equal(t, fasthttp.StatusNotFound, ctx.Response.StatusCode())
}

func TestShutdownClosesStore(t *testing.T) {
	a := newTestApp(t)
	require.NoError(t, a.Shutdown(context.Background()))
	assert.False(t, a.store.Ready())
	assert.Equal(t, "stopped", a.State())

	h := a.Handler(context.Background())
	ctx := request(h, "GET", "/readyz")
	assert.Equal(t, fasthttp.StatusServiceUnavailable, ctx.Response.StatusCode())
}
