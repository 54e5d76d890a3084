package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

func newTestClient(t *testing.T, handler fasthttp.RequestHandler) *Client {
	t.Helper()
	ln := fasthttputil.NewInmemoryListener()
	go func() { _ = fasthttp.Serve(ln, handler) }()
	t.Cleanup(func() { _ = ln.Close() })
	return NewClient(ClientOptions{
		BaseURL: "http://gateway.test/",
		Token:   "abc123",
		Timeout: 5 * time.Second,
		RPS:     1000,
		Burst:   1000,
		Dial:    func(string) (net.Conn, error) { return ln.Dial() },
	})
}

func TestGetMessagesWalksPages(t *testing.T) {
	var seen []string
	c := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
		seen = append(seen, string(ctx.QueryArgs().Peek("page")))
		assert.Equal(t, "/api/v1/messages.json", string(ctx.Path()))
		assert.Equal(t, "Token abc123", string(ctx.Request.Header.Peek("Authorization")))
		assert.Equal(t, "C-001", string(ctx.QueryArgs().Peek("contact")))
		assert.Equal(t, "0", string(ctx.QueryArgs().Peek("archived")))
		assert.Equal(t, "2014-01-01T00:00:00.000000Z", string(ctx.QueryArgs().Peek("after")))

		ctx.SetContentType("application/json")
		if string(ctx.QueryArgs().Peek("page")) == "1" {
			ctx.SetBodyString(`{"count":2,"next":"http://gateway.test/api/v1/messages.json?page=2","results":[{"id":101,"contact":"C-001","direction":"I","labels":["AIDS"],"text":"Hello","created_on":"2014-01-02T03:04:05.123456Z"}]}`)
			return
		}
		ctx.SetBodyString(`{"count":2,"next":null,"results":[{"id":102,"contact":"C-001","direction":"I","labels":[],"text":"Bye","created_on":"2014-01-03T00:00:00Z"}]}`)
	})

	msgs, err := c.GetMessages(context.Background(), MessageQuery{
		Contacts: []string{"C-001"},
		Archived: Bool(false),
		After:    time.Date(2014, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, []string{"1", "2"}, seen)
	assert.Equal(t, int64(101), msgs[0].ID)
	assert.True(t, msgs[0].HasLabel("aids"))
	assert.Equal(t, 123456000, msgs[0].CreatedOn.Nanosecond())
}

func TestGetMessagesSinglePage(t *testing.T) {
	c := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
		assert.Equal(t, "3", string(ctx.QueryArgs().Peek("page")))
		ctx.SetBodyString(`{"count":1,"next":"x","results":[{"id":5,"contact":"C-002","created_on":"2014-01-03T00:00:00Z"}]}`)
	})
	pager := &Pager{Page: 3}
	msgs, err := c.GetMessages(context.Background(), MessageQuery{Pager: pager})
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
	assert.True(t, pager.HasMore)
}

func TestActionsSendJSONBodies(t *testing.T) {
	var bodies []map[string]any
	c := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
		assert.Equal(t, fasthttp.MethodPost, string(ctx.Method()))
		var m map[string]any
		assert.NoError(t, json.Unmarshal(ctx.PostBody(), &m))
		m["path"] = string(ctx.Path())
		bodies = append(bodies, m)
	})
	ctx := context.Background()

	require.NoError(t, c.ArchiveMessages(ctx, []int64{1, 2}))
	require.NoError(t, c.LabelMessages(ctx, []int64{3}, LabelRef{UUID: "L-001"}))
	require.NoError(t, c.RemoveContacts(ctx, []string{"C-001"}, "G-001"))
	require.NoError(t, c.ExpireContacts(ctx, []string{"C-001"}))
	// empty id lists never reach the gateway
	require.NoError(t, c.ArchiveMessages(ctx, nil))

	require.Len(t, bodies, 4)
	assert.Equal(t, "/api/v1/message_actions.json", bodies[0]["path"])
	assert.Equal(t, "archive", bodies[0]["action"])
	assert.Equal(t, "L-001", bodies[1]["label_uuid"])
	assert.Equal(t, "/api/v1/contact_actions.json", bodies[2]["path"])
	assert.Equal(t, "G-001", bodies[2]["group_uuid"])
	assert.Equal(t, "expire", bodies[3]["action"])
}

func TestErrorsAreTyped(t *testing.T) {
	c := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
		switch string(ctx.Path()) {
		case "/api/v1/contacts.json":
			ctx.SetBodyString(`{"count":0,"next":null,"results":[]}`)
		case "/api/v1/broadcasts.json":
			ctx.SetStatusCode(fasthttp.StatusBadRequest)
			ctx.SetBodyString(`{"text":["required"]}`)
		default:
			ctx.SetStatusCode(fasthttp.StatusNotFound)
		}
	})
	ctx := context.Background()

	_, err := c.GetContact(ctx, "C-404")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = c.GetLabels(ctx)
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = c.CreateBroadcast(ctx, "", nil, nil)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, fasthttp.StatusBadRequest, se.Status)
}

func TestPoolUsesOrgToken(t *testing.T) {
	p := NewPool(ClientOptions{BaseURL: "http://gateway.test"}, map[int64]string{1: "org1-token"})

	g, err := p.ForOrg(1)
	require.NoError(t, err)
	assert.Equal(t, "org1-token", g.(*Client).token)

	again, _ := p.ForOrg(1)
	assert.Same(t, g, again)

	_, err = p.ForOrg(2)
	assert.Error(t, err)
}
