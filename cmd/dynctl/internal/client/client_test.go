package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dynconn/connectors/base"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", "tok")
}

func TestClient_Create(t *testing.T) {
	info := base.NewConnInfo(base.Postgres, "pg", "pw", "pg-host", 5432, "dev")

	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var got base.ConnInfo
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, info, got)

		switch r.URL.Path {
		case "/api/v2/dyn/conn":
			_, _ = w.Write([]byte(`"New conn \"k-1\" succeeded"`))
		case "/api/v2/dyn/conn/keyed":
			assert.Equal(t, "reporting", r.URL.Query().Get("key"))
			_, _ = w.Write([]byte(`"New conn \"reporting\" succeeded"`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	msg, err := c.Create(context.Background(), "", info)
	require.NoError(t, err)
	assert.Equal(t, `New conn "k-1" succeeded`, msg)

	msg, err = c.Create(context.Background(), "reporting", info)
	require.NoError(t, err)
	assert.Equal(t, `New conn "reporting" succeeded`, msg)
}

func TestClient_Reads(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v2/dyn/conn/keys":
			_, _ = w.Write([]byte(`["a","b"]`))
		case "/api/v2/dyn/conn":
			_, _ = w.Write([]byte(`{"a":"postgres://pg:pw@h:5432/dev"}`))
		case "/api/v2/dyn/conn/list":
			_, _ = w.Write([]byte(`[{"driver":"Mysql","username":"u","password":"p","host":"h","port":3306,"database":"db"}]`))
		case "/api/v2/dyn/conn/a":
			_, _ = w.Write([]byte(`{"driver":"Postgres","username":"pg","password":"pw","host":"h","port":5432,"database":"dev"}`))
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	keys, err := c.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, keys)

	info, err := c.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, "postgres://pg:pw@h:5432/dev", info["a"])

	list, err := c.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, base.Mysql, list[0].Driver)

	one, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "h", one.Host)
}

func TestClient_Errors(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodDelete:
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`"nope"`))
		case http.MethodPut:
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"code":401,"message":"invalid token"}}`))
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("busy"))
		}
	})
	ctx := context.Background()

	_, err := c.Delete(ctx, "nope")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "nope", apiErr.Message)

	_, err = c.Update(ctx, "k", base.NewConnInfo(base.Postgres, "u", "p", "h", 5432, "d"))
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "invalid token", apiErr.Message)

	_, err = c.Keys(ctx)
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	assert.Equal(t, "busy", apiErr.Message)
}

func TestClient_Check(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/dyn/check_connection", r.URL.Path)
		_, _ = w.Write([]byte(`false`))
	})

	ok, err := c.Check(context.Background(), base.NewConnInfo(base.Mysql, "u", "p", "down", 3306, "db"))
	require.NoError(t, err)
	assert.False(t, ok)
}
