package bitrix

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/rest/1/secret", 1, nil), srv
}

func TestCallAppendsJSONSuffix(t *testing.T) {
	var gotPath string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{"result":[]}`))
	})

	var out ListResponse[idRow]
	require.NoError(t, c.Call(context.Background(), "crm.contact.list", nil, &out))
	assert.Equal(t, "/rest/1/secret/crm.contact.list.json", gotPath)
}

func TestCallAPIError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"ERROR_CORE","error_description":"Invalid filter"}`))
	})

	err := c.Call(context.Background(), "crm.contact.list", nil, nil)
	require.Error(t, err)

	var apiErr APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "ERROR_CORE", apiErr.Errors)
}

func TestFindContactIDByPhone(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Filter map[string]any `json:"filter"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "+998901234567", req.Filter["PHONE"])
			_, _ = w.Write([]byte(`{"result":[{"ID":"77"},{"ID":"78"}],"total":2}`))
		})

		id, found, err := c.FindContactIDByPhone(context.Background(), "+998901234567")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, int64(77), id)
	})

	t.Run("not found", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"result":[],"total":0}`))
		})

		_, found, err := c.FindContactIDByPhone(context.Background(), "+998900000000")
		require.NoError(t, err)
		assert.False(t, found)
	})
}

func TestAddContactResultShapes(t *testing.T) {
	for name, body := range map[string]string{
		"numeric": `{"result":105}`,
		"quoted":  `{"result":"105"}`,
	} {
		t.Run(name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			})

			id, err := c.AddContact(context.Background(), map[string]any{"NAME": "Ali"})
			require.NoError(t, err)
			assert.Equal(t, int64(105), id)
		})
	}
}

func TestAddDealSendsFields(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Fields map[string]any `json:"fields"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.EqualValues(t, 77, req.Fields["CONTACT_ID"])
		_, _ = w.Write([]byte(`{"result":9001}`))
	})

	id, err := c.AddDeal(context.Background(), map[string]any{"CONTACT_ID": 77})
	require.NoError(t, err)
	assert.Equal(t, int64(9001), id)
}

func TestIsTransient(t *testing.T) {
	assert.True(t, isTransient(context.DeadlineExceeded))
	assert.True(t, isTransient(errors.New("dial tcp: connection refused")))
	assert.False(t, isTransient(APIError{Errors: "ERROR_CORE"}))
	assert.False(t, isTransient(errors.New("unmarshal response")))
}

func TestCallWithRetryStopsOnPermanentError(t *testing.T) {
	calls := 0
	err := callWithRetry(context.Background(), 3, func(context.Context) error {
		calls++
		return fmt.Errorf("wrapped: %w", APIError{Errors: "NOT_FOUND"})
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
