// Package integration contains integration tests for the NightOwl relay.
//
// These tests verify that the registry, relay, store, and HTTP boundary work
// together by exercising a fully wired server over real WebSocket connections.
package integration

import (
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nightowl-chat/server/internal/server"
	"github.com/nightowl-chat/server/test/testhelpers"
)

func Test_Health_Endpoint(t *testing.T) {
	req := require.New(t)
	relay := testhelpers.StartRelay(t, nil)

	resp := testhelpers.MakeRequest(t, http.MethodGet, relay.URL()+"/")
	defer resp.Body.Close()

	req.Equal(http.StatusOK, resp.StatusCode)
	req.Equal("text/plain", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	req.NoError(err)
	req.Contains(string(body), "NightOwl relay is running")
}

func Test_History_Empty_Store(t *testing.T) {
	req := require.New(t)
	relay := testhelpers.StartRelay(t, nil)

	resp := testhelpers.MakeRequest(t, http.MethodGet, relay.URL()+"/history")
	defer resp.Body.Close()

	req.Equal(http.StatusOK, resp.StatusCode)
	req.Equal("application/json", resp.Header.Get("Content-Type"))

	var messages []server.Message
	req.NoError(json.NewDecoder(resp.Body).Decode(&messages))
	req.Empty(messages)
}

func Test_History_Rejects_Invalid_Limit(t *testing.T) {
	relay := testhelpers.StartRelay(t, nil)

	for _, limit := range []string{"0", "-3", "many"} {
		resp := testhelpers.MakeRequest(t, http.MethodGet, relay.URL()+"/history?limit="+limit)
		resp.Body.Close()
		require.Equalf(t, http.StatusBadRequest, resp.StatusCode, "limit=%s", limit)
	}
}

func Test_WebSocket_Requires_Identity(t *testing.T) {
	relay := testhelpers.StartRelay(t, nil)

	_, err := testhelpers.ConnectWebSocket(relay.WebSocketURL(""))
	require.Error(t, err, "Connecting without an identity should fail")
}
