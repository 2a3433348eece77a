package coc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient("test-token")
	client.SetBaseURL(server.URL)
	client.minInterval = 0
	return client
}

func TestPlayerFetchEscapesTag(t *testing.T) {
	var gotPath, gotAuth string
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"name": "Chief", "tag": "#ABC123", "townHallLevel": 14, "trophies": 5000}`))
	})

	player, err := client.Player(context.Background(), "#ABC123")
	require.NoError(t, err)

	assert.Equal(t, "/players/%23ABC123", gotPath)
	assert.Equal(t, "Bearer test-token", gotAuth)
	assert.Equal(t, "Chief", player.Name)
	assert.Equal(t, 14, player.TownHallLevel)
}

func TestPlayerNotFound(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.Player(context.Background(), "#NOPE")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCurrentWarPrivateLog(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := client.CurrentWar(context.Background(), "#ABC")
	assert.ErrorIs(t, err, ErrPrivateWarLog)
}

func TestCurrentWarParsesTimestamps(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"state": "inWar",
			"teamSize": 15,
			"startTime": "20260212T091502.000Z",
			"endTime": "20260213T091502.000Z",
			"clan": {"name": "Home", "tag": "#ABC", "stars": 30, "destructionPercentage": 88.5},
			"opponent": {"name": "Away", "tag": "#DEF", "stars": 28, "destructionPercentage": 90.1}
		}`))
	})

	war, err := client.CurrentWar(context.Background(), "#ABC")
	require.NoError(t, err)

	assert.Equal(t, WarStateInWar, war.State)
	assert.Equal(t, time.Date(2026, 2, 12, 9, 15, 2, 0, time.UTC), war.StartTime.Time)
	assert.Equal(t, "won", war.Result())
}

func TestRateLimited(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.Clan(context.Background(), "#ABC")
	assert.ErrorIs(t, err, ErrRateLimited)
}
