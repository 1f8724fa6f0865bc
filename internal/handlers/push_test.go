package handlers

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldsync/internal/models"
	"fieldsync/internal/push"
)

var player7Score = push.TopicFor(models.Locator{Collection: "game", RecordType: "Player", RecordID: "7"}, "score")

func openStream(t *testing.T, ctx context.Context, url string) *http.Response {
	t.Helper()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	require.NoError(t, err)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestPushHandler_DeliversWrites(t *testing.T) {
	stack := newTestStack(t, nil)
	server := httptest.NewServer(stack.router)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	resp := openStream(t, ctx, server.URL+"/api/sse/game/Player/7/score/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	assert.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))

	require.Eventually(t, func() bool {
		return stack.broker.SubscriberCount(player7Score) == 1
	}, 2*time.Second, 10*time.Millisecond)

	postResp, err := http.Post(server.URL+"/api/game/Player/7/score/", "application/json", strings.NewReader(`{"score": 15}`))
	require.NoError(t, err)
	postResp.Body.Close()
	require.Equal(t, http.StatusOK, postResp.StatusCode)

	events := push.NewEventReader(resp.Body)
	ev, err := events.Next()
	require.NoError(t, err)
	assert.Equal(t, "15", ev.Data)
	_, err = ulid.ParseStrict(ev.ID)
	assert.NoError(t, err)

	cancel()
	require.Eventually(t, func() bool {
		return stack.broker.SubscriberCount(player7Score) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPushHandler_IgnoresOtherFields(t *testing.T) {
	stack := newTestStack(t, nil)
	server := httptest.NewServer(stack.router)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	resp := openStream(t, ctx, server.URL+"/api/sse/game/Player/7/score")
	require.Eventually(t, func() bool {
		return stack.broker.SubscriberCount(player7Score) == 1
	}, 2*time.Second, 10*time.Millisecond)

	for _, body := range []struct{ path, json string }{
		{"/api/game/Player/7/level/", `{"level": 3}`},
		{"/api/game/Player/7/score/", `{"score": 20}`},
	} {
		r, err := http.Post(server.URL+body.path, "application/json", strings.NewReader(body.json))
		require.NoError(t, err)
		r.Body.Close()
	}

	ev, err := push.NewEventReader(resp.Body).Next()
	require.NoError(t, err)
	assert.Equal(t, "20", ev.Data)
}

func TestPushHandler_PaddedIDReachesSubscribers(t *testing.T) {
	stack := newTestStack(t, nil)
	server := httptest.NewServer(stack.router)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	resp := openStream(t, ctx, server.URL+"/api/sse/game/Player/7/score/")
	require.Eventually(t, func() bool {
		return stack.broker.SubscriberCount(player7Score) == 1
	}, 2*time.Second, 10*time.Millisecond)

	r, err := http.Post(server.URL+"/api/game/Player/07/score/", "application/json", strings.NewReader(`{"score": 33}`))
	require.NoError(t, err)
	r.Body.Close()
	require.Equal(t, http.StatusOK, r.StatusCode)

	ev, err := push.NewEventReader(resp.Body).Next()
	require.NoError(t, err)
	assert.Equal(t, "33", ev.Data)
}

func TestPushHandler_SendsKeepalives(t *testing.T) {
	stack := newTestStack(t, nil)
	server := httptest.NewServer(stack.router)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp := openStream(t, ctx, server.URL+"/api/sse/game/Player/7/score/")
	scanner := bufio.NewScanner(resp.Body)

	var comments []string
	for scanner.Scan() && len(comments) < 2 {
		if line := scanner.Text(); strings.HasPrefix(line, ":") {
			comments = append(comments, line)
		}
	}
	assert.Equal(t, []string{": subscribed", ": keepalive"}, comments)
}

func TestPushHandler_BrokerUnavailable(t *testing.T) {
	stack := newTestStack(t, nil)
	require.NoError(t, stack.broker.Close())

	rec := httptest.NewRecorder()
	stack.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sse/game/Player/7/score/", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
