package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldsync/internal/models"
	"fieldsync/internal/push"
)

var player7 = models.Locator{Collection: "game", RecordType: "Player", RecordID: "7"}

func TestClient_URLs(t *testing.T) {
	c := NewClient("http://localhost:8080/api/")

	assert.Equal(t, "http://localhost:8080/api/game/Player/7/score", c.FieldURL(player7, "score"))
	assert.Equal(t, "http://localhost:8080/api/sse/game/Player/7/score/", c.SubscribeURL(player7, "score"))
	assert.Equal(t, "http://localhost:8080/api/notes/Note/1/a%20b",
		c.FieldURL(models.Locator{Collection: "notes", RecordType: "Note", RecordID: "1"}, "a b"))
}

func TestClient_ReadField(t *testing.T) {
	var gotAuth, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"score": 10}`)
	}))
	defer server.Close()

	c := NewClient(server.URL+"/api", WithToken("abc"))
	value, err := c.ReadField(context.Background(), player7, "score")
	require.NoError(t, err)

	assert.Equal(t, json.Number("10"), value)
	assert.Equal(t, "Bearer abc", gotAuth)
	assert.Equal(t, "/api/game/Player/7/score", gotPath)
}

func TestClient_ReadField_NoTokenNoHeader(t *testing.T) {
	var hadHeader bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hadHeader = r.Header["Authorization"]
		fmt.Fprint(w, `{"name": "Ada"}`)
	}))
	defer server.Close()

	value, err := NewClient(server.URL).ReadField(context.Background(), player7, "name")
	require.NoError(t, err)
	assert.Equal(t, "Ada", value)
	assert.False(t, hadHeader)
}

func TestClient_ReadField_Errors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/game/Player/404/score":
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"error": "Object not found"}`)
		case "/game/Player/500/score":
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, "boom")
		default:
			fmt.Fprint(w, `{"other": 1}`)
		}
	}))
	defer server.Close()

	c := NewClient(server.URL)

	_, err := c.ReadField(context.Background(), models.Locator{Collection: "game", RecordType: "Player", RecordID: "404"}, "score")
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "Object not found", apiErr.Message)
	assert.Equal(t, server.URL+"/game/Player/404/score", apiErr.URL)

	_, err = c.ReadField(context.Background(), models.Locator{Collection: "game", RecordType: "Player", RecordID: "500"}, "score")
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.Equal(t, "boom", apiErr.Message)

	_, err = c.ReadField(context.Background(), player7, "score")
	assert.Error(t, err)
}

func TestClient_WriteField(t *testing.T) {
	var gotMethod, gotPath string
	var gotBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		fmt.Fprint(w, `{"score": 15}`)
	}))
	defer server.Close()

	value, err := NewClient(server.URL+"/api").WriteField(context.Background(), player7, "score", "15")
	require.NoError(t, err)

	assert.Equal(t, json.Number("15"), value)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/api/game/Player/7/score/", gotPath)
	assert.Equal(t, map[string]interface{}{"score": "15"}, gotBody)
}

func TestClient_WatchField(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sse/game/Player/7/score/", r.URL.Path)
		w.Header().Set("Content-Type", "text/event-stream")
		ew := push.NewEventWriter(w, func() error {
			w.(http.Flusher).Flush()
			return nil
		})
		_ = ew.WriteComment("subscribed")
		_ = ew.WriteEvent(push.Event{ID: "01", Data: "15"})
		_ = ew.WriteEvent(push.Event{ID: "02", Data: "16"})
	}))
	defer server.Close()

	var got []push.Message
	err := NewClient(server.URL).WatchField(context.Background(), player7, "score", func(msg push.Message) error {
		got = append(got, msg)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []push.Message{{ID: "01", Value: "15"}, {ID: "02", Value: "16"}}, got)
}

func TestClient_WatchField_StopsOnCallbackError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ew := push.NewEventWriter(w, func() error {
			w.(http.Flusher).Flush()
			return nil
		})
		_ = ew.WriteEvent(push.Event{Data: "15"})
		<-r.Context().Done()
	}))
	defer server.Close()

	stop := errors.New("stop")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := NewClient(server.URL).WatchField(ctx, player7, "score", func(push.Message) error {
		return stop
	})
	assert.ErrorIs(t, err, stop)
}

func TestClient_WatchField_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	err := NewClient(server.URL).WatchField(context.Background(), player7, "score", func(push.Message) error { return nil })
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
}
