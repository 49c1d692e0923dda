package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStandardClient_Wraps(t *testing.T) {
	customClient := &http.Client{}
	client := NewStandardClient(customClient)

	if client.Client != customClient {
		t.Error("expected custom client to be wrapped")
	}
	if NewStandardClient(nil).Client != http.DefaultClient {
		t.Error("expected nil to fall back to http.DefaultClient")
	}
}

func TestDoJSON_RoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("got method %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("got content type %q", ct)
		}
		var in map[string]int
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			t.Errorf("decode: %v", err)
		}
		WriteJSONOK(w, map[string]int{"doubled": in["n"] * 2})
	}))
	defer srv.Close()

	var out struct {
		Doubled int `json:"doubled"`
	}
	err := DoJSON(context.Background(), NewStandardClient(srv.Client()), http.MethodPost, srv.URL, map[string]int{"n": 21}, &out)
	require.NoError(t, err)
	assert.Equal(t, 42, out.Doubled)
}

func TestDoJSON_StatusError(t *testing.T) {
	client := NewScriptedClient(Reply{Status: http.StatusServiceUnavailable, Body: "model loading\n"})

	err := DoJSON(context.Background(), client, http.MethodGet, "http://model/v1/models/wheel", nil, nil)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusServiceUnavailable, se.StatusCode)
	assert.Equal(t, "model loading", se.Body)
	assert.Contains(t, err.Error(), "GET http://model/v1/models/wheel")
}

func TestDoJSON_DecodeError(t *testing.T) {
	client := NewScriptedClient(Reply{Status: http.StatusOK, Body: "{not json"})

	var out map[string]interface{}
	err := DoJSON(context.Background(), client, http.MethodGet, "http://model/", nil, &out)
	assert.Error(t, err)
}

func TestScriptedClient_RecordsCalls(t *testing.T) {
	client := NewScriptedClient(Reply{Status: http.StatusOK, Body: `{}`})

	err := DoJSON(context.Background(), client, http.MethodPost, "http://model/predict", map[string]string{"k": "v"}, nil)
	require.NoError(t, err)
	calls := client.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, http.MethodPost, calls[0].Method)
	assert.Equal(t, "http://model/predict", calls[0].URL)
	assert.JSONEq(t, `{"k":"v"}`, string(calls[0].Body))
	assert.Zero(t, client.Pending())
}

func TestScriptedClient_Errors(t *testing.T) {
	boom := errors.New("connection refused")
	client := NewScriptedClient(Reply{Err: boom})

	err := DoJSON(context.Background(), client, http.MethodGet, "http://model/", nil, nil)
	assert.ErrorIs(t, err, boom)

	client.Enqueue(Reply{Status: http.StatusOK})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = DoJSON(ctx, client, http.MethodGet, "http://model/", nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, client.Calls(), 2)
}

func TestScriptedClient_EmptyQueue(t *testing.T) {
	client := NewScriptedClient()
	require.NoError(t, DoJSON(context.Background(), client, http.MethodGet, "http://model/", nil, nil))
}

func TestScriptedClient_Handler(t *testing.T) {
	client := NewScriptedClient(Reply{Status: http.StatusOK, Body: `{"path":"queued"}`})
	client.Handler = func(w http.ResponseWriter, req *http.Request) {
		WriteJSON(w, http.StatusAccepted, map[string]string{"path": req.URL.Path})
	}

	var out map[string]string
	require.NoError(t, DoJSON(context.Background(), client, http.MethodGet, "http://model/x", nil, &out))
	assert.Equal(t, "queued", out["path"])
	require.NoError(t, DoJSON(context.Background(), client, http.MethodGet, "http://model/y", nil, &out))
	assert.Equal(t, "/y", out["path"])
}
