package http

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

type payload struct {
	Rolls []int `json:"rolls"`
	Total int   `json:"total"`
}

func TestPostJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, clientAgent, r.Header.Get("User-Agent"))

		var in payload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		in.Total = len(in.Rolls)
		require.NoError(t, json.NewEncoder(w).Encode(in))
	}))
	defer srv.Close()

	var out payload
	err := PostJSON(context.Background(), srv.URL, payload{Rolls: []int{1, 2, 3}}, &out)
	require.NoError(t, err)
	assert.Equal(t, 3, out.Total)
}

func TestGetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Write([]byte(`{"total": 42}`))
	}))
	defer srv.Close()

	var out payload
	require.NoError(t, GetJSON(context.Background(), srv.URL, &out))
	assert.Equal(t, 42, out.Total)
}

func TestPostJSON_ErrorStatusStillDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"total": -1}`))
	}))
	defer srv.Close()

	var out payload
	err := PostJSON(context.Background(), srv.URL, payload{}, &out)
	require.Error(t, err)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadRequest, se.StatusCode)
	assert.Equal(t, -1, out.Total)
}

func TestGetJSON_BadContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	var out payload
	assert.Error(t, GetJSON(context.Background(), srv.URL, &out))
}

func TestGetJSON_Unreachable(t *testing.T) {
	var out payload
	assert.Error(t, GetJSON(context.Background(), "http://127.0.0.1:1", &out))
}
