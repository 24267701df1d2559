package apiclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type user struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func TestDecode(t *testing.T) {
	value := map[string]any{"id": float64(7), "name": "ada"}

	u, err := Decode[user](value)
	require.NoError(t, err)
	assert.Equal(t, user{ID: 7, Name: "ada"}, u)

	_, err = Decode[[]user](value)
	assert.Error(t, err)

	empty, err := Decode[*user](nil)
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestGetJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, []user{{ID: 1, Name: "ada"}, {ID: 2, Name: "grace"}})
	}))
	defer server.Close()

	d := New(WithBaseURL(server.URL))
	defer d.Close()

	var users []user
	require.NoError(t, d.GetJSON(context.Background(), "/users", &users))
	assert.Equal(t, []user{{ID: 1, Name: "ada"}, {ID: 2, Name: "grace"}}, users)
}

func TestPostJSONWithoutOutput(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	d := New(WithBaseURL(server.URL))
	defer d.Close()

	require.NoError(t, d.PostJSON(context.Background(), "/jobs", map[string]string{"kind": "sync"}, nil))
}
