package strava

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActivitiesStopsAtOlderActivity(t *testing.T) {
	since := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	pages := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "/athlete/activities", r.URL.Path)
		assert.Equal(t, "200", r.URL.Query().Get("per_page"))
		pages++

		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		batch := make([]Activity, 0, perPage)
		if page == 1 {
			for i := 0; i < perPage; i++ {
				batch = append(batch, Activity{ID: int64(i + 1), StartDate: since.Add(48 * time.Hour)})
			}
		} else {
			batch = append(batch,
				Activity{ID: 1000, StartDate: since.Add(time.Hour)},
				Activity{ID: 1001, StartDate: since.Add(-time.Hour)},
				Activity{ID: 1002, StartDate: since.Add(2 * time.Hour)},
			)
		}
		_ = json.NewEncoder(w).Encode(batch)
	}))
	defer srv.Close()

	c := NewClient(Config{ClientID: "1", ClientSecret: "s", BaseURL: srv.URL, Timeout: time.Second})
	acts, err := c.Activities(context.Background(), "tok", since)
	require.NoError(t, err)
	assert.Len(t, acts, perPage+1)
	assert.Equal(t, int64(1000), acts[len(acts)-1].ID)
	assert.Equal(t, 2, pages)
}

func TestActivitiesFailsOnBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	_, err := c.Activities(context.Background(), "tok", time.Now())
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
}

func TestExchangeReadsAthlete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "code-1", r.PostForm.Get("code"))
		assert.Equal(t, "client", r.PostForm.Get("client_id"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"a","refresh_token":"r","token_type":"Bearer","expires_in":21600,"athlete":{"id":42}}`)
	}))
	defer srv.Close()

	c := NewClient(Config{ClientID: "client", ClientSecret: "secret", TokenURL: srv.URL})
	tok, err := c.Exchange(context.Background(), "code-1")
	require.NoError(t, err)
	assert.Equal(t, "a", tok.AccessToken)
	assert.Equal(t, "r", tok.RefreshToken)
	assert.Equal(t, int64(42), tok.AthleteID)
	assert.True(t, tok.Expiry.After(time.Now()))
	assert.Equal(t, "https://www.strava.com/athletes/42", ProfileURL(tok.AthleteID))
}

func TestRefresh(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "old", r.PostForm.Get("refresh_token"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"new","refresh_token":"new-r","token_type":"Bearer","expires_in":3600}`)
	}))
	defer srv.Close()

	c := NewClient(Config{ClientID: "client", ClientSecret: "secret", TokenURL: srv.URL})
	tok, err := c.Refresh(context.Background(), "old")
	require.NoError(t, err)
	assert.Equal(t, "new", tok.AccessToken)
	assert.Equal(t, "new-r", tok.RefreshToken)
}

func TestAthlete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/athlete", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"id":7,"username":"rider7","firstname":"Ales"}`)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	a, err := c.Athlete(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, int64(7), a.ID)
	assert.Equal(t, "rider7", a.Username)
}
