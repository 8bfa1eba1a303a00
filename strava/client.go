// Package strava is a thin client for the parts of the Strava API the sync
// needs: OAuth token exchange and refresh, and the athlete activity list.
// Every call is a single attempt bounded by the client timeout.
package strava

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const (
	defaultBaseURL = "https://www.strava.com/api/v3"
	perPage        = 200
)

var ErrUnexpectedStatus = errors.New("strava: unexpected response status")

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Timeout      time.Duration

	// Overrides for tests.
	BaseURL  string
	TokenURL string
}

type Token struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
	AthleteID    int64
}

type Activity struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	Distance           float64   `json:"distance"`
	MovingTime         int64     `json:"moving_time"`
	ElapsedTime        int64     `json:"elapsed_time"`
	TotalElevationGain float64   `json:"total_elevation_gain"`
	Type               string    `json:"type"`
	SportType          string    `json:"sport_type"`
	StartDate          time.Time `json:"start_date"`
}

type Athlete struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
}

type Client struct {
	oauth      *oauth2.Config
	httpClient *http.Client
	baseURL    string
}

func NewClient(cfg Config) *Client {
	endpoint := endpoints.Strava
	endpoint.AuthStyle = oauth2.AuthStyleInParams
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       []string{"read,activity:read_all"},
		},
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
	}
}

func (c *Client) AuthCodeURL(state string) string {
	return c.oauth.AuthCodeURL(state, oauth2.SetAuthURLParam("approval_prompt", "auto"))
}

func (c *Client) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

func (c *Client) Exchange(ctx context.Context, code string) (*Token, error) {
	tok, err := c.oauth.Exchange(c.oauthContext(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("strava token exchange: %w", err)
	}
	return fromOAuth(tok), nil
}

func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Token, error) {
	src := c.oauth.TokenSource(c.oauthContext(ctx), &oauth2.Token{
		RefreshToken: refreshToken,
		Expiry:       time.Unix(1, 0),
	})
	tok, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("strava token refresh: %w", err)
	}
	return fromOAuth(tok), nil
}

func fromOAuth(tok *oauth2.Token) *Token {
	out := &Token{AccessToken: tok.AccessToken, RefreshToken: tok.RefreshToken, Expiry: tok.Expiry}
	if athlete, ok := tok.Extra("athlete").(map[string]interface{}); ok {
		if id, ok := athlete["id"].(float64); ok {
			out.AthleteID = int64(id)
		}
	}
	return out
}

// ProfileURL is the public athlete page.
func ProfileURL(athleteID int64) string {
	return "https://www.strava.com/athletes/" + strconv.FormatInt(athleteID, 10)
}

// Activities pages through the athlete's activities, newest first, and
// stops at the first one that started before since.
func (c *Client) Activities(ctx context.Context, accessToken string, since time.Time) ([]Activity, error) {
	out := make([]Activity, 0)
	for page := 1; ; page++ {
		batch, err := c.activityPage(ctx, accessToken, page)
		if err != nil {
			return nil, err
		}
		for _, a := range batch {
			if a.StartDate.Before(since) {
				return out, nil
			}
			out = append(out, a)
		}
		if len(batch) < perPage {
			return out, nil
		}
	}
}

func (c *Client) activityPage(ctx context.Context, accessToken string, page int) ([]Activity, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))

	var batch []Activity
	if err := c.getJSON(ctx, accessToken, "/athlete/activities?"+q.Encode(), &batch); err != nil {
		return nil, fmt.Errorf("strava activities page %d: %w", page, err)
	}
	return batch, nil
}

// Athlete returns the authenticated athlete.
func (c *Client) Athlete(ctx context.Context, accessToken string) (*Athlete, error) {
	var a Athlete
	if err := c.getJSON(ctx, accessToken, "/athlete", &a); err != nil {
		return nil, fmt.Errorf("strava athlete: %w", err)
	}
	return &a, nil
}

func (c *Client) getJSON(ctx context.Context, accessToken, path string, dst interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
