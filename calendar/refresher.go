package calendar

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/blackt666/immoxx--sub004/models"
)

var ErrNoRefreshToken = errors.New("connection has no refresh token")

// Refresher exchanges a connection's refresh token for a new access token.
type Refresher interface {
	Refresh(ctx context.Context, conn models.CalendarConnection) (*oauth2.Token, error)
}

type GoogleRefresher struct {
	config *oauth2.Config
}

func NewGoogleRefresher(clientID, clientSecret string) *GoogleRefresher {
	return NewOAuthRefresher(&oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{"https://www.googleapis.com/auth/calendar"},
	})
}

// NewOAuthRefresher works against any OAuth2 token endpoint.
func NewOAuthRefresher(cfg *oauth2.Config) *GoogleRefresher {
	return &GoogleRefresher{config: cfg}
}

func (r *GoogleRefresher) Refresh(ctx context.Context, conn models.CalendarConnection) (*oauth2.Token, error) {
	if conn.RefreshToken == "" {
		return nil, ErrNoRefreshToken
	}

	// An empty access token forces the source to hit the token endpoint
	src := r.config.TokenSource(ctx, &oauth2.Token{RefreshToken: conn.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("refresh token for connection %d: %w", conn.ID, err)
	}
	return tok, nil
}
