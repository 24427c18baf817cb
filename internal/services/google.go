package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/mtahub/backend/internal/config"
	"github.com/mtahub/backend/pkg/logger"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

var ErrGoogleDisabled = errors.New("google sign-in is not enabled")

// GoogleProfile is the subset of the userinfo response the portal needs to
// create or update an account.
type GoogleProfile struct {
	Subject   string
	Email     string
	Name      string
	AvatarURL string
}

// GoogleAuthService exchanges an OAuth authorization code for the user's
// Google profile. The popup flow and redirect handling live in the frontend;
// the API only ever sees the code.
type GoogleAuthService struct {
	cfg config.GoogleConfig

	// userinfoURL is overridable in tests.
	userinfoURL string
}

func NewGoogleAuthService(cfg config.GoogleConfig) *GoogleAuthService {
	return &GoogleAuthService{
		cfg:         cfg,
		userinfoURL: "https://www.googleapis.com/oauth2/v2/userinfo",
	}
}

func (s *GoogleAuthService) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     s.cfg.ClientID,
		ClientSecret: s.cfg.ClientSecret,
		RedirectURL:  s.cfg.RedirectURL,
		Scopes:       []string{"openid", "email", "profile"},
		Endpoint:     google.Endpoint,
	}
}

// Exchange trades the authorization code for the user's profile.
func (s *GoogleAuthService) Exchange(ctx context.Context, code string) (*GoogleProfile, error) {
	if !s.cfg.Enabled {
		return nil, ErrGoogleDisabled
	}

	oauthCfg := s.oauthConfig()
	token, err := oauthCfg.Exchange(ctx, code)
	if err != nil {
		logger.Warn("google_exchange_failed", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, errors.New("failed to exchange code for token")
	}

	return s.fetchProfile(ctx, oauthCfg, token)
}

func (s *GoogleAuthService) fetchProfile(ctx context.Context, oauthCfg *oauth2.Config, token *oauth2.Token) (*GoogleProfile, error) {
	client := oauthCfg.Client(ctx, token)

	resp, err := client.Get(s.userinfoURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("google api returned status %d: %s", resp.StatusCode, string(body))
	}

	var data struct {
		ID      string `json:"id"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, err
	}
	if data.Email == "" {
		return nil, errors.New("google profile has no email")
	}

	return &GoogleProfile{
		Subject:   data.ID,
		Email:     data.Email,
		Name:      data.Name,
		AvatarURL: data.Picture,
	}, nil
}
