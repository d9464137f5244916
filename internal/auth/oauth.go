package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/xid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

// StateCookieName holds the OAuth state between the redirect to GitHub and the callback.
const StateCookieName = "oauth_state"

const githubUserAPI = "https://api.github.com/user"

// GitHubUser is the part of GitHub's /user response used for sign-in.
type GitHubUser struct {
	ID    int64  `json:"id"`    // stable, never changes
	Login string `json:"login"` // GitHub username; becomes the local username on first sign-in
}

// GitHubProvider wraps golang.org/x/oauth2 for GitHub's Authorization Code flow.
//
// OAUTH 2.0 AUTHORIZATION CODE FLOW:
//  1. Redirect the user to GitHub with our ClientID and a random state
//  2. The user approves on GitHub
//  3. GitHub redirects back to CallbackURL with a short-lived "code"
//  4. The server exchanges the code for an access token (server to server)
//  5. The server calls the GitHub API with that token to learn who the user is
//
// Sign-in with GitHub is optional: the provider is only built when a client ID
// and secret are configured.
type GitHubProvider struct {
	config  *oauth2.Config
	userAPI string
}

// NewGitHubProvider creates a GitHubProvider with the given credentials.
//
// callbackURL must match the "Authorization callback URL" registered with GitHub.
// Example: "http://localhost:8080/auth/github/callback"
//
// Only "read:user" is requested: the ID and login are all sign-in needs.
func NewGitHubProvider(clientID, clientSecret, callbackURL string) *GitHubProvider {
	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"read:user"},
			Endpoint:     github.Endpoint,
		},
		userAPI: githubUserAPI,
	}
}

// WithEndpoints points the provider at other OAuth and user-API URLs.
// Tests use it to talk to an httptest server instead of github.com.
func (p *GitHubProvider) WithEndpoints(endpoint oauth2.Endpoint, userAPI string) *GitHubProvider {
	cfg := *p.config
	cfg.Endpoint = endpoint
	return &GitHubProvider{config: &cfg, userAPI: userAPI}
}

// NewState returns a random, unguessable OAuth state value.
func NewState() string {
	return xid.New().String()
}

// AuthURL returns the GitHub authorization URL carrying state.
//
// STATE PARAMETER:
// The same value is stored in a cookie before redirecting; the callback only
// proceeds when the returned state matches it. This stops an attacker from
// completing an OAuth flow in your browser for their own account (CSRF).
func (p *GitHubProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades the authorization code for the GitHub user behind it.
func (p *GitHubProvider) Exchange(ctx context.Context, code string) (*GitHubUser, error) {
	oauthToken, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}

	// Client adds "Authorization: Bearer <token>" to every request.
	client := p.config.Client(ctx, oauthToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userAPI, nil)
	if err != nil {
		return nil, fmt.Errorf("auth: building GitHub /user request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth: calling GitHub /user API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: GitHub /user API returned status %d", resp.StatusCode)
	}

	var ghUser GitHubUser
	if err := json.NewDecoder(resp.Body).Decode(&ghUser); err != nil {
		return nil, fmt.Errorf("auth: decoding GitHub /user response: %w", err)
	}
	if ghUser.ID == 0 || ghUser.Login == "" {
		return nil, fmt.Errorf("auth: GitHub returned an incomplete user")
	}

	return &ghUser, nil
}
