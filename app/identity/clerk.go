package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const clerkAPIBaseURL = "https://api.clerk.com"

type ClerkConfig struct {
	SecretKey   string
	HTTPTimeout time.Duration

	// APIBaseURL overrides the Clerk endpoint, used by tests.
	APIBaseURL string
}

type ClerkProvider struct {
	cfg    ClerkConfig
	client *http.Client
}

func NewClerkProvider(cfg ClerkConfig) *ClerkProvider {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if strings.TrimSpace(cfg.APIBaseURL) == "" {
		cfg.APIBaseURL = clerkAPIBaseURL
	}

	return &ClerkProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (p *ClerkProvider) VerifiedEmail(ctx context.Context, userID string) (string, error) {
	if strings.TrimSpace(p.cfg.SecretKey) == "" {
		return "", errors.New("clerk secret key is not configured")
	}
	if strings.TrimSpace(userID) == "" {
		return "", errors.New("user id is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.APIBaseURL+"/v1/users/"+url.PathEscape(userID), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.SecretKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("clerk request failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var user struct {
		PrimaryEmailAddressID string `json:"primary_email_address_id"`
		EmailAddresses        []struct {
			ID           string `json:"id"`
			EmailAddress string `json:"email_address"`
		} `json:"email_addresses"`
	}
	if err := json.Unmarshal(body, &user); err != nil {
		return "", err
	}

	for _, address := range user.EmailAddresses {
		if address.ID == user.PrimaryEmailAddressID && strings.TrimSpace(address.EmailAddress) != "" {
			return address.EmailAddress, nil
		}
	}
	if len(user.EmailAddresses) > 0 && strings.TrimSpace(user.EmailAddresses[0].EmailAddress) != "" {
		return user.EmailAddresses[0].EmailAddress, nil
	}

	return "", errors.New("user has no email address")
}
