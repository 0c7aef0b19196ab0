package llm

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RemoteGrouper calls a dedicated grouping service over HTTP. The service
// owns authentication and rate limiting; a 429 or any other non-success
// status is surfaced as a plain error and never retried here.
type RemoteGrouper struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewRemoteGrouper creates a client for the grouping service. The key has
// the form "id:hexsecret" and is used to mint short-lived bearer tokens.
func NewRemoteGrouper(baseURL, apiKey string) *RemoteGrouper {
	return &RemoteGrouper{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// GroupItems sends the distinct item list to the grouping service in a
// single round trip.
func (c *RemoteGrouper) GroupItems(ctx context.Context, items []ItemRef) ([]ItemGroup, error) {
	token, err := c.createToken()
	if err != nil {
		return nil, fmt.Errorf("failed to create bearer token: %w", err)
	}

	reqBody := struct {
		Items []ItemRef `json:"items"`
	}{Items: items}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/group", bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("grouping service error: status=%d body=%s", resp.StatusCode, string(bodyBytes))
	}

	var parsed struct {
		Groups []ItemGroup `json:"groups"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return parsed.Groups, nil
}

// createToken mints a short-lived HS256 token from the "id:hexsecret" key.
func (c *RemoteGrouper) createToken() (string, error) {
	keyParts := strings.SplitN(c.apiKey, ":", 2)
	if len(keyParts) != 2 {
		return "", fmt.Errorf("invalid grouping service key format, expected id:secret")
	}

	id := keyParts[0]
	secret, err := hex.DecodeString(keyParts[1])
	if err != nil {
		return "", fmt.Errorf("failed to decode secret hex: %w", err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(5 * time.Minute).Unix(),
		"aud": "/v1/group",
	})
	token.Header["kid"] = id

	return token.SignedString(secret)
}
