package ratings

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2/clientcredentials"

	"matchengine/series"
)

// ServiceClient is a series.PlayerFetcher backed by an external HTTP rating
// service rather than the local Postgres store, authenticated with an
// OAuth2 client-credentials grant (service-to-service, no user involved).
type ServiceClient struct {
	baseURL string
	http    *http.Client
}

// NewServiceClient builds a ServiceClient whose requests carry a
// client-credentials bearer token fetched from tokenURL.
func NewServiceClient(baseURL, tokenURL, clientID, clientSecret string) *ServiceClient {
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
	}
	return &ServiceClient{
		baseURL: baseURL,
		http:    cfg.Client(context.Background()),
	}
}

type playerResponse struct {
	UserID      string `json:"userId"`
	MindPoint   int    `json:"mindpoint"`
	CurrentRank string `json:"currentRank"`
}

// FetchPlayer implements series.PlayerFetcher over HTTP.
func (c *ServiceClient) FetchPlayer(ctx context.Context, playerID string) (*series.PlayerInfo, error) {
	url := fmt.Sprintf("%s/players/%s", c.baseURL, playerID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rating service request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("rating service status %d: %s", resp.StatusCode, body)
	}

	var pr playerResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("rating service decode: %w", err)
	}
	return &series.PlayerInfo{UserID: pr.UserID, MindPoint: pr.MindPoint, CurrentRank: pr.CurrentRank}, nil
}
