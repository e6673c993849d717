package billing

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

	"github.com/ManuelReschke/SubFox/internal/pkg/env"
)

const defaultStripeAPIBaseURL = "https://api.stripe.com/v1"

// StripeClient talks to the provider REST API. It is constructed once at
// startup and passed into the components that need it; nothing in this
// package holds it as package state.
type StripeClient struct {
	APIKey     string
	APIBaseURL string
	APIVersion string

	HTTPClient *http.Client
}

// StripePrice is one entry of the provider price catalog.
type StripePrice struct {
	ID         string
	Product    string
	Nickname   string
	UnitAmount int64
	Currency   string
	Interval   string
	Active     bool
}

// NewStripeClientFromEnv builds the provider client from the environment.
// The API key and version are required at startup; MustGetEnv panics when
// they are absent because running without them is a configuration error.
func NewStripeClientFromEnv() *StripeClient {
	return &StripeClient{
		APIKey:     env.MustGetEnv("STRIPE_SECRET_KEY"),
		APIBaseURL: strings.TrimRight(env.GetEnv("STRIPE_API_BASE_URL", defaultStripeAPIBaseURL), "/"),
		APIVersion: env.MustGetEnv("STRIPE_API_VERSION"),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (c *StripeClient) do(ctx context.Context, path string, query url.Values) ([]byte, error) {
	if strings.TrimSpace(c.APIKey) == "" {
		return nil, errors.New("STRIPE_SECRET_KEY is not configured")
	}

	u, err := url.Parse(c.APIBaseURL + path)
	if err != nil {
		return nil, err
	}
	if query != nil {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Stripe-Version", c.APIVersion)
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("stripe request %s failed: status=%d body=%s", path, resp.StatusCode, string(body))
	}
	return body, nil
}

// GetSubscription fetches the current provider state of a subscription,
// used for manual reconciliation when webhook state is in doubt.
func (c *StripeClient) GetSubscription(ctx context.Context, subscriptionID string) (*ProviderSubscription, error) {
	id := strings.TrimSpace(subscriptionID)
	if id == "" {
		return nil, errors.New("subscription id is required")
	}

	body, err := c.do(ctx, "/subscriptions/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}

	ev := &Event{Object: body}
	return DecodeProviderSubscription(ev)
}

// ListPrices pages through the active provider price catalog. The catalog
// sync job mirrors the result into the local price_mappings table.
func (c *StripeClient) ListPrices(ctx context.Context) ([]StripePrice, error) {
	var prices []StripePrice
	startingAfter := ""

	for {
		query := url.Values{}
		query.Set("limit", "100")
		query.Set("active", "true")
		if startingAfter != "" {
			query.Set("starting_after", startingAfter)
		}

		body, err := c.do(ctx, "/prices", query)
		if err != nil {
			return nil, err
		}

		var raw struct {
			Data []struct {
				ID         string `json:"id"`
				Product    string `json:"product"`
				Nickname   string `json:"nickname"`
				UnitAmount int64  `json:"unit_amount"`
				Currency   string `json:"currency"`
				Active     bool   `json:"active"`
				Recurring  struct {
					Interval string `json:"interval"`
				} `json:"recurring"`
			} `json:"data"`
			HasMore bool `json:"has_more"`
		}
		if err := json.Unmarshal(body, &raw); err != nil {
			return nil, err
		}

		for _, p := range raw.Data {
			prices = append(prices, StripePrice{
				ID:         strings.TrimSpace(p.ID),
				Product:    strings.TrimSpace(p.Product),
				Nickname:   strings.TrimSpace(p.Nickname),
				UnitAmount: p.UnitAmount,
				Currency:   strings.TrimSpace(p.Currency),
				Interval:   strings.TrimSpace(p.Recurring.Interval),
				Active:     p.Active,
			})
		}

		if !raw.HasMore || len(raw.Data) == 0 {
			break
		}
		startingAfter = raw.Data[len(raw.Data)-1].ID
	}

	return prices, nil
}
