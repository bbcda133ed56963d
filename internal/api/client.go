// Package api is the Open Cloud client for the two monetization resource
// families: game passes and developer products.
package api

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rbxkit/rbxsync/internal/catalog"
	"github.com/rbxkit/rbxsync/internal/httpclient"
)

const (
	// DefaultBaseURL is the production Open Cloud endpoint.
	DefaultBaseURL = "https://apis.roblox.com"
	// DefaultPageSize is the listing page size.
	DefaultPageSize = 100
)

// Client talks to the platform's pass and product endpoints.
type Client struct {
	http     *httpclient.Client
	baseURL  string
	pageSize int
}

// New creates a platform client. Empty baseURL and non-positive pageSize
// fall back to the defaults.
func New(hc *httpclient.Client, baseURL string, pageSize int) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Client{http: hc, baseURL: baseURL, pageSize: pageSize}
}

func (c *Client) gamePassesURL(universeID uint64) string {
	return fmt.Sprintf("%s/game-passes/v1/universes/%d/game-passes", c.baseURL, universeID)
}

func (c *Client) devProductsURL(universeID uint64) string {
	return fmt.Sprintf("%s/developer-products/v2/universes/%d/developer-products", c.baseURL, universeID)
}

// FetchAll materializes every remote record of both kinds, passes first.
func (c *Client) FetchAll(ctx context.Context, universeID uint64) ([]Remote, error) {
	passes, err := c.FetchAllGamePasses(ctx, universeID)
	if err != nil {
		return nil, err
	}
	products, err := c.FetchAllDevProducts(ctx, universeID)
	if err != nil {
		return nil, err
	}

	all := make([]Remote, 0, len(passes)+len(products))
	for i := range passes {
		all = append(all, Remote{Kind: catalog.KindGamePass, Product: passes[i].Product()})
	}
	for i := range products {
		all = append(all, Remote{Kind: catalog.KindDevProduct, Product: products[i].Product()})
	}
	return all, nil
}

// FetchAllGamePasses walks the pass listing until the server stops returning
// a next-page cursor.
func (c *Client) FetchAllGamePasses(ctx context.Context, universeID uint64) ([]GamePass, error) {
	return fetchPages(ctx, c, c.gamePassesURL(universeID)+"/creator",
		func(p *gamePassPage) ([]GamePass, string) { return p.GamePasses, p.NextPageToken })
}

// FetchAllDevProducts walks the one-time product listing.
func (c *Client) FetchAllDevProducts(ctx context.Context, universeID uint64) ([]DevProduct, error) {
	return fetchPages(ctx, c, c.devProductsURL(universeID)+"/creator",
		func(p *devProductPage) ([]DevProduct, string) { return p.DeveloperProducts, p.NextPageToken })
}

// fetchPages accumulates a whole cursor-paginated collection. The first
// request carries no cursor; later requests carry the token verbatim. Any
// failure aborts with nothing.
func fetchPages[P any, R any](ctx context.Context, c *Client, endpoint string, extract func(*P) ([]R, string)) ([]R, error) {
	var all []R
	cursor := ""

	for {
		q := url.Values{"pageSize": {strconv.Itoa(c.pageSize)}}
		if cursor != "" {
			q.Set("pageToken", cursor)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
		if err != nil {
			return nil, fmt.Errorf("building list request: %w", err)
		}

		var page P
		if err := c.http.DoJSON(req, &page); err != nil {
			return nil, err
		}

		items, next := extract(&page)
		all = append(all, items...)

		if next == "" {
			return all, nil
		}
		cursor = next
	}
}

// Create creates a record of the given kind and returns its new remote id.
func (c *Client) Create(ctx context.Context, kind catalog.Kind, universeID uint64, up UpdateRequest) (uint64, error) {
	switch kind {
	case catalog.KindGamePass:
		gp, err := c.CreateGamePass(ctx, universeID, up)
		if err != nil {
			return 0, err
		}
		return gp.GamePassID, nil
	default:
		dp, err := c.CreateDevProduct(ctx, universeID, up)
		if err != nil {
			return 0, err
		}
		return dp.ProductID, nil
	}
}

// Update patches an existing record of the given kind.
func (c *Client) Update(ctx context.Context, kind catalog.Kind, universeID, id uint64, up UpdateRequest) error {
	if kind == catalog.KindGamePass {
		return c.UpdateGamePass(ctx, universeID, id, up)
	}
	return c.UpdateDevProduct(ctx, universeID, id, up)
}

// CreateGamePass creates a pass and returns the platform record.
func (c *Client) CreateGamePass(ctx context.Context, universeID uint64, up UpdateRequest) (*GamePass, error) {
	var gp GamePass
	if err := c.submitForm(ctx, http.MethodPost, c.gamePassesURL(universeID), up, &gp); err != nil {
		return nil, err
	}
	return &gp, nil
}

// CreateDevProduct creates a one-time product and returns the platform record.
func (c *Client) CreateDevProduct(ctx context.Context, universeID uint64, up UpdateRequest) (*DevProduct, error) {
	var dp DevProduct
	if err := c.submitForm(ctx, http.MethodPost, c.devProductsURL(universeID), up, &dp); err != nil {
		return nil, err
	}
	return &dp, nil
}

// UpdateGamePass patches a pass by id.
func (c *Client) UpdateGamePass(ctx context.Context, universeID, id uint64, up UpdateRequest) error {
	return c.submitForm(ctx, http.MethodPatch, fmt.Sprintf("%s/%d", c.gamePassesURL(universeID), id), up, nil)
}

// UpdateDevProduct patches a one-time product by id.
func (c *Client) UpdateDevProduct(ctx context.Context, universeID, id uint64, up UpdateRequest) error {
	return c.submitForm(ctx, http.MethodPatch, fmt.Sprintf("%s/%d", c.devProductsURL(universeID), id), up, nil)
}

// submitForm sends the payload as a multipart form. The body is buffered in
// memory so the transport can rebuild it across rate-limit retries.
func (c *Client) submitForm(ctx context.Context, method, endpoint string, up UpdateRequest, out any) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, field := range up.fields() {
		if err := w.WriteField(field[0], field[1]); err != nil {
			return fmt.Errorf("building form: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("building form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(buf.Bytes()))
	if err != nil {
		return fmt.Errorf("building %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	return c.http.DoJSON(req, out)
}
