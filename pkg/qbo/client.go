package qbo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// pageSize is the MAXRESULTS value for paginated queries.
	pageSize = 500
	// maxPages caps pagination per entity as a runaway guard.
	maxPages = 10
)

// ErrEntityUnsupported is returned when the realm rejects a query for an
// entity it does not expose. Some realms fault on the Check entity with an
// "invalid context declaration" validation error; callers surface this as a
// flag instead of failing the run.
var ErrEntityUnsupported = errors.New("entity not queryable on this realm")

// ClientConfig represents the configuration for the QBO API client.
type ClientConfig struct {
	APIURL      string
	RealmID     string
	AccessToken string
	Timeout     time.Duration // Default: 30 seconds
}

// Client is a QuickBooks Online query API client.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	realmID     string
	accessToken string
}

// NewClient creates a new QBO API client.
func NewClient(config ClientConfig) *Client {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL:     strings.TrimRight(config.APIURL, "/"),
		realmID:     config.RealmID,
		accessToken: config.AccessToken,
	}
}

// SetAccessToken sets the bearer token for API requests.
func (c *Client) SetAccessToken(token string) {
	c.accessToken = token
}

// query executes one query statement and returns the raw response body.
func (c *Client) query(ctx context.Context, stmt string) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/v3/company/%s/query", c.baseURL, c.realmID)

	params := url.Values{}
	params.Set("query", stmt)
	params.Set("minorversion", "65")

	req, err := http.NewRequestWithContext(ctx, "GET", fmt.Sprintf("%s?%s", endpoint, params.Encode()), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.accessToken))
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseError(resp.StatusCode, body)
	}

	return body, nil
}

// FetchTransactions fetches all records of the given entity type with
// TxnDate >= minDate, paging by pageSize from position 1 and stopping on a
// short page or the page ceiling.
//
// Page fetches are best-effort: a failed page logs a warning and ends
// pagination with whatever was collected so far, so one flaky call never
// aborts the whole run. The one exception is ErrEntityUnsupported, which is
// returned so the caller can flag the entity as unqueryable.
func (c *Client) FetchTransactions(ctx context.Context, entity, minDate string) ([]RawTransaction, error) {
	var all []RawTransaction

	for page := 0; page < maxPages; page++ {
		start := page*pageSize + 1
		stmt := fmt.Sprintf("SELECT * FROM %s WHERE TxnDate >= '%s' STARTPOSITION %d MAXRESULTS %d",
			entity, minDate, start, pageSize)

		body, err := c.query(ctx, stmt)
		if err != nil {
			if errors.Is(err, ErrEntityUnsupported) {
				return nil, err
			}
			slog.Warn("page fetch failed, degrading to partial result",
				"entity", entity, "start_position", start, "error", err)
			return all, nil
		}

		records, err := collection[RawTransaction](body, entity)
		if err != nil {
			slog.Warn("page decode failed, degrading to partial result",
				"entity", entity, "start_position", start, "error", err)
			return all, nil
		}

		all = append(all, records...)

		if len(records) < pageSize {
			break
		}
	}

	return all, nil
}

// FetchAccounts fetches the active chart of accounts.
func (c *Client) FetchAccounts(ctx context.Context) ([]Account, error) {
	body, err := c.query(ctx, "SELECT * FROM Account WHERE Active = true MAXRESULTS 1000")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch accounts: %w", err)
	}
	return collection[Account](body, EntityAccount)
}

// FetchClasses fetches the active class list.
func (c *Client) FetchClasses(ctx context.Context) ([]Class, error) {
	body, err := c.query(ctx, "SELECT * FROM Class WHERE Active = true MAXRESULTS 1000")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch classes: %w", err)
	}
	return collection[Class](body, EntityClass)
}

// faultResponse is the error envelope of the query API.
type faultResponse struct {
	Fault struct {
		Type  string `json:"type"`
		Error []struct {
			Message string `json:"Message"`
			Detail  string `json:"Detail"`
			Code    string `json:"code"`
		} `json:"Error"`
	} `json:"Fault"`
}

// parseError parses an error response body, mapping the known
// invalid-context-declaration validation fault to ErrEntityUnsupported.
func (c *Client) parseError(status int, body []byte) error {
	var fault faultResponse
	if err := json.Unmarshal(body, &fault); err != nil || len(fault.Fault.Error) == 0 {
		return fmt.Errorf("QBO API error (status %d): %s", status, string(body))
	}

	e := fault.Fault.Error[0]
	combined := strings.ToLower(e.Message + " " + e.Detail)
	if strings.Contains(combined, "invalid context declaration") {
		return fmt.Errorf("%w: %s", ErrEntityUnsupported, e.Message)
	}

	if e.Detail != "" {
		return fmt.Errorf("QBO API error: %s - %s", e.Message, e.Detail)
	}
	return fmt.Errorf("QBO API error: %s", e.Message)
}
