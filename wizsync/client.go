package wizsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"bitbucket.org/nextfollow/followup_backend/config"
	"github.com/go-resty/resty/v2"
)

// ReportPaths holds the per-report endpoint paths on the Wiz ERP API.
// Each report returns JSON in an undocumented shape; the extractor and
// mappers deal with that, the client only moves bytes.
type ReportPaths struct {
	Balances  string
	Customers string
	Contacts  string
	Ledger    string
	Detail    string
}

type ClientConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	Paths   ReportPaths
}

func ClientConfigFromEnv() ClientConfig {
	baseURL := strings.TrimSpace(os.Getenv("WIZ_API_BASE_URL"))
	timeout := time.Duration(config.IntFromEnv("WIZ_API_TIMEOUT_SECONDS", 30)) * time.Second

	return ClientConfig{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   strings.TrimSpace(os.Getenv("WIZ_API_TOKEN")),
		Timeout: timeout,
		Paths: ReportPaths{
			Balances:  envOrDefault("WIZ_REPORT_BALANCES_PATH", "/reports/balances"),
			Customers: envOrDefault("WIZ_REPORT_CUSTOMERS_PATH", "/reports/customers"),
			Contacts:  envOrDefault("WIZ_REPORT_CONTACTS_PATH", "/reports/contacts"),
			Ledger:    envOrDefault("WIZ_REPORT_LEDGER_PATH", "/reports/ledger"),
			Detail:    envOrDefault("WIZ_REPORT_DETAIL_PATH", "/reports/account-detail"),
		},
	}
}

func envOrDefault(key string, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

type Client struct {
	rc  *resty.Client
	cfg ClientConfig
}

func NewClient(cfg ClientConfig) *Client {
	rc := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")
	if cfg.Token != "" {
		rc.SetAuthToken(cfg.Token)
	}
	return &Client{rc: rc, cfg: cfg}
}

func (c *Client) Paths() ReportPaths {
	return c.cfg.Paths
}

// postReport issues one authenticated report call and decodes the response
// into an untyped JSON value for the extractor. Transport failures are
// translated into the typed upstream errors.
func (c *Client) postReport(ctx context.Context, path string, params map[string]any) (any, error) {
	if c.cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: WIZ_API_BASE_URL not configured", ErrUpstreamUnavailable)
	}
	if params == nil {
		params = map[string]any{}
	}

	resp, err := c.rc.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(params).
		Post(path)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	if resp.IsError() {
		return nil, &UpstreamStatusError{Code: resp.StatusCode()}
	}

	var payload any
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return nil, fmt.Errorf("decoding report response from %s: %w", path, err)
	}
	return payload, nil
}

// FetchDetail pulls the basic detail report for a single account. Used by
// the customer-detail endpoint when the balance cache has no matching row.
func (c *Client) FetchDetail(ctx context.Context, externalId string) (any, error) {
	return c.postReport(ctx, c.cfg.Paths.Detail, map[string]any{"account": externalId})
}

// FetchLedger pulls the transaction ledger for one account. Ledger data is
// customer-scoped and never enters the global caches.
func (c *Client) FetchLedger(ctx context.Context, accountKey string) (any, error) {
	return c.postReport(ctx, c.cfg.Paths.Ledger, map[string]any{"account": accountKey})
}

func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
}
