// Package crm implements the CRM HTTP API client used for lead lookup and
// verdict write-back. The CRM's availability is its own concern: callers
// treat every error here as non-fatal.
package crm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	backoff "github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fairyhunter13/intake-qa-agent/internal/adapter/observability"
	"github.com/fairyhunter13/intake-qa-agent/internal/config"
	"github.com/fairyhunter13/intake-qa-agent/internal/domain"
)

// Client talks to the CRM REST API, authenticating every call with the
// access/secret key pair as query parameters.
type Client struct {
	cfg config.Config
	hc  *http.Client
}

// New constructs a CRM client with the configured timeout.
func New(cfg config.Config) *Client {
	return &Client{cfg: cfg, hc: &http.Client{
		Timeout:   cfg.CRMTimeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}}
}

func (c *Client) endpoint(path string, params url.Values) string {
	params.Set("accessKey", c.cfg.CRMAccessKey)
	params.Set("secretKey", c.cfg.CRMSecretKey)
	return c.cfg.CRMAPIBase + path + "?" + params.Encode()
}

// GetLead fetches lead fields by lead id. The CRM returns an array of flat
// attribute/value pairs; they are folded into a single map usable as a
// delivery container.
func (c *Client) GetLead(ctx domain.Context, leadID string) (map[string]any, error) {
	params := url.Values{}
	params.Set("id", leadID)
	u := c.endpoint("/LeadManagement.svc/Leads.GetById", params)

	var fields map[string]any
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.hc.Do(req)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return backoff.Permanent(fmt.Errorf("%w: lead get status %d", domain.ErrUpstreamFailure, resp.StatusCode))
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("%w: lead get status %d", domain.ErrUpstreamFailure, resp.StatusCode)
		}
		// The lead endpoint answers either a bare object or a one-element
		// array depending on API revision.
		var asList []map[string]any
		if err := json.Unmarshal(body, &asList); err == nil {
			if len(asList) == 0 {
				return backoff.Permanent(fmt.Errorf("%w: lead %s", domain.ErrNotFound, leadID))
			}
			fields = asList[0]
			return nil
		}
		var asObj map[string]any
		if err := json.Unmarshal(body, &asObj); err != nil {
			return backoff.Permanent(fmt.Errorf("%w: lead get decode: %v", domain.ErrSchemaInvalid, err))
		}
		fields = asObj
		return nil
	}
	if err := c.retry(ctx, op); err != nil {
		return nil, fmt.Errorf("op=crm.GetLead: %w", err)
	}
	return fields, nil
}

// updateField mirrors the CRM's SchemaName/Value update payload item.
type updateField struct {
	SchemaName string `json:"SchemaName"`
	Value      string `json:"Value"`
}

// UpdateActivityFields writes the QA verdict fields onto the activity.
func (c *Client) UpdateActivityFields(ctx domain.Context, activityID string, fields map[string]string) error {
	params := url.Values{}
	params.Set("activityId", activityID)
	u := c.endpoint("/ProspectActivity.svc/Activity.Update", params)

	payload := make([]updateField, 0, len(fields))
	for k, v := range fields {
		payload = append(payload, updateField{SchemaName: k, Value: v})
	}
	b, _ := json.Marshal(map[string]any{"Fields": payload})

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(b))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := c.hc.Do(req)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()
		_, _ = io.Copy(io.Discard, resp.Body)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return backoff.Permanent(fmt.Errorf("%w: activity update status %d", domain.ErrUpstreamFailure, resp.StatusCode))
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("%w: activity update status %d", domain.ErrUpstreamFailure, resp.StatusCode)
		}
		return nil
	}
	if err := c.retry(ctx, op); err != nil {
		observability.CRMWritebacksTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("op=crm.UpdateActivityFields: %w", err)
	}
	observability.CRMWritebacksTotal.WithLabelValues("ok").Inc()
	slog.Debug("crm activity updated", slog.String("activity_id", activityID), slog.Int("fields", len(fields)))
	return nil
}

func (c *Client) retry(ctx domain.Context, op backoff.Operation) error {
	expo := backoff.NewExponentialBackOff()
	expo.MaxElapsedTime, expo.InitialInterval, expo.MaxInterval, expo.Multiplier = c.cfg.GetBackoffConfig()
	return backoff.Retry(op, backoff.WithContext(expo, ctx))
}
