// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package cp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/wrgeorge1983/rtrcp/internal/errors"
	"github.com/wrgeorge1983/rtrcp/internal/rib"
)

// SLAPeer is the subset of a running rp_sla instance's HTTP surface the
// Control Plane needs: the UP, priority-selected routes it would
// redistribute, and an on-demand re-evaluation trigger.
type SLAPeer interface {
	BestRoutes(ctx context.Context) ([]rib.Record, error)
	EvaluateRoutes(ctx context.Context) error
}

// RIP1Peer is the subset of a running rp_rip1 instance's HTTP surface the
// Control Plane needs: its redistribute_out routes, and a redistribute_in
// sink for the composite export_routes.
type RIP1Peer interface {
	BestRoutes(ctx context.Context) ([]rib.Record, error)
	RedistributeIn(ctx context.Context, records []rib.Record) error
}

const defaultPeerTimeout = 5 * time.Second

// HTTPSLAClient reaches a single rp_sla instance over HTTP.
type HTTPSLAClient struct {
	BaseURL    string
	InstanceID string
	HTTPClient *http.Client
}

// NewHTTPSLAClient builds a client for instanceID at an rp_sla daemon
// listening at baseURL.
func NewHTTPSLAClient(baseURL, instanceID string) *HTTPSLAClient {
	return &HTTPSLAClient{BaseURL: baseURL, InstanceID: instanceID}
}

func (c *HTTPSLAClient) client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: defaultPeerTimeout}
}

func (c *HTTPSLAClient) BestRoutes(ctx context.Context) ([]rib.Record, error) {
	url := fmt.Sprintf("%s/instances/%s/redistribute_out", c.BaseURL, c.InstanceID)
	return getRecords(ctx, c.client(), url)
}

func (c *HTTPSLAClient) EvaluateRoutes(ctx context.Context) error {
	url := fmt.Sprintf("%s/instances/%s/evaluate_routes", c.BaseURL, c.InstanceID)
	return postRecords(ctx, c.client(), url, nil)
}

// HTTPRIP1Client reaches a single rp_rip1 instance over HTTP.
type HTTPRIP1Client struct {
	BaseURL    string
	InstanceID string
	HTTPClient *http.Client
}

// NewHTTPRIP1Client builds a client for instanceID at an rp_rip1 daemon
// listening at baseURL.
func NewHTTPRIP1Client(baseURL, instanceID string) *HTTPRIP1Client {
	return &HTTPRIP1Client{BaseURL: baseURL, InstanceID: instanceID}
}

func (c *HTTPRIP1Client) client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: defaultPeerTimeout}
}

func (c *HTTPRIP1Client) BestRoutes(ctx context.Context) ([]rib.Record, error) {
	url := fmt.Sprintf("%s/instances/%s/redistribute_out", c.BaseURL, c.InstanceID)
	return getRecords(ctx, c.client(), url)
}

func (c *HTTPRIP1Client) RedistributeIn(ctx context.Context, records []rib.Record) error {
	url := fmt.Sprintf("%s/instances/%s/redistribute_in", c.BaseURL, c.InstanceID)
	return postRecords(ctx, c.client(), url, records)
}

func getRecords(ctx context.Context, client *http.Client, url string) ([]rib.Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindTransport, "build request")
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, errors.KindTransport, "request to %s failed", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, errors.Errorf(errors.KindTransport, "request to %s returned status %d", url, resp.StatusCode)
	}

	var records []rib.Record
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, errors.Wrap(err, errors.KindTransport, "decode response body")
	}
	return records, nil
}

func postRecords(ctx context.Context, client *http.Client, url string, records []rib.Record) error {
	var body bytes.Buffer
	if records != nil {
		if err := json.NewEncoder(&body).Encode(records); err != nil {
			return errors.Wrap(err, errors.KindInternal, "encode request body")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return errors.Wrap(err, errors.KindTransport, "build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return errors.Wrapf(err, errors.KindTransport, "request to %s failed", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return errors.Errorf(errors.KindTransport, "request to %s returned status %d", url, resp.StatusCode)
	}
	return nil
}
