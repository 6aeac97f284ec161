// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package rip1

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/wrgeorge1983/rtrcp/internal/errors"
)

const defaultCPClientTimeout = 5 * time.Second

// RedistributeTarget is the single Control Plane operation the
// triggered-redistribution consumer needs.
type RedistributeTarget interface {
	Redistribute(ctx context.Context) error
}

// HTTPCPClient calls a single running Control Plane instance's
// redistribute endpoint (§6) over HTTP.
type HTTPCPClient struct {
	BaseURL    string
	InstanceID string
	HTTPClient *http.Client
}

// NewHTTPCPClient builds a client for instanceID at a Control Plane
// daemon listening at baseURL.
func NewHTTPCPClient(baseURL, instanceID string) *HTTPCPClient {
	return &HTTPCPClient{BaseURL: baseURL, InstanceID: instanceID}
}

func (c *HTTPCPClient) client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: defaultCPClientTimeout}
}

func (c *HTTPCPClient) Redistribute(ctx context.Context) error {
	url := fmt.Sprintf("%s/instances/%s/redistribute", c.BaseURL, c.InstanceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return errors.Wrap(err, errors.KindTransport, "build request")
	}

	resp, err := c.client().Do(req)
	if err != nil {
		return errors.Wrapf(err, errors.KindTransport, "request to %s failed", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return errors.Errorf(errors.KindTransport, "request to %s returned status %d", url, resp.StatusCode)
	}
	return nil
}
