// Package ana reads station inventories and historical series from the ANA
// telemetry web service (ServiceANA.asmx).
package ana

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/couchcryptid/hydro-data-etl-service/internal/adapter/httpclient"
)

// DefaultBaseURL is the public ANA telemetry endpoint.
const DefaultBaseURL = "http://telemetriaws1.ana.gov.br/ServiceANA.asmx"

// Client implements domain.StageDischargeSource and domain.RainfallSource
// on top of the ANA web service.
type Client struct {
	baseURL string
	http    *httpclient.Client
	logger  *slog.Logger
}

// NewClient creates an ANA client. An empty baseURL selects DefaultBaseURL.
func NewClient(baseURL string, opts ...httpclient.Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	hc := httpclient.New("ana", opts...)
	return &Client{
		baseURL: baseURL,
		http:    hc,
		logger:  hc.Logger(),
	}
}

// ServiceError is an error reported inside an otherwise successful response.
type ServiceError struct {
	Operation string
	Message   string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("ana %s: %s", e.Operation, e.Message)
}

func (c *Client) get(ctx context.Context, operation string, query url.Values) ([]byte, error) {
	fullURL := c.baseURL + "/" + operation
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}
	return c.http.Get(ctx, fullURL, "text/xml")
}
