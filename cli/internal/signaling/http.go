package signaling

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/BioHazard786/Warpdrop/cli/internal/dns"
)

const (
	requestTimeout = 10 * time.Second
	maxReplySize   = 1 << 20
)

// HTTPClient talks to the request/response endpoint. Mailboxes are read by
// polling PendingSignaling and Notifications.
type HTTPClient struct {
	rpc
	url  string
	http *http.Client
	log  *slog.Logger
}

func NewHTTPClient(url string, logger *slog.Logger) *HTTPClient {
	if logger == nil {
		logger = slog.Default()
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = dns.DialContext

	c := &HTTPClient{
		url:  url,
		http: &http.Client{Transport: transport, Timeout: requestTimeout},
		log:  logger,
	}
	c.rpc = rpc{do: c.roundTrip}
	return c
}

func (c *HTTPClient) URL() string {
	return c.url
}

func (c *HTTPClient) roundTrip(ctx context.Context, req *Request, out any) error {
	op := string(req.Type)

	body, err := json.Marshal(req)
	if err != nil {
		return WrapError(op, ErrMalformedRequest, err.Error())
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return WrapError(op, ErrUnreachable, err.Error())
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return NewError(op, ctx.Err())
		}
		return WrapError(op, ErrUnreachable, err.Error())
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxReplySize))
	if err != nil {
		return WrapError(op, ErrUnreachable, err.Error())
	}

	c.log.Debug("signaling round trip", "type", req.Type, "status", resp.StatusCode)

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return WrapError(op, ErrUnreachable, fmt.Sprintf("HTTP %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		// A 4xx that is not one of our error replies usually means the
		// endpoint is missing, which is no different from it being down.
		var er errorReply
		if json.Unmarshal(data, &er) != nil || er.Type != TypeError || er.Code == "" {
			return WrapError(op, ErrUnreachable, fmt.Sprintf("HTTP %d", resp.StatusCode))
		}
		return er.err(op)
	}

	return decodeReply(op, data, out)
}

func (c *HTTPClient) Close() error {
	c.http.CloseIdleConnections()
	return nil
}
