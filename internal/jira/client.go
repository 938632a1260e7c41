package jira

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/nhuanvd/rag-demo/internal/log"
)

// maxExportSize caps a single issue XML export. Attachments are not
// inlined, so real exports stay far below this.
const maxExportSize = 16 << 20

// ErrTicketNotFound indicates the issue does not exist or is not
// visible to the session.
var ErrTicketNotFound = errors.New("ticket not found")

// Client fetches issues over an authenticated session.
type Client struct {
	auth   *Authenticator
	logger log.Logger
}

// NewClient creates a Client on top of an Authenticator.
func NewClient(auth *Authenticator, logger log.Logger) (*Client, error) {
	if auth == nil {
		return nil, fmt.Errorf("authenticator is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Client{auth: auth, logger: logger}, nil
}

// FetchTicket downloads and parses the XML export for a ticket key,
// e.g. "DEMO-123". Returns ErrTicketNotFound for missing issues.
func (c *Client) FetchTicket(ctx context.Context, key string) (*Ticket, error) {
	if key == "" {
		return nil, fmt.Errorf("ticket key is required")
	}

	exportURL := fmt.Sprintf("%s/si/jira.issueviews:issue-xml/%s/%s.xml",
		c.auth.ServerURL(), key, key)

	req, err := c.auth.newRequest(ctx, http.MethodGet, exportURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating export request: %w", err)
	}

	resp, err := c.auth.Client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", key, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", key, ErrTicketNotFound)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("fetching %s: status %d: %w", key, resp.StatusCode, ErrNotAuthenticated)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("fetching %s: unexpected status %d", key, resp.StatusCode)
	}

	ticket, err := ParseTicket(io.LimitReader(resp.Body, maxExportSize))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", key, err)
	}
	if ticket.Key == "" {
		ticket.Key = key
	}

	c.logger.Debug("fetched ticket", "key", ticket.Key, "comments", len(ticket.Comments))
	return ticket, nil
}
