package backend

import (
	"context"
	"net/http"
	"net/url"

	"github.com/nightvibe/nightvibe/internal/domain"
)

// ExploreEvents lists public events, one page at a time.
func (c *Client) ExploreEvents(ctx context.Context, page, limit int) ([]domain.Event, error) {
	var events []domain.Event
	err := c.do(ctx, request{
		method: http.MethodGet,
		route:  "/events/public/explore",
		path:   "/events/public/explore",
		query:  pageQuery(page, limit),
	}, &events)
	return events, err
}

// JoinEvent registers the current user as attending.
func (c *Client) JoinEvent(ctx context.Context, eventID string) error {
	return c.do(ctx, request{
		method: http.MethodPost,
		route:  "/events/:id/join",
		path:   "/events/" + url.PathEscape(eventID) + "/join",
	}, nil)
}

// Vendors lists venues, optionally filtered by city.
func (c *Client) Vendors(ctx context.Context, page, limit int, city string) ([]domain.Vendor, error) {
	q := pageQuery(page, limit)
	if city != "" {
		q.Set("city", city)
	}
	var vendors []domain.Vendor
	err := c.do(ctx, request{method: http.MethodGet, route: "/vendors", path: "/vendors", query: q}, &vendors)
	return vendors, err
}

// Guides lists city guides.
func (c *Client) Guides(ctx context.Context, city string) ([]domain.Guide, error) {
	q := url.Values{}
	if city != "" {
		q.Set("city", city)
	}
	var guides []domain.Guide
	err := c.do(ctx, request{method: http.MethodGet, route: "/guides", path: "/guides", query: q}, &guides)
	return guides, err
}

// Stats returns the current user's activity summary.
func (c *Client) Stats(ctx context.Context) (*domain.Stats, error) {
	var stats domain.Stats
	if err := c.do(ctx, request{method: http.MethodGet, route: "/stats/me", path: "/stats/me"}, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}
