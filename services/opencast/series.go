package opencast

import (
	"context"
	"errors"
	"net/http"
	"time"

	cache "github.com/Code-Hex/go-generics-cache"
	"github.com/ansel1/merry/v2"
)

const seriesExistsTTL = 5 * time.Minute

// Series returns the raw XML representation of a series.
func (c *Client) Series(ctx context.Context, seriesID string) ([]byte, error) {
	resp, err := c.restyClient.R().
		SetContext(ctx).
		Get("series/" + seriesID + ".xml")
	if err != nil {
		return nil, merry.Wrap(err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, merry.Wrap(ErrNotFound, merry.AppendMessagef("series %q", seriesID))
	}
	if resp.IsError() {
		return nil, merry.Errorf("series %q lookup returned status %d", seriesID, resp.StatusCode())
	}
	return resp.Body(), nil
}

// SeriesACL returns the raw XML access control list of a series.
func (c *Client) SeriesACL(ctx context.Context, seriesID string) ([]byte, error) {
	resp, err := c.restyClient.R().
		SetContext(ctx).
		Get("series/" + seriesID + "/acl.xml")
	if err != nil {
		return nil, merry.Wrap(err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, merry.Wrap(ErrNotFound, merry.AppendMessagef("series %q acl", seriesID))
	}
	if resp.IsError() {
		return nil, merry.Errorf("series %q acl lookup returned status %d", seriesID, resp.StatusCode())
	}
	return resp.Body(), nil
}

// CreateSeries creates a series with the given XML representation and ACL.
func (c *Client) CreateSeries(ctx context.Context, seriesID string, seriesXML, aclXML []byte) error {
	resp, err := c.restyClient.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"series": string(seriesXML),
			"acl":    string(aclXML),
		}).
		Post("series")
	if err != nil {
		return merry.Wrap(err)
	}
	if resp.IsError() {
		return merry.Errorf("series creation returned status %d", resp.StatusCode())
	}
	c.seriesExists.Set(seriesID, true, cache.WithExpiration(seriesExistsTTL))
	return nil
}

// SeriesExists reports whether the series is known to the system.
// Results are cached for a short while, because series drivers probe the
// same series repeatedly while paging through its mediapackages.
func (c *Client) SeriesExists(ctx context.Context, seriesID string) (bool, error) {
	if exists, ok := c.seriesExists.Get(seriesID); ok {
		return exists, nil
	}

	_, err := c.Series(ctx, seriesID)
	if errors.Is(err, ErrNotFound) {
		c.seriesExists.Set(seriesID, false, cache.WithExpiration(seriesExistsTTL))
		return false, nil
	}
	if err != nil {
		return false, err
	}
	c.seriesExists.Set(seriesID, true, cache.WithExpiration(seriesExistsTTL))
	return true, nil
}
