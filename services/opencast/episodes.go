package opencast

import (
	"bytes"
	"context"
	"encoding/xml"
	"strconv"

	"github.com/ansel1/merry/v2"

	"github.com/bcc-code/opencast-migrate/mediapackage"
)

var (
	ErrNotFound       = merry.Sentinel("mediapackage not found")
	ErrTooManyMatches = merry.Sentinel("mediapackage id matched more than one result")
)

// UniqueMediapackage looks up a mediapackage by id on the given service.
// Ids are globally unique within a backend, so anything but exactly one
// match is an error.
func (c *Client) UniqueMediapackage(ctx context.Context, service Service, mpID string) (mediapackage.Mediapackage, error) {
	resp, err := c.restyClient.R().
		SetContext(ctx).
		SetQueryParam("id", mpID).
		Get(service.Endpoint)
	if err != nil {
		return mediapackage.Mediapackage{}, merry.Wrap(err)
	}
	if resp.IsError() {
		return mediapackage.Mediapackage{}, merry.Errorf(
			"mediapackage lookup at %s returned status %d", resp.Request.URL, resp.StatusCode())
	}

	list, err := mediapackage.ParseAll(resp.Body())
	if err != nil {
		return mediapackage.Mediapackage{}, err
	}

	switch len(list) {
	case 1:
		return list[0], nil
	case 0:
		return mediapackage.Mediapackage{}, merry.Wrap(ErrNotFound,
			merry.AppendMessagef("mediapackage %q at %s", mpID, resp.Request.URL))
	default:
		return mediapackage.Mediapackage{}, merry.Wrap(ErrTooManyMatches,
			merry.AppendMessagef("mediapackage %q at %s returned %d matches", mpID, resp.Request.URL, len(list)))
	}
}

// SeriesPage is one page of mediapackages belonging to a series, together
// with the total number of results the backend reports.
type SeriesPage struct {
	Mediapackages []mediapackage.Mediapackage
	Total         int
}

// MediapackagesFromSeries fetches one page of the mediapackages in a series.
func (c *Client) MediapackagesFromSeries(ctx context.Context, service Service, seriesID string, offset, limit int) (SeriesPage, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}

	resp, err := c.restyClient.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			service.SeriesParam: seriesID,
			"limit":             strconv.Itoa(limit),
			"offset":            strconv.Itoa(offset),
		}).
		Get(service.Endpoint)
	if err != nil {
		return SeriesPage{}, merry.Wrap(err)
	}
	if resp.IsError() {
		return SeriesPage{}, merry.Errorf(
			"series listing at %s returned status %d", resp.Request.URL, resp.StatusCode())
	}

	list, err := mediapackage.ParseAll(resp.Body())
	if err != nil {
		return SeriesPage{}, err
	}

	return SeriesPage{
		Mediapackages: list,
		Total:         resultTotal(resp.Body()),
	}, nil
}

// resultTotal reads the "total" attribute of the result envelope. The
// search and archive services wrap their results in different documents,
// but both put the count on the root element.
func resultTotal(data []byte) int {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			return 0
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		for _, attr := range start.Attr {
			if attr.Name.Local == "total" {
				total, _ := strconv.Atoi(attr.Value)
				return total
			}
		}
		return 0
	}
}
