package opencast

import (
	"time"

	"github.com/Code-Hex/go-generics-cache"
	"github.com/go-resty/resty/v2"
)

// Service describes one lookup backend of an Opencast installation.
// The archive endpoint changed name between major versions, and the two
// services disagree on the series query parameter.
type Service struct {
	Endpoint    string
	SeriesParam string
}

var (
	SearchService        = Service{Endpoint: "search/episode.xml", SeriesParam: "sid"}
	ArchiveService       = Service{Endpoint: "archive/episode.xml", SeriesParam: "series"}
	LegacyArchiveService = Service{Endpoint: "episode/episode.xml", SeriesParam: "series"}
)

const DefaultPageSize = 20

type Client struct {
	restyClient *resty.Client

	seriesExists *cache.Cache[string, bool]
}

func NewClient(baseURL string, username string, password string) *Client {
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetDigestAuth(username, password)
	// Headers the server requires before it offers digest challenges.
	client.SetHeader("X-Requested-Auth", "Digest")
	client.SetHeader("X-Opencast-Matterhorn-Authorization", "true")
	client.SetDisableWarn(true)
	client.SetTimeout(10 * time.Second)
	client.SetRetryCount(5)

	return &Client{
		restyClient:  client,
		seriesExists: cache.New[string, bool](),
	}
}
