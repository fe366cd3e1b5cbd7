package gtfsrt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/OpenTransitTools/delayreport/foundation/httpclient"
	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"
)

// apiKeyParameter is the query parameter the api key is sent in
const apiKeyParameter = "key"

// FetchError is returned when the feed can't be retrieved or decoded.
// URL never contains the api key
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("unable to fetch trip updates from %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// FeedClient retrieves a gtfs-realtime trip updates feed
type FeedClient struct {
	url         string
	redactedURL string
	client      *http.Client
}

// NewFeedClient creates a FeedClient for feedURL, adding apiKey as the "key" query parameter.
// Requests are abandoned after timeout
func NewFeedClient(feedURL string, apiKey string, timeout time.Duration) (*FeedClient, error) {
	u, err := url.Parse(feedURL)
	if err != nil {
		return nil, fmt.Errorf("invalid feed url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid feed url %q: scheme must be http or https", u.Redacted())
	}
	return &FeedClient{
		url:         withQueryParameter(u, apiKeyParameter, apiKey),
		redactedURL: withQueryParameter(u, apiKeyParameter, "REDACTED"),
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

func withQueryParameter(u *url.URL, name string, value string) string {
	copied := *u
	q := copied.Query()
	q.Set(name, value)
	copied.RawQuery = q.Encode()
	return copied.String()
}

// RedactedURL returns the feed url with the api key hidden, suitable for logging
func (c *FeedClient) RedactedURL() string {
	return c.redactedURL
}

// Fetch retrieves the feed and decodes it into a new ObservationStore.
// returns *FetchError on network, status or decode failures
func (c *FeedClient) Fetch(ctx context.Context) (*ObservationStore, error) {
	data, err := httpclient.RetrieveBytes(ctx, c.client, c.url)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			urlErr.URL = c.redactedURL
		}
		return nil, &FetchError{URL: c.redactedURL, Err: err}
	}
	store, err := DecodeTripUpdates(data)
	if err != nil {
		return nil, &FetchError{URL: c.redactedURL, Err: err}
	}
	return store, nil
}

// DecodeTripUpdates decodes a gtfs-realtime FeedMessage into an ObservationStore.
// required fields missing from the message are tolerated
func DecodeTripUpdates(data []byte) (*ObservationStore, error) {
	feed := gtfsrtpb.FeedMessage{}
	err := proto.UnmarshalOptions{AllowPartial: true}.Unmarshal(data, &feed)
	if err != nil {
		return nil, fmt.Errorf("unable to decode feed message: %w", err)
	}
	return NewObservationStore(&feed), nil
}
