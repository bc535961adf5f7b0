// Package spotify proxies track search to the Spotify Web API using the
// client-credentials flow.
package spotify

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"socialhub/models"
)

const (
	DefaultAccountsURL = "https://accounts.spotify.com/api/token"
	DefaultAPIURL      = "https://api.spotify.com"

	searchLimit = 10
	// Refresh a little before Spotify expires the token.
	expirySlack = time.Minute
)

var ErrNotConfigured = errors.New("spotify credentials not configured")

var errTokenRejected = errors.New("access token rejected")

// statusError is a non-200 upstream answer.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return "upstream status " + strconv.Itoa(e.code)
}

type Client struct {
	ClientID     string
	ClientSecret string
	AccountsURL  string
	APIURL       string
	HTTP         *http.Client
	Cache        TokenCache
}

func NewClient(clientID, clientSecret string, timeout time.Duration, cache TokenCache) *Client {
	if cache == nil {
		cache = NewMemoryTokenCache()
	}
	return &Client{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		AccountsURL:  DefaultAccountsURL,
		APIURL:       DefaultAPIURL,
		HTTP:         &http.Client{Timeout: timeout},
		Cache:        cache,
	}
}

func (c *Client) token(ctx context.Context) (string, error) {
	if token, ok, err := c.Cache.Get(ctx); err == nil && ok {
		return token, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.AccountsURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", errors.Wrap(err, "token request")
	}
	req.SetBasicAuth(c.ClientID, c.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	body, err := c.do(req)
	if err != nil {
		return "", errors.Wrap(err, "fetch token")
	}
	token := gjson.GetBytes(body, "access_token").String()
	if token == "" {
		return "", errors.New("token response without access_token")
	}
	ttl := time.Duration(gjson.GetBytes(body, "expires_in").Int())*time.Second - expirySlack
	if ttl > 0 {
		// A cache failure only costs an extra token round trip.
		_ = c.Cache.Set(ctx, token, ttl)
	}
	return token, nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{code: resp.StatusCode}
	}
	return body, nil
}

// Search returns up to ten tracks matching query. A cached token the
// upstream rejects is dropped and the search retried once with a fresh one.
func (c *Client) Search(ctx context.Context, query string) ([]models.Music, error) {
	if c.ClientID == "" || c.ClientSecret == "" {
		return nil, ErrNotConfigured
	}
	tracks, err := c.search(ctx, query)
	if errors.Is(err, errTokenRejected) {
		if err := c.Cache.Clear(ctx); err != nil {
			return nil, err
		}
		tracks, err = c.search(ctx, query)
	}
	return tracks, err
}

func (c *Client) search(ctx context.Context, query string) ([]models.Music, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	params := url.Values{
		"q":     {query},
		"type":  {"track"},
		"limit": {strconv.Itoa(searchLimit)},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(c.APIURL, "/")+"/v1/search?"+params.Encode(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "search request")
	}
	req.Header.Set("Authorization", "Bearer "+token)

	body, err := c.do(req)
	var status *statusError
	if errors.As(err, &status) && status.code == http.StatusUnauthorized {
		return nil, errors.Wrap(errTokenRejected, "search")
	}
	if err != nil {
		return nil, errors.Wrap(err, "search")
	}
	if !gjson.ValidBytes(body) {
		return nil, errors.New("search response is not JSON")
	}
	return parseTracks(body), nil
}

func parseTracks(body []byte) []models.Music {
	tracks := make([]models.Music, 0, searchLimit)
	gjson.GetBytes(body, "tracks.items").ForEach(func(_, item gjson.Result) bool {
		var artists []string
		for _, a := range item.Get("artists.#.name").Array() {
			artists = append(artists, a.String())
		}
		tracks = append(tracks, models.Music{
			ID:          item.Get("id").String(),
			Name:        item.Get("name").String(),
			Artist:      strings.Join(artists, ", "),
			Album:       item.Get("album.name").String(),
			Image:       item.Get("album.images.0.url").String(),
			PreviewURL:  item.Get("preview_url").String(),
			ExternalURL: item.Get("external_urls.spotify").String(),
		})
		return len(tracks) < searchLimit
	})
	return tracks
}

var mockTracks = []models.Music{
	{ID: "mock-1", Name: "Blinding Lights", Artist: "The Weeknd", Album: "After Hours", Image: "https://picsum.photos/seed/track1/300/300"},
	{ID: "mock-2", Name: "Levitating", Artist: "Dua Lipa", Album: "Future Nostalgia", Image: "https://picsum.photos/seed/track2/300/300"},
	{ID: "mock-3", Name: "Heat Waves", Artist: "Glass Animals", Album: "Dreamland", Image: "https://picsum.photos/seed/track3/300/300"},
	{ID: "mock-4", Name: "Good 4 U", Artist: "Olivia Rodrigo", Album: "SOUR", Image: "https://picsum.photos/seed/track4/300/300"},
	{ID: "mock-5", Name: "As It Was", Artist: "Harry Styles", Album: "Harry's House", Image: "https://picsum.photos/seed/track5/300/300"},
}

// MockTracks is the offline answer used when the upstream is unavailable.
// Matches on query come first; the list is never empty.
func MockTracks(query string) []models.Music {
	q := strings.ToLower(strings.TrimSpace(query))
	matched := make([]models.Music, 0, len(mockTracks))
	rest := make([]models.Music, 0, len(mockTracks))
	for _, t := range mockTracks {
		if q != "" && (strings.Contains(strings.ToLower(t.Name), q) || strings.Contains(strings.ToLower(t.Artist), q)) {
			matched = append(matched, t)
		} else {
			rest = append(rest, t)
		}
	}
	return append(matched, rest...)
}
