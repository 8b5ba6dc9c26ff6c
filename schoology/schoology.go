// Package schoology contains minimal helpers to interact with the Schoology
// REST API: the three-legged OAuth 1.0 handshake plus the user/section reads
// the sync flow needs. Requests are signed with the PLAINTEXT method, which
// Schoology accepts over HTTPS.
package schoology

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const defaultAPIBase = "https://api.schoology.com/v1"

// TokenPair is an OAuth 1.0 credential: the request token/secret issued at
// the start of the handshake, or the access token/secret it is exchanged for.
type TokenPair struct {
	Key    string
	Secret string
}

// Client signs and issues Schoology API requests.
type Client struct {
	ConsumerKey    string
	ConsumerSecret string

	// BaseURL overrides the API base (tests point this at httptest servers).
	BaseURL string
	// Domain is the school's Schoology hostname, e.g. "pausd.schoology.com",
	// used only for the user-facing authorize URL.
	Domain     string
	HTTPClient *http.Client
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) base() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return defaultAPIBase
}

// authHeader builds the OAuth 1.0 PLAINTEXT Authorization header. tok may be
// nil for the initial request_token call.
func (c *Client) authHeader(tok *TokenPair) string {
	nonce := make([]byte, 8)
	_, _ = rand.Read(nonce)
	v := url.Values{}
	v.Set("oauth_consumer_key", c.ConsumerKey)
	v.Set("oauth_nonce", hex.EncodeToString(nonce))
	v.Set("oauth_timestamp", strconv.FormatInt(time.Now().Unix(), 10))
	v.Set("oauth_signature_method", "PLAINTEXT")
	v.Set("oauth_version", "1.0")
	tokenSecret := ""
	if tok != nil {
		v.Set("oauth_token", tok.Key)
		tokenSecret = tok.Secret
	}
	v.Set("oauth_signature", url.QueryEscape(c.ConsumerSecret)+"%26"+url.QueryEscape(tokenSecret))
	header := `OAuth realm="Schoology API"`
	for key, vals := range v {
		header += fmt.Sprintf(`,%s=%q`, key, vals[0])
	}
	return header
}

func (c *Client) do(ctx context.Context, path string, tok *TokenPair, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base()+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", c.authHeader(tok))
	req.Header.Set("Accept", "application/json")
	resp, err := c.http().Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("schoology %s failed: %s: %s", path, resp.Status, string(b))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// doToken fetches one of the two oauth token endpoints, which respond with a
// urlencoded body rather than JSON.
func (c *Client) doToken(ctx context.Context, path string, tok *TokenPair) (TokenPair, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base()+path, nil)
	if err != nil {
		return TokenPair{}, err
	}
	req.Header.Set("Authorization", c.authHeader(tok))
	resp, err := c.http().Do(req)
	if err != nil {
		return TokenPair{}, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return TokenPair{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return TokenPair{}, fmt.Errorf("schoology %s failed: %s: %s", path, resp.Status, string(b))
	}
	vals, err := url.ParseQuery(string(b))
	if err != nil {
		return TokenPair{}, fmt.Errorf("parse token response: %w", err)
	}
	pair := TokenPair{Key: vals.Get("oauth_token"), Secret: vals.Get("oauth_token_secret")}
	if pair.Key == "" || pair.Secret == "" {
		return TokenPair{}, errors.New("empty token in schoology response")
	}
	return pair, nil
}

// RequestToken starts the handshake and returns an unauthorized request
// token.
func (c *Client) RequestToken(ctx context.Context) (TokenPair, error) {
	if c.ConsumerKey == "" || c.ConsumerSecret == "" {
		return TokenPair{}, errors.New("missing schoology consumer key/secret")
	}
	return c.doToken(ctx, "/oauth/request_token", nil)
}

// AccessToken exchanges an authorized request token for an access token.
func (c *Client) AccessToken(ctx context.Context, request TokenPair) (TokenPair, error) {
	if request.Key == "" || request.Secret == "" {
		return TokenPair{}, errors.New("missing request token/secret")
	}
	return c.doToken(ctx, "/oauth/access_token", &request)
}

// AuthorizeURL is where the user approves the request token; Schoology
// redirects to callback afterwards.
func (c *Client) AuthorizeURL(requestToken, callback string) string {
	v := url.Values{}
	v.Set("oauth_token", requestToken)
	v.Set("oauth_callback", callback)
	return "https://" + c.Domain + "/oauth/authorize?" + v.Encode()
}

// AppUserInfo resolves the access token to the external user id. A zero uid
// means the token doesn't map to a usable account.
func (c *Client) AppUserInfo(ctx context.Context, tok TokenPair) (int64, error) {
	var body struct {
		APIUID int64 `json:"api_uid"`
	}
	if err := c.do(ctx, "/app-user-info", &tok, &body); err != nil {
		return 0, err
	}
	return body.APIUID, nil
}

// User is the subset of profile fields we read.
type User struct {
	UID       int64  `json:"uid,string"`
	NameFirst string `json:"name_first"`
	NameLast  string `json:"name_last"`
}

// GetUser fetches a user profile.
func (c *Client) GetUser(ctx context.Context, tok TokenPair, uid int64) (*User, error) {
	var u User
	if err := c.do(ctx, fmt.Sprintf("/users/%d", uid), &tok, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Section is one enrolled section: the id drives the cohort gate, the title
// feeds the schedule parser.
type Section struct {
	ID    string `json:"id"`
	Title string `json:"section_title"`
}

// ListSections fetches the user's enrolled sections.
func (c *Client) ListSections(ctx context.Context, tok TokenPair, uid int64) ([]Section, error) {
	var body struct {
		Section []Section `json:"section"`
	}
	if err := c.do(ctx, fmt.Sprintf("/users/%d/sections", uid), &tok, &body); err != nil {
		return nil, err
	}
	return body.Section, nil
}
