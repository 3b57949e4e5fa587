package idp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/agromano/identity-gate/internal/config"
	"github.com/agromano/identity-gate/internal/logger"
)

const (
	defaultCallTimeout = 3 * time.Second
	maxErrorBody       = 4 << 10
)

// Auth0Client implements Gateway against the Auth0 Management API v2.
type Auth0Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	log     zerolog.Logger
}

// NewAuth0Client creates a management API client. ctx bounds the token
// source and should live as long as the client.
func NewAuth0Client(ctx context.Context, cfg config.IdP) *Auth0Client {
	base := strings.TrimRight(cfg.ManagementURL, "/")
	if base == "" {
		base = "https://" + cfg.Domain
	}

	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     base + "/oauth/token",
		AuthStyle:    oauth2.AuthStyleInParams,
		EndpointParams: url.Values{
			"audience": {"https://" + cfg.Domain + "/api/v2/"},
		},
	}

	timeout := cfg.CallTimeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}

	return &Auth0Client{
		baseURL: base,
		http:    cc.Client(ctx),
		timeout: timeout,
		log:     logger.Component("idp"),
	}
}

// ListUsers implements Gateway.
func (c *Auth0Client) ListUsers(ctx context.Context, page, perPage int) (UserPage, error) {
	return c.users(ctx, "ListUsers", "", page, perPage)
}

// SearchUsers implements Gateway. query uses the provider's Lucene syntax, e.g. `email:"ana@agromano.com"`.
func (c *Auth0Client) SearchUsers(ctx context.Context, query string, page, perPage int) (UserPage, error) {
	return c.users(ctx, "SearchUsers", query, page, perPage)
}

func (c *Auth0Client) users(ctx context.Context, op, query string, page, perPage int) (UserPage, error) {
	q := url.Values{
		"page":           {strconv.Itoa(page)},
		"per_page":       {strconv.Itoa(perPage)},
		"include_totals": {"true"},
		"search_engine":  {"v3"},
	}

	if query != "" {
		q.Set("q", query)
	}

	var out UserPage
	if err := c.do(ctx, op, http.MethodGet, "/api/v2/users", q, nil, &out); err != nil {
		return UserPage{}, err
	}

	for i := range out.Users {
		out.Users[i].Source = SourceIdP
	}

	return out, nil
}

// GetUser implements Gateway.
func (c *Auth0Client) GetUser(ctx context.Context, externalID string) (User, error) {
	var u User
	if err := c.do(ctx, "GetUser", http.MethodGet, userPath(externalID), nil, nil, &u); err != nil {
		return User{}, err
	}

	u.Source = SourceIdP

	return u, nil
}

// ListRoles implements Gateway.
func (c *Auth0Client) ListRoles(ctx context.Context) ([]Role, error) {
	return c.roles(ctx, "ListRoles", "/api/v2/roles")
}

// GetUserRoles implements Gateway.
func (c *Auth0Client) GetUserRoles(ctx context.Context, externalID string) ([]Role, error) {
	return c.roles(ctx, "GetUserRoles", userPath(externalID)+"/roles")
}

func (c *Auth0Client) roles(ctx context.Context, op, path string) ([]Role, error) {
	var roles []Role
	if err := c.do(ctx, op, http.MethodGet, path, nil, nil, &roles); err != nil {
		return nil, err
	}

	for i := range roles {
		roles[i].Source = SourceIdP
	}

	return roles, nil
}

type rolesBody struct {
	Roles []string `json:"roles"`
}

// AssignRoles implements Gateway.
func (c *Auth0Client) AssignRoles(ctx context.Context, externalID string, roleIDs []string) error {
	if len(roleIDs) == 0 {
		return nil
	}

	return c.do(ctx, "AssignRoles", http.MethodPost, userPath(externalID)+"/roles", nil, rolesBody{roleIDs}, nil)
}

// RemoveRoles implements Gateway.
func (c *Auth0Client) RemoveRoles(ctx context.Context, externalID string, roleIDs []string) error {
	if len(roleIDs) == 0 {
		return nil
	}

	err := c.do(ctx, "RemoveRoles", http.MethodDelete, userPath(externalID)+"/roles", nil, rolesBody{roleIDs}, nil)

	var perr *ProviderError
	if errors.As(err, &perr) &&
		(perr.StatusCode == http.StatusMethodNotAllowed || perr.StatusCode == http.StatusNotImplemented) {
		return fmt.Errorf("RemoveRoles: %w", ErrUnsupported)
	}

	return err
}

func userPath(externalID string) string {
	return "/api/v2/users/" + url.PathEscape(externalID)
}

// do performs one bounded call and classifies its failure.
func (c *Auth0Client) do(ctx context.Context, op, method, path string, query url.Values, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader

	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: failed to encode request: %w", op, err)
		}

		body = bytes.NewReader(raw)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("%s: failed to build request: %w", op, err)
	}

	req.Header.Set("Accept", "application/json")

	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		// a rejected client credential is a configuration problem, not an outage
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) && rerr.Response != nil && !unavailableStatus(rerr.Response.StatusCode) {
			return &ProviderError{Op: op, StatusCode: rerr.Response.StatusCode, Message: "management token: " + rerr.ErrorCode}
		}

		c.log.Warn().Err(err).Str("op", op).Dur("elapsed", time.Since(start)).Msg("identity provider call failed")

		return &ProviderUnavailableError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	c.log.Debug().Str("op", op).Int("status", resp.StatusCode).Dur("elapsed", time.Since(start)).Msg("identity provider call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := errorMessage(resp.Body)

		if unavailableStatus(resp.StatusCode) {
			return &ProviderUnavailableError{Op: op, Err: fmt.Errorf("status %d: %s", resp.StatusCode, msg)}
		}

		return &ProviderError{Op: op, StatusCode: resp.StatusCode, Message: msg}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if ctx.Err() != nil {
			return &ProviderUnavailableError{Op: op, Err: err}
		}

		return &ProviderError{Op: op, StatusCode: resp.StatusCode, Message: "malformed response: " + err.Error()}
	}

	return nil
}

// errorMessage extracts the "message" field of a management API error body.
func errorMessage(r io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))

	var body struct {
		Message   string `json:"message"`
		ErrorCode string `json:"errorCode"`
	}

	if json.Unmarshal(raw, &body) == nil && body.Message != "" {
		return body.Message
	}

	return strings.TrimSpace(string(raw))
}
