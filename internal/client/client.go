// Package client talks to the backend users resource.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/userdir/internal/logger"
	"github.com/dtroode/userdir/internal/model"
	"github.com/dtroode/userdir/internal/requestid"
	"github.com/dtroode/userdir/internal/wire"
)

const usersPath = "users"

var _ model.UserAPI = (*Client)(nil)

// Client performs REST calls against the users resource.
type Client struct {
	baseURL        *url.URL
	http           *http.Client
	contextManager model.ContextManager
	metrics        *Metrics
	logger         *logger.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithMetrics records call outcomes on m.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithContextManager sets where request ids are read from.
func WithContextManager(cm model.ContextManager) Option {
	return func(c *Client) { c.contextManager = cm }
}

// New creates a Client for the backend at baseURL.
// The default http.Client has no timeout; the transport's own defaults apply.
func New(baseURL string, logger *logger.Logger, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}

	c := &Client{
		baseURL:        u,
		http:           &http.Client{},
		contextManager: requestid.NewManager(),
		logger:         logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// List fetches every user in server order.
func (c *Client) List(ctx context.Context) (users []model.User, err error) {
	ctx = c.withRequestID(ctx)
	defer c.track(ctx, model.OpList, 0, time.Now(), &err)

	body, err := c.do(ctx, model.OpList, 0, http.MethodGet, c.collectionURL(), nil, "")
	if err != nil {
		return nil, err
	}

	users, err = wire.DecodeUsers(body)
	if err != nil {
		return nil, tagMalformed(model.OpList, err)
	}
	return users, nil
}

// Get fetches a single user.
func (c *Client) Get(ctx context.Context, id int64) (user model.User, err error) {
	ctx = c.withRequestID(ctx)
	defer c.track(ctx, model.OpGet, id, time.Now(), &err)

	body, err := c.do(ctx, model.OpGet, id, http.MethodGet, c.itemURL(id), nil, "")
	if err != nil {
		return model.User{}, err
	}
	return c.decodeOne(model.OpGet, body)
}

// Create validates rec and posts it as a multipart form.
func (c *Client) Create(ctx context.Context, rec model.NewRecord) (user model.User, err error) {
	ctx = c.withRequestID(ctx)
	defer c.track(ctx, model.OpCreate, 0, time.Now(), &err)

	form, err := wire.EncodeNew(rec)
	if err != nil {
		return model.User{}, err
	}
	return c.submit(ctx, model.OpCreate, 0, http.MethodPost, c.collectionURL(), form)
}

// Update validates rec and puts it as a multipart form.
func (c *Client) Update(ctx context.Context, rec model.ExistingRecord) (user model.User, err error) {
	ctx = c.withRequestID(ctx)
	defer c.track(ctx, model.OpUpdate, rec.ID, time.Now(), &err)

	form, err := wire.EncodeExisting(rec)
	if err != nil {
		return model.User{}, err
	}
	return c.submit(ctx, model.OpUpdate, rec.ID, http.MethodPut, c.itemURL(rec.ID), form)
}

// Delete removes a user and echoes its id.
func (c *Client) Delete(ctx context.Context, id int64) (deleted int64, err error) {
	ctx = c.withRequestID(ctx)
	defer c.track(ctx, model.OpDelete, id, time.Now(), &err)

	if _, err := c.do(ctx, model.OpDelete, id, http.MethodDelete, c.itemURL(id), nil, ""); err != nil {
		return 0, err
	}
	return id, nil
}

// PhotoURL joins the base URL and a stored photo path.
func (c *Client) PhotoURL(photoPath string) string {
	return c.resolve(strings.TrimLeft(photoPath, "/"))
}

// FetchPhoto downloads a stored photo.
func (c *Client) FetchPhoto(ctx context.Context, photoPath string) ([]byte, string, error) {
	if photoPath == "" {
		return nil, "", errors.New("photo path is empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.PhotoURL(photoPath), nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to build photo request: %w", err)
	}
	req.Header.Set(requestid.Header, c.requestID(ctx).String())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch photo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("failed to fetch photo: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read photo: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return data, contentType, nil
}

func (c *Client) submit(ctx context.Context, op model.Operation, id int64, method, target string, form *wire.Form) (model.User, error) {
	body, contentType, err := form.Body()
	if err != nil {
		return model.User{}, &model.TransportError{Op: op, Message: op.DefaultMessage(), Err: err}
	}

	respBody, err := c.do(ctx, op, id, method, target, body, contentType)
	if err != nil {
		return model.User{}, err
	}
	return c.decodeOne(op, respBody)
}

func (c *Client) decodeOne(op model.Operation, body []byte) (model.User, error) {
	u, err := wire.DecodeUser(body)
	if err != nil {
		return model.User{}, tagMalformed(op, err)
	}
	return u, nil
}

func (c *Client) do(ctx context.Context, op model.Operation, id int64, method, target string, body io.Reader, contentType string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, &model.TransportError{Op: op, Message: op.DefaultMessage(), Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(requestid.Header, c.requestID(ctx).String())
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &model.TransportError{Op: op, Message: op.DefaultMessage(), Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &model.TransportError{Op: op, StatusCode: resp.StatusCode, Message: op.DefaultMessage(), Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(op, id, resp.StatusCode, respBody)
	}
	return respBody, nil
}

func (c *Client) track(ctx context.Context, op model.Operation, id int64, start time.Time, errp *error) {
	err := *errp
	c.metrics.observe(op, start, err)

	attrs := []any{
		"operation", string(op),
		"request_id", c.requestID(ctx).String(),
		"duration_ms", time.Since(start).Milliseconds(),
	}
	if id != 0 {
		attrs = append(attrs, "user_id", id)
	}

	if err != nil {
		c.logger.Warn("backend call failed", append(attrs, "error", err)...)
		return
	}
	c.logger.Debug("backend call succeeded", attrs...)
}

func (c *Client) withRequestID(ctx context.Context) context.Context {
	if _, ok := c.contextManager.GetRequestIDFromContext(ctx); ok {
		return ctx
	}
	return c.contextManager.SetRequestIDToContext(ctx, uuid.New())
}

func (c *Client) requestID(ctx context.Context) uuid.UUID {
	if id, ok := c.contextManager.GetRequestIDFromContext(ctx); ok {
		return id
	}
	return uuid.New()
}

func (c *Client) collectionURL() string {
	return c.resolve(usersPath)
}

func (c *Client) itemURL(id int64) string {
	return c.resolve(usersPath, strconv.FormatInt(id, 10))
}

func (c *Client) resolve(elem ...string) string {
	return c.baseURL.JoinPath(elem...).String()
}
