// Package apiclient is the gateway to the remote appointment API. It injects
// the base URL, bearer token and request id into every call and maps error
// bodies onto pkg/errors.
package apiclient

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

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/jwalitptl/appointment-web/internal/model"
	"github.com/jwalitptl/appointment-web/pkg/circuitbreaker"
	apperrors "github.com/jwalitptl/appointment-web/pkg/errors"
	"github.com/jwalitptl/appointment-web/pkg/logger"
	"github.com/jwalitptl/appointment-web/pkg/metrics"
)

const maxErrorBody = 64 << 10

type Config struct {
	BaseURL string
	// Token is sent when the incoming request carried no token of its own.
	Token     string
	Transport http.RoundTripper
	// Breaker, when set, short-circuits calls while the API keeps failing.
	Breaker *circuitbreaker.CircuitBreaker
	Metrics *metrics.Metrics
	Logger  *logger.Logger
}

type Client struct {
	baseURL *url.URL
	http    *http.Client
	token   string
	breaker *circuitbreaker.CircuitBreaker
	metrics *metrics.Metrics
	log     *logger.Logger
}

func New(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse api base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("api base url %q must be absolute", cfg.BaseURL)
	}

	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}

	return &Client{
		baseURL: base,
		// No Timeout: calls end when the transport fails or the caller's
		// context is cancelled.
		http:    &http.Client{Transport: otelhttp.NewTransport(transport)},
		token:   cfg.Token,
		breaker: cfg.Breaker,
		metrics: cfg.Metrics,
		log:     log,
	}, nil
}

type tokenKey struct{}

// WithToken attaches the caller's bearer token to ctx.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

func (c *Client) tokenFor(ctx context.Context) string {
	if t, ok := ctx.Value(tokenKey{}).(string); ok && t != "" {
		return t
	}
	return c.token
}

// BookAppointment sends POST /appointment/book.
func (c *Client) BookAppointment(ctx context.Context, req model.BookingRequest) (*model.Appointment, error) {
	var apt model.Appointment
	if err := c.do(ctx, "book", http.MethodPost, "/appointment/book", req, &apt); err != nil {
		return nil, err
	}
	return &apt, nil
}

// GetAppointment sends GET /appointment/:id. A 2xx answer without a document
// yields (nil, nil).
func (c *Client) GetAppointment(ctx context.Context, id string) (*model.Appointment, error) {
	var apt *model.Appointment
	if err := c.do(ctx, "get_appointment", http.MethodGet, "/appointment/"+url.PathEscape(id), nil, &apt); err != nil {
		return nil, err
	}
	return apt, nil
}

// ListAppointments returns the appointments of the current viewer.
func (c *Client) ListAppointments(ctx context.Context, role model.Role) ([]model.Appointment, error) {
	if !role.Valid() {
		return nil, apperrors.BadRequest(fmt.Sprintf("unknown role %q", role), nil)
	}
	var apts []model.Appointment
	path := "/appointment/" + string(role) + "/appointments"
	if err := c.do(ctx, "list_appointments", http.MethodGet, path, nil, &apts); err != nil {
		return nil, err
	}
	return apts, nil
}

// UpdateStatus sends PATCH /appointment/doctor/status/:id.
func (c *Client) UpdateStatus(ctx context.Context, id string, status model.AppointmentStatus) (*model.Appointment, error) {
	var apt model.Appointment
	path := "/appointment/doctor/status/" + url.PathEscape(id)
	if err := c.do(ctx, "update_status", http.MethodPatch, path, model.StatusUpdateRequest{Status: status}, &apt); err != nil {
		return nil, err
	}
	return &apt, nil
}

// Reschedule sends PATCH /appointment/reschedule/:id.
func (c *Client) Reschedule(ctx context.Context, id string, req model.RescheduleRequest) (*model.Appointment, error) {
	var apt model.Appointment
	path := "/appointment/reschedule/" + url.PathEscape(id)
	if err := c.do(ctx, "reschedule", http.MethodPatch, path, req, &apt); err != nil {
		return nil, err
	}
	return &apt, nil
}

func (c *Client) GetDoctor(ctx context.Context, id string) (*model.Doctor, error) {
	var doc model.Doctor
	if err := c.do(ctx, "get_doctor", http.MethodGet, "/doctor/get-doctor/"+url.PathEscape(id), nil, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (c *Client) GetPatient(ctx context.Context, id string) (*model.Patient, error) {
	var p model.Patient
	if err := c.do(ctx, "get_patient", http.MethodGet, "/patient/get-patient/"+url.PathEscape(id), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListDoctors returns the doctors offered in the booking form.
func (c *Client) ListDoctors(ctx context.Context) ([]model.Doctor, error) {
	var docs []model.Doctor
	if err := c.do(ctx, "list_doctors", http.MethodGet, "/doctor/get-doctors", nil, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out interface{}) error {
	if c.breaker == nil {
		return c.send(ctx, op, method, path, body, out)
	}
	err := c.breaker.Execute(func() error {
		return c.send(ctx, op, method, path, body, out)
	})
	if errors.Is(err, circuitbreaker.ErrOpen) {
		c.log.WithContext(ctx).Warn(err, "appointment api call skipped", "operation", op)
		return apperrors.NewTransport(err)
	}
	return err
}

// BreakerFailure reports whether err says the appointment API is unhealthy.
// Rejections of the request itself do not count.
func BreakerFailure(err error) bool {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		return false
	}
	switch appErr.Code {
	case apperrors.ErrTransport:
		return true
	case apperrors.ErrUpstream:
		return appErr.Status >= http.StatusInternalServerError
	default:
		return false
	}
}

func (c *Client) send(ctx context.Context, op, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return apperrors.Internal(fmt.Errorf("marshal %s request: %w", op, err))
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return apperrors.Internal(fmt.Errorf("build %s request: %w", op, err))
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.tokenFor(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if rid, ok := ctx.Value(logger.RequestIDKey).(string); ok && rid != "" {
		req.Header.Set("X-Request-ID", rid)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	c.observe(op, start, resp)
	if err != nil {
		c.log.WithContext(ctx).Error(err, "appointment api call failed", "operation", op)
		return apperrors.NewTransport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := errorMessage(resp.Body)
		c.log.WithContext(ctx).Warn(nil, "appointment api rejected request",
			"operation", op, "status", resp.StatusCode, "message", msg)
		return apperrors.NewUpstream(resp.StatusCode, msg)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperrors.NewTransport(fmt.Errorf("read %s response: %w", op, err))
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return apperrors.Internal(fmt.Errorf("decode %s response: %w", op, err))
	}
	return nil
}

func (c *Client) observe(op string, start time.Time, resp *http.Response) {
	if c.metrics == nil {
		return
	}
	status := "error"
	if resp != nil {
		status = strconv.Itoa(resp.StatusCode)
	}
	c.metrics.UpstreamRequests.WithLabelValues(op, status).Inc()
	c.metrics.UpstreamLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// errorMessage pulls the optional "message" field out of an error body.
func errorMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil {
		return ""
	}
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}
	return strings.TrimSpace(body.Message)
}
