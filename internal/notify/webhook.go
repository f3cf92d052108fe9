package notify

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// WebhookConfig configures delivery to the email function.
type WebhookConfig struct {
	URL     string
	Token   string
	Timeout time.Duration
}

// Webhook posts notifications as JSON to an HTTP endpoint.
type Webhook struct {
	url    string
	token  string
	client *http.Client
}

// NewWebhook creates a Webhook with an instrumented HTTP client.
func NewWebhook(cfg WebhookConfig, tp trace.TracerProvider, mp metric.MeterProvider) *Webhook {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Webhook{
		url:   cfg.URL,
		token: cfg.Token,
		client: &http.Client{
			Timeout: timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithTracerProvider(tp),
				otelhttp.WithMeterProvider(mp),
			),
		},
	}
}

// Send posts n and returns an error for transport failures and non-2xx
// responses.
func (w *Webhook) Send(ctx context.Context, n Notification) error {
	body := Encode(n)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	if w.token != "" {
		req.Header.Set("Authorization", "Bearer "+w.token)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "post notification")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Errorf("email function returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Encode renders n in the payload shape the email function expects.
func Encode(n Notification) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("orderId")
	e.Str(n.OrderID)
	e.FieldStart("customerName")
	e.Str(n.CustomerName)
	e.FieldStart("customerEmail")
	e.Str(n.CustomerEmail)
	e.FieldStart("status")
	e.Str(n.Status)
	e.FieldStart("items")
	e.ArrStart()
	for _, it := range n.Items {
		e.ObjStart()
		e.FieldStart("title")
		e.Str(it.Title)
		e.FieldStart("quantity")
		e.Int(it.Quantity)
		e.FieldStart("price")
		e.Float64(it.Price.InexactFloat64())
		e.ObjEnd()
	}
	e.ArrEnd()
	e.FieldStart("total")
	e.Float64(n.Total.InexactFloat64())
	e.ObjEnd()
	return e.Bytes()
}
