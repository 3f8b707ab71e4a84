// Package sms delivers text messages through an HTTP SMS gateway.
package sms

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/oauth2/clientcredentials"

	"carealert/internal/config"
)

// messageRequest is the gateway's send-message body.
type messageRequest struct {
	To   string `json:"to"`
	From string `json:"from"`
	Body string `json:"body"`
}

type messageResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Gateway sends SMS through a JSON HTTP API. It authenticates with basic
// auth (account SID and token) or with OAuth2 client credentials.
type Gateway struct {
	client *resty.Client
	from   string
}

// NewGateway creates a gateway client. Callers check cfg.SMSConfigError first.
func NewGateway(cfg *config.Config) *Gateway {
	var client *resty.Client
	if cfg.UsesSMSOAuth() {
		cc := &clientcredentials.Config{
			ClientID:     cfg.SMSClientID,
			ClientSecret: cfg.SMSClientSecret,
			TokenURL:     cfg.SMSTokenURL,
		}
		client = resty.NewWithClient(cc.Client(context.Background()))
	} else {
		client = resty.New().SetBasicAuth(cfg.SMSAccountSID, cfg.SMSAuthToken)
	}

	client.
		SetBaseURL(cfg.SMSAPIURL).
		SetTimeout(15*time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(200*time.Millisecond).
		SetRetryMaxWaitTime(time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return r != nil && r.StatusCode() >= http.StatusInternalServerError
		}).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	slog.Info("sms notifications enabled", "provider", "http", "oauth", cfg.UsesSMSOAuth())
	return &Gateway{client: client, from: cfg.SMSFrom}
}

// Send delivers one message. subject is not used for SMS.
func (g *Gateway) Send(ctx context.Context, recipient, subject, body string) error {
	if recipient == "" {
		return fmt.Errorf("no recipient")
	}

	var result messageResponse
	var apiErr errorResponse
	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(messageRequest{To: recipient, From: g.from, Body: body}).
		SetResult(&result).
		SetError(&apiErr).
		Post("/messages")
	if err != nil {
		return fmt.Errorf("sms gateway request: %w", err)
	}

	if resp.IsError() {
		if apiErr.Message != "" {
			return fmt.Errorf("sms gateway status %d: %s", resp.StatusCode(), apiErr.Message)
		}
		return fmt.Errorf("sms gateway status %d", resp.StatusCode())
	}

	slog.Debug("sms accepted by gateway", "message_id", result.ID, "status", result.Status)
	return nil
}
