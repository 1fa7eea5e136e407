package captcha

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	turnstileEndpoint = "https://challenges.cloudflare.com/turnstile/v0/siteverify"
	hcaptchaEndpoint  = "https://api.hcaptcha.com/siteverify"

	// Hard ceiling on one provider round trip. Past it the challenge is
	// treated as failed, never retried here.
	defaultTimeout = 10 * time.Second
)

// Result carries the provider verdict plus diagnostic metadata from the
// siteverify response. Only Success matters for enforcement.
type Result struct {
	Success     bool
	ErrorCodes  []string
	ChallengeTS string
	Hostname    string
}

// Verifier is the provider contract. Both providers expose it identically;
// callers pick one per request through [Picker].
type Verifier interface {
	Name() string
	Verify(ctx context.Context, token, clientIP string) Result
}

// Config defines a public type used by goShield APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Secret   string
	Disabled bool

	// Endpoint overrides the provider URL. Tests only.
	Endpoint string
	// Timeout overrides the default 10s request ceiling.
	Timeout time.Duration
	// HTTPClient overrides the default client. Timeout is ignored when set.
	HTTPClient *http.Client
}

// Client verifies challenge tokens against one external provider.
type Client struct {
	name     string
	endpoint string
	secret   string
	disabled bool
	http     *http.Client
}

// NewTurnstile creates a client for the primary provider.
func NewTurnstile(cfg Config) *Client {
	return newClient("turnstile", turnstileEndpoint, cfg)
}

// NewHCaptcha creates a client for the secondary provider.
func NewHCaptcha(cfg Config) *Client {
	return newClient("hcaptcha", hcaptchaEndpoint, cfg)
}

func newClient(name, endpoint string, cfg Config) *Client {
	if cfg.Endpoint != "" {
		endpoint = cfg.Endpoint
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	disabled := cfg.Disabled
	if !disabled && cfg.Secret == "" {
		disabled = true
		log.Print("goShield: " + name + " has no secret configured, verification disabled")
	}

	return &Client{
		name:     name,
		endpoint: endpoint,
		secret:   cfg.Secret,
		disabled: disabled,
		http:     httpClient,
	}
}

// Name identifies the provider in logs and audit events.
func (c *Client) Name() string {
	return c.name
}

// Disabled reports whether the client passes all tokens without a provider
// round trip.
func (c *Client) Disabled() bool {
	return c == nil || c.disabled
}

type siteverifyResponse struct {
	Success     bool     `json:"success"`
	ErrorCodes  []string `json:"error-codes"`
	ChallengeTS string   `json:"challenge_ts"`
	Hostname    string   `json:"hostname"`
}

// Verify submits token and the server-held secret to the provider and
// reports the verdict. All failure modes resolve to Success == false.
func (c *Client) Verify(ctx context.Context, token, clientIP string) Result {
	if c.Disabled() {
		return Result{Success: true}
	}

	form := url.Values{}
	form.Set("secret", c.secret)
	form.Set("response", token)
	if clientIP != "" {
		form.Set("remoteip", clientIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		log.Print("goShield: " + c.name + " verification request build failed")
		return Result{}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		log.Print("goShield: " + c.name + " verification request failed")
		return Result{}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("goShield: %s verification returned status %d", c.name, resp.StatusCode)
		return Result{}
	}

	var out siteverifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		log.Print("goShield: " + c.name + " verification response decode failed")
		return Result{}
	}

	if !out.Success && len(out.ErrorCodes) > 0 {
		log.Printf("goShield: %s verification rejected: %s", c.name, strings.Join(out.ErrorCodes, ","))
	}

	return Result{
		Success:     out.Success,
		ErrorCodes:  out.ErrorCodes,
		ChallengeTS: out.ChallengeTS,
		Hostname:    out.Hostname,
	}
}
