package syncproto

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	EditPath  = "/record/edit/"
	LoginPath = "/login"
)

// LoginResponse is the body of a successful login.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// HTTPTransport posts requests as the form field "jsondata". When User is set
// it logs in on first use and again after the service rejects the session.
type HTTPTransport struct {
	BaseURL string
	User    string
	Client  *http.Client

	mu    sync.Mutex
	token string
}

func NewHTTPTransport(baseURL, user string, timeout time.Duration) *HTTPTransport {
	return &HTTPTransport{
		BaseURL: strings.TrimRight(baseURL, "/"),
		User:    user,
		Client:  &http.Client{Timeout: timeout},
	}
}

func (t *HTTPTransport) httpClient() *http.Client {
	if t.Client != nil {
		return t.Client
	}
	return http.DefaultClient
}

func (t *HTTPTransport) RoundTrip(ctx context.Context, req Request) (Response, error) {
	token, err := t.session(ctx)
	if err != nil {
		return Response{}, err
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return Response{}, err
	}
	form := url.Values{"jsondata": {string(payload)}}
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.BaseURL+EditPath, strings.NewReader(form.Encode()))
	if err != nil {
		return Response{}, err
	}
	hreq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if token != "" {
		hreq.Header.Set("Authorization", "Bearer "+token)
	}

	hresp, err := t.httpClient().Do(hreq)
	if err != nil {
		return Response{}, err
	}
	defer hresp.Body.Close()

	var resp Response
	if err := json.NewDecoder(io.LimitReader(hresp.Body, 32<<20)).Decode(&resp); err != nil {
		return Response{}, fmt.Errorf("decode response (%s): %w", hresp.Status, err)
	}
	if resp.ResultText == SessionExpired {
		t.mu.Lock()
		if t.token == token {
			t.token = ""
		}
		t.mu.Unlock()
	}
	return resp, nil
}

func (t *HTTPTransport) session(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.token != "" || t.User == "" {
		return t.token, nil
	}
	lr, err := t.login(ctx)
	if err != nil {
		return "", err
	}
	t.token = lr.Token
	return t.token, nil
}

func (t *HTTPTransport) login(ctx context.Context) (LoginResponse, error) {
	form := url.Values{"user": {t.User}}
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.BaseURL+LoginPath, strings.NewReader(form.Encode()))
	if err != nil {
		return LoginResponse{}, err
	}
	hreq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	hresp, err := t.httpClient().Do(hreq)
	if err != nil {
		return LoginResponse{}, fmt.Errorf("login: %w", err)
	}
	defer hresp.Body.Close()
	if hresp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(hresp.Body, 4096))
		return LoginResponse{}, fmt.Errorf("login: %s: %s", hresp.Status, strings.TrimSpace(string(b)))
	}
	var lr LoginResponse
	if err := json.NewDecoder(hresp.Body).Decode(&lr); err != nil {
		return LoginResponse{}, fmt.Errorf("login: decode: %w", err)
	}
	return lr, nil
}
