package identity

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/apierr"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/metrics"
	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// SupabaseConfig configures SupabaseProvider.
type SupabaseConfig struct {
	URL     string // project URL, e.g. https://abc.supabase.co
	AnonKey string // sent as the apikey header

	// Breaker tuning. Zero values use the defaults below.
	FailureThreshold uint32
	OpenTimeout      time.Duration

	HTTPClient *http.Client
}

const (
	defaultFailureThreshold = 5
	defaultOpenTimeout      = 30 * time.Second
)

// SupabaseProvider verifies tokens with Supabase Auth (GoTrue).
//
// Verify runs behind a circuit breaker: consecutive transport or 5xx
// failures open it, and while open every call fails fast with
// ErrUnavailable. Rejected tokens do not count as failures.
type SupabaseProvider struct {
	base    string
	anonKey string
	http    *http.Client
	cb      *gobreaker.CircuitBreaker[Identity]
	log     *zap.Logger
}

// NewSupabaseProvider builds a provider for cfg.
func NewSupabaseProvider(cfg SupabaseConfig, logger *zap.Logger) *SupabaseProvider {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = defaultFailureThreshold
	}
	openFor := cfg.OpenTimeout
	if openFor <= 0 {
		openFor = defaultOpenTimeout
	}

	const name = "supabase-auth"
	metrics.IdentityBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[Identity](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     openFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, ErrUnavailable)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("identity provider breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			metrics.IdentityBreakerState.WithLabelValues(name).Set(stateValue(to))
		},
	})

	return &SupabaseProvider{
		base:    strings.TrimRight(cfg.URL, "/"),
		anonKey: cfg.AnonKey,
		http:    client,
		cb:      cb,
		log:     logger,
	}
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

func (p *SupabaseProvider) Name() string { return "supabase" }

type supabaseUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Verify asks Supabase who owns credential.
func (p *SupabaseProvider) Verify(ctx context.Context, credential string) (Identity, error) {
	if credential == "" {
		return Identity{}, ErrNoCredential
	}
	id, err := p.cb.Execute(func() (Identity, error) {
		return p.fetchUser(ctx, credential)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = ErrUnavailable
	}
	if errors.Is(err, ErrUnavailable) {
		p.log.Warn("identity provider unavailable", zap.Error(err))
	}
	observe(p.Name(), err)
	return id, err
}

func (p *SupabaseProvider) fetchUser(ctx context.Context, credential string) (Identity, error) {
	// oauth2 attaches the bearer token; the base client carries timeouts.
	client := oauth2.NewClient(
		context.WithValue(ctx, oauth2.HTTPClient, p.http),
		oauth2.StaticTokenSource(&oauth2.Token{AccessToken: credential, TokenType: "Bearer"}),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.base+"/auth/v1/user", nil)
	if err != nil {
		return Identity{}, err
	}
	req.Header.Set("apikey", p.anonKey)

	resp, err := client.Do(req)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var u supabaseUser
		if err := json.NewDecoder(resp.Body).Decode(&u); err != nil || u.ID == "" {
			return Identity{}, fmt.Errorf("%w: malformed user response", ErrUnavailable)
		}
		return Identity{Subject: u.ID, Email: NormalizeEmail(u.Email)}, nil
	case isServerSide(resp.StatusCode):
		return Identity{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	default:
		return Identity{}, ErrInvalidCredential
	}
}

func isServerSide(status int) bool {
	return status >= 500 || status == http.StatusTooManyRequests
}

type supabaseAuthResponse struct {
	AccessToken string        `json:"access_token"`
	ExpiresIn   int64         `json:"expires_in"`
	User        *supabaseUser `json:"user"`

	// Signup with email confirmation enabled returns the user at top level.
	ID    string `json:"id"`
	Email string `json:"email"`

	Msg              string `json:"msg"`
	ErrorDescription string `json:"error_description"`
}

func (r supabaseAuthResponse) identity() Identity {
	if r.User != nil {
		return Identity{Subject: r.User.ID, Email: NormalizeEmail(r.User.Email)}
	}
	return Identity{Subject: r.ID, Email: NormalizeEmail(r.Email)}
}

func (r supabaseAuthResponse) message() string {
	if r.Msg != "" {
		return r.Msg
	}
	return r.ErrorDescription
}

func (p *SupabaseProvider) post(ctx context.Context, path string, body any) (int, supabaseAuthResponse, error) {
	buf, err := json.Marshal(body)
	if err != nil {
		return 0, supabaseAuthResponse{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.base+path, bytes.NewReader(buf))
	if err != nil {
		return 0, supabaseAuthResponse{}, err
	}
	req.Header.Set("apikey", p.anonKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return 0, supabaseAuthResponse{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, supabaseAuthResponse{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	var out supabaseAuthResponse
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out)
	}
	if isServerSide(resp.StatusCode) {
		return resp.StatusCode, out, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	return resp.StatusCode, out, nil
}

// SignUp registers a user with Supabase.
func (p *SupabaseProvider) SignUp(ctx context.Context, email, password string) (Identity, error) {
	status, out, err := p.post(ctx, "/auth/v1/signup", map[string]string{
		"email":    NormalizeEmail(email),
		"password": password,
	})
	if err != nil {
		return Identity{}, err
	}
	if status != http.StatusOK {
		msg := out.message()
		if strings.Contains(strings.ToLower(msg), "already registered") {
			return Identity{}, ErrEmailTaken
		}
		if msg == "" {
			msg = "signup rejected by identity provider"
		}
		return Identity{}, apierr.New(apierr.Validation, msg)
	}
	id := out.identity()
	if id.Subject == "" {
		return Identity{}, fmt.Errorf("%w: malformed signup response", ErrUnavailable)
	}
	return id, nil
}

// SignIn exchanges email and password for a Supabase access token.
func (p *SupabaseProvider) SignIn(ctx context.Context, email, password string) (Session, error) {
	status, out, err := p.post(ctx, "/auth/v1/token?grant_type=password", map[string]string{
		"email":    NormalizeEmail(email),
		"password": password,
	})
	if err != nil {
		return Session{}, err
	}
	if status != http.StatusOK || out.AccessToken == "" {
		return Session{}, ErrBadLogin
	}
	return Session{
		AccessToken: out.AccessToken,
		ExpiresAt:   time.Now().Add(time.Duration(out.ExpiresIn) * time.Second),
		Identity:    out.identity(),
	}, nil
}
