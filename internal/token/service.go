package token

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/ahmethakanbesel/nse-scanner/internal/apperror"
	"github.com/ahmethakanbesel/nse-scanner/internal/market"
)

const provider = "upstox"

// Exchanger performs the OAuth authorization-code flow.
type Exchanger interface {
	LoginURL() (string, error)
	Exchange(ctx context.Context, code string) (string, error)
}

type Service struct {
	repo        Repository
	oauth       Exchanger
	envToken    string
	frontendURL string
	now         func() time.Time

	mu     sync.RWMutex
	cached *Token
	loaded bool
}

type Option func(*Service)

// WithEnvToken sets a fallback token used when nothing has been saved.
func WithEnvToken(tok string) Option {
	return func(s *Service) { s.envToken = strings.TrimSpace(tok) }
}

func WithOAuth(e Exchanger) Option {
	return func(s *Service) { s.oauth = e }
}

// WithFrontendURL sets where the browser lands after a successful login.
func WithFrontendURL(u string) Option {
	return func(s *Service) { s.frontendURL = u }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo:        repo,
		frontendURL: "http://localhost:8080",
		now:         time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// current returns the stored token, reading the repository once.
func (s *Service) current(ctx context.Context) (*Token, error) {
	s.mu.RLock()
	if s.loaded {
		t := s.cached
		s.mu.RUnlock()
		return t, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return s.cached, nil
	}
	t, err := s.repo.Latest(ctx, provider)
	if err != nil {
		return nil, fmt.Errorf("load token: %w", err)
	}
	s.cached = t
	s.loaded = true
	return t, nil
}

// AccessToken returns the token to send to the provider, or
// market.ErrUnauthorized when none is available.
func (s *Service) AccessToken(ctx context.Context) (string, error) {
	t, err := s.current(ctx)
	if err != nil {
		return "", err
	}
	if t != nil && t.AccessToken != "" {
		return t.AccessToken, nil
	}
	if s.envToken != "" {
		return s.envToken, nil
	}
	return "", fmt.Errorf("no upstox access token, complete the one-time login: %w", market.ErrUnauthorized)
}

// Save persists a new token and makes it current.
func (s *Service) Save(ctx context.Context, accessToken string) error {
	t := Token{Provider: provider, AccessToken: accessToken, SavedAt: s.now().UTC()}
	if err := s.repo.Save(ctx, t); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	s.mu.Lock()
	s.cached = &t
	s.loaded = true
	s.mu.Unlock()
	slog.Info("access token saved", "savedAt", t.SavedAt.Format(time.RFC3339))
	return nil
}

func (s *Service) Status(ctx context.Context) Status {
	t, err := s.current(ctx)
	if err != nil {
		slog.Error("token status", "error", err)
		return Status{Message: "Token store unavailable."}
	}

	if t == nil || t.AccessToken == "" {
		if s.envToken != "" {
			zero := 0.0
			return Status{Valid: true, AgeHours: &zero, SavedAt: "Unknown", Message: "Token present (no timestamp). Assuming valid."}
		}
		return Status{Message: "No token found. Complete one-time login to get started."}
	}

	age := s.now().Sub(t.SavedAt)
	hours := math.Round(age.Hours()*100) / 100
	st := Status{
		Valid:    true,
		AgeHours: &hours,
		SavedAt:  t.SavedAt.UTC().Format("02 Jan 2006 15:04 UTC"),
	}
	if age < MaxAge {
		st.Message = fmt.Sprintf("Token active, saved %.1fh ago", hours)
	} else {
		st.Message = fmt.Sprintf("Token is %.0fh old, will verify on first request", hours)
	}
	return st
}

func (s *Service) LoginURL() (*LoginURLResponse, error) {
	if s.oauth == nil {
		return nil, apperror.New(apperror.Internal, "upstox login is not configured")
	}
	u, err := s.oauth.LoginURL()
	if err != nil {
		return nil, apperror.New(apperror.Internal, err.Error())
	}
	return &LoginURLResponse{LoginURL: u}, nil
}

// Callback completes the OAuth flow and returns the URL to redirect the
// browser to.
func (s *Service) Callback(ctx context.Context, req CallbackRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	if s.oauth == nil {
		return "", apperror.New(apperror.Internal, "upstox login is not configured")
	}

	tok, err := s.oauth.Exchange(ctx, req.Code)
	if err != nil {
		slog.Error("token exchange failed", "error", err)
		return "", apperror.New(apperror.Internal, err.Error())
	}
	if err := s.Save(ctx, tok); err != nil {
		return "", err
	}
	return strings.TrimRight(s.frontendURL, "/") + "?auth=success", nil
}
