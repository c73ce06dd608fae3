package session

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ValerySidorin/ferry/pkg/session/store"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
)

const (
	defaultLifetime = 3600 * time.Second
	maxErrorBody    = 4096
)

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   *int64 `json:"expires_in"`
}

// Manager hands out a valid Credential, reusing the persisted one while it
// has not expired. Token requests are serialized, so a burst of 401s from one
// batch results in a single new token.
type Manager struct {
	cfg    Config
	client *retryablehttp.Client
	store  store.Store
	log    log.Logger

	now     func() time.Time
	mtx     sync.Mutex
	current atomic.Pointer[Credential]
}

func New(cfg Config, client *retryablehttp.Client, s store.Store, logger log.Logger) *Manager {
	return &Manager{
		cfg:    cfg,
		client: client,
		store:  s,
		log:    log.With(logger, "component", "session"),
		now:    time.Now,
	}
}

// Load returns the persisted credential or nil when there is none.
func (m *Manager) Load(ctx context.Context) (*Credential, error) {
	_ = level.Debug(m.log).Log("msg", "loading persisted token")

	b, err := m.store.Get(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load credential")
	}
	if b == nil {
		return nil, nil
	}

	c := Credential{}
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, errors.Wrap(err, "load credential")
	}
	return &c, nil
}

func (m *Manager) IsExpired(c Credential) bool {
	return !m.now().Before(c.ExpiresAt)
}

// Ensure returns the persisted credential while it is valid and acquires a new
// one otherwise.
func (m *Manager) Ensure(ctx context.Context) (Credential, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	if c := m.loadValid(ctx); c != nil {
		m.current.Store(c)
		return *c, nil
	}
	return m.acquire(ctx)
}

// Current is the credential most recently handed out.
func (m *Manager) Current() (Credential, bool) {
	c := m.current.Load()
	if c == nil {
		return Credential{}, false
	}
	return *c, true
}

// Refresh replaces a credential the archive rejected. When another caller
// already stored a different valid credential it is returned instead of
// requesting yet another token.
func (m *Manager) Refresh(ctx context.Context, stale Credential) (Credential, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	if c := m.loadValid(ctx); c != nil && c.AccessToken != stale.AccessToken {
		m.current.Store(c)
		return *c, nil
	}
	return m.acquire(ctx)
}

// Acquire always requests a new token.
func (m *Manager) Acquire(ctx context.Context) (Credential, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	return m.acquire(ctx)
}

func (m *Manager) loadValid(ctx context.Context) *Credential {
	c, err := m.Load(ctx)
	if err != nil {
		_ = level.Warn(m.log).Log("msg", "ignoring unreadable persisted token", "err", err)
		return nil
	}
	if c == nil || m.IsExpired(*c) {
		return nil
	}
	return c
}

func (m *Manager) acquire(ctx context.Context) (Credential, error) {
	_ = level.Info(m.log).Log("msg", "requesting access token")

	c, err := m.requestToken(ctx)
	if err != nil {
		_ = level.Error(m.log).Log("msg", "failed to obtain access token", "err", err)
		return Credential{}, err
	}

	b, err := json.Marshal(c)
	if err != nil {
		return Credential{}, errors.Wrap(err, "encode credential")
	}
	if err := m.store.Put(ctx, b); err != nil {
		_ = level.Error(m.log).Log("msg", "failed to persist access token", "err", err)
		return Credential{}, errors.Wrap(err, "persist credential")
	}

	m.current.Store(&c)
	_ = level.Info(m.log).Log("msg", "access token obtained and saved", "expires_at", c.ExpiresAt.Format(time.RFC3339))
	return c, nil
}

func (m *Manager) requestToken(ctx context.Context) (Credential, error) {
	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("client_id", m.cfg.ClientID)
	form.Set("username", m.cfg.Username)
	form.Set("password", m.cfg.Password.String())
	form.Set("scope", m.cfg.Scope)

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, m.cfg.TokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return Credential{}, errors.Wrap(err, "create token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	requestedAt := m.now()
	resp, err := m.client.Do(req)
	if err != nil {
		return Credential{}, errors.Wrap(err, "token request")
	}
	defer resp.Body.Close()

	_ = level.Debug(m.log).Log("msg", "token endpoint responded", "status", resp.StatusCode)

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return Credential{}, errors.Errorf("token endpoint responded %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	tr := tokenResponse{}
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return Credential{}, errors.Wrap(err, "decode token response")
	}
	if tr.AccessToken == "" {
		return Credential{}, errors.New("token response has no access_token")
	}

	lifetime := defaultLifetime
	if tr.ExpiresIn != nil {
		lifetime = time.Duration(*tr.ExpiresIn) * time.Second
	}

	return Credential{
		AccessToken: tr.AccessToken,
		ExpiresAt:   requestedAt.Add(lifetime),
	}, nil
}
