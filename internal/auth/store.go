package auth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/nhle/email-copilot/internal/credential"
	"github.com/nhle/email-copilot/internal/mail"
	"github.com/nhle/email-copilot/internal/model"
	"github.com/nhle/email-copilot/internal/store"
)

// Scopes requested during authorization.
var Scopes = []string{
	"https://mail.google.com/",
	"https://www.googleapis.com/auth/userinfo.email",
	"openid",
}

// Store owns the OAuth2 credential, the application identity and the
// optional password-based account. It is the only holder of token material;
// everything else receives a mail.Login.
type Store struct {
	docs  store.Documents
	cfg   model.OAuthConfig
	vault *credential.Vault

	getenv     func(string) string
	now        func() time.Time
	httpClient *http.Client
	endpoint   oauth2.Endpoint
	log        *log.Logger

	mu               sync.Mutex
	identity         *ApplicationIdentity
	identityResolved bool

	refreshMu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithEnv replaces os.Getenv for identity and address resolution.
func WithEnv(getenv func(string) string) Option {
	return func(s *Store) { s.getenv = getenv }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithHTTPClient sets the client used for token endpoint calls.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Store) { s.httpClient = c }
}

// WithEndpoint overrides the provider endpoint.
func WithEndpoint(ep oauth2.Endpoint) Option {
	return func(s *Store) { s.endpoint = ep }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithVault enables the password-based account and keeps secrets (the
// account password, the OAuth client secret) in v.
func WithVault(v *credential.Vault) Option {
	return func(s *Store) { s.vault = v }
}

// NewStore creates a credential store over docs.
func NewStore(docs store.Documents, cfg model.OAuthConfig, opts ...Option) *Store {
	s := &Store{
		docs:     docs,
		cfg:      cfg,
		getenv:   os.Getenv,
		now:      time.Now,
		endpoint: google.Endpoint,
		log:      log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		s.httpClient = &http.Client{Timeout: timeout}
	}
	s.log = s.log.With("component", "auth")
	return s
}

func (s *Store) oauthConfig(id *ApplicationIdentity) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     id.ClientID,
		ClientSecret: id.ClientSecret,
		Endpoint:     s.endpoint,
		RedirectURL:  s.cfg.RedirectURL,
		Scopes:       Scopes,
	}
}

func (s *Store) httpContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
}

// AuthorizationURL returns the provider login URL. It requests offline
// access and forces the consent screen so that a refresh token is issued
// even on repeat logins.
func (s *Store) AuthorizationURL(ctx context.Context) (string, error) {
	id, err := s.Identity(ctx)
	if err != nil {
		return "", err
	}
	if id == nil {
		return "", missingIdentity()
	}

	state := uuid.NewString()
	pending := pendingState{State: state, ExpiresAt: s.now().Add(stateTTL)}
	if err := store.PutJSON(ctx, s.docs, store.KeyOAuthState, pending); err != nil {
		return "", fmt.Errorf("saving authorization state: %w", err)
	}

	return s.oauthConfig(id).AuthCodeURL(
		state,
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	), nil
}

// stateTTL bounds how long an authorization URL can be completed.
const stateTTL = 15 * time.Minute

type pendingState struct {
	State     string    `json:"state"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ExchangeCallback completes a browser redirect. The state must match the
// one issued by the latest AuthorizationURL; it is consumed on use.
func (s *Store) ExchangeCallback(ctx context.Context, code, state string) (*Credential, error) {
	if err := s.consumeState(ctx, state); err != nil {
		return nil, err
	}
	return s.ExchangeCode(ctx, code)
}

func (s *Store) consumeState(ctx context.Context, state string) error {
	var pending pendingState
	matched := false
	err := store.UpdateJSON(ctx, s.docs, store.KeyOAuthState, func(p *pendingState, found bool) error {
		if !found {
			return store.ErrNoChange
		}
		pending = *p
		if state == "" || subtle.ConstantTimeCompare([]byte(state), []byte(p.State)) != 1 {
			return store.ErrNoChange
		}
		matched = true
		*p = pendingState{}
		return nil
	})
	if err != nil {
		return fmt.Errorf("checking authorization state: %w", err)
	}

	switch {
	case !matched:
		s.log.Warn("rejected oauth callback with unknown state")
		return &AuthenticationError{Reason: "authorization state does not match; start again with get-authorization-url"}
	case !s.now().Before(pending.ExpiresAt):
		return &AuthenticationError{Reason: "authorization request expired"}
	}
	return nil
}

// ExchangeCode trades an authorization code for a credential, persists it
// and records the mailbox address carried by the identity token.
func (s *Store) ExchangeCode(ctx context.Context, code string) (*Credential, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, &AuthenticationError{Reason: "authorization code is empty"}
	}

	id, err := s.Identity(ctx)
	if err != nil {
		return nil, err
	}
	if id == nil {
		return nil, missingIdentity()
	}

	tok, err := s.oauthConfig(id).Exchange(s.httpContext(ctx), code)
	if err != nil {
		return nil, &AuthenticationError{Reason: "authorization code exchange rejected", Err: err}
	}

	cred := credentialFromToken(tok, nil)
	if len(cred.Scopes) == 0 {
		cred.Scopes = append([]string(nil), Scopes...)
	}

	if err := store.PutJSON(ctx, s.docs, store.KeyCredential, cred); err != nil {
		return nil, fmt.Errorf("saving credential: %w", err)
	}
	if cred.Email != "" {
		if err := s.setMailboxAddress(ctx, cred.Email); err != nil {
			return nil, err
		}
	}

	s.log.Info("authorization code exchanged", "email", cred.Email)
	return &cred, nil
}

// LoadCredential returns the persisted credential, refreshing it first when
// it is expired and refreshable. It returns nil, nil when nothing is stored
// and the terminal credential, without error, when it can no longer be
// refreshed. A failed refresh yields nil and an AuthenticationError.
//
// The token endpoint is called outside any storage transaction. The result
// is written back only if the stored credential is still the one that was
// refreshed; otherwise the stored one wins.
func (s *Store) LoadCredential(ctx context.Context) (*Credential, error) {
	cred, err := s.readCredential(ctx)
	if err != nil || cred == nil {
		return nil, err
	}
	if cred.Valid(s.now()) || !cred.Refreshable() {
		return cred, nil
	}

	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	// Another goroutine may have refreshed while we waited.
	cred, err = s.readCredential(ctx)
	if err != nil || cred == nil {
		return nil, err
	}
	if cred.Valid(s.now()) || !cred.Refreshable() {
		return cred, nil
	}

	refreshed, err := s.refresh(ctx, *cred)
	if err != nil {
		return nil, err
	}

	out := &refreshed
	err = s.docs.Update(ctx, store.KeyCredential, func(current []byte) ([]byte, error) {
		if current == nil {
			out = nil
			return nil, store.ErrNoChange
		}
		var stored Credential
		if err := json.Unmarshal(current, &stored); err != nil {
			return nil, fmt.Errorf("decoding credential: %w", err)
		}
		if !stored.sameGrant(*cred) {
			s.log.Debug("credential changed during refresh; keeping stored one")
			out = &stored
			return nil, store.ErrNoChange
		}
		return json.Marshal(refreshed)
	})
	if err != nil {
		return nil, fmt.Errorf("saving refreshed credential: %w", err)
	}
	return out, nil
}

func (s *Store) readCredential(ctx context.Context) (*Credential, error) {
	var cred Credential
	err := store.GetJSON(ctx, s.docs, store.KeyCredential, &cred)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading credential: %w", err)
	}
	return &cred, nil
}

func (s *Store) refresh(ctx context.Context, c Credential) (Credential, error) {
	id, err := s.Identity(ctx)
	if err != nil {
		return Credential{}, &AuthenticationError{Reason: "credential refresh failed", Err: err}
	}
	if id == nil {
		return Credential{}, &AuthenticationError{Reason: "credential refresh failed", Err: missingIdentity()}
	}

	// Only the refresh token is handed over so the library always refreshes,
	// whatever its own clock says.
	src := s.oauthConfig(id).TokenSource(s.httpContext(ctx), &oauth2.Token{RefreshToken: c.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		s.log.Warn("credential refresh failed", "error", err)
		return Credential{}, &AuthenticationError{Reason: "credential refresh failed", Err: err}
	}

	refreshed := credentialFromToken(tok, &c)
	s.log.Info("credential refreshed", "expiry", refreshed.Expiry)
	return refreshed, nil
}

// IsAuthenticated reports whether a credential loads and is valid after any
// refresh. The error is non-nil only when storage or a refresh failed.
func (s *Store) IsAuthenticated(ctx context.Context) (bool, error) {
	cred, err := s.LoadCredential(ctx)
	if err != nil {
		return false, err
	}
	if cred == nil {
		return false, nil
	}
	return cred.Valid(s.now()), nil
}

type mailboxAddress struct {
	Email string `json:"email"`
}

func (s *Store) setMailboxAddress(ctx context.Context, email string) error {
	if err := store.PutJSON(ctx, s.docs, store.KeyMailboxAddress, mailboxAddress{Email: email}); err != nil {
		return fmt.Errorf("saving mailbox address: %w", err)
	}
	return nil
}

// MailboxAddress resolves the owner's address: the persisted address, then
// the credential's email claim, then EMAIL_USER. It returns "" when none of
// them is set.
func (s *Store) MailboxAddress(ctx context.Context) (string, error) {
	var addr mailboxAddress
	err := store.GetJSON(ctx, s.docs, store.KeyMailboxAddress, &addr)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return "", fmt.Errorf("loading mailbox address: %w", err)
	}
	if addr.Email != "" {
		return addr.Email, nil
	}

	cred, err := s.readCredential(ctx)
	if err != nil {
		return "", err
	}
	if cred != nil && cred.Email != "" {
		return cred.Email, nil
	}

	return s.getenv(EnvEmailUser), nil
}

// Bearer returns an XOAUTH2 login for the mail client.
func (s *Store) Bearer(ctx context.Context) (mail.Login, error) {
	cred, err := s.LoadCredential(ctx)
	if err != nil {
		return mail.Login{}, err
	}
	if cred == nil {
		return mail.Login{}, &AuthenticationError{Reason: "no credential stored"}
	}
	if !cred.Valid(s.now()) {
		return mail.Login{}, &AuthenticationError{Reason: "credential expired and has no refresh token"}
	}

	addr, err := s.MailboxAddress(ctx)
	if err != nil {
		return mail.Login{}, err
	}
	if addr == "" {
		return mail.Login{}, &AuthenticationError{Reason: "mailbox address unknown"}
	}

	return mail.Login{
		Username: addr,
		Secret:   cred.AccessToken,
		Method:   mail.MethodXOAuth2,
	}, nil
}

// Login implements mail.Authenticator. The OAuth2 credential is preferred;
// the password-based account is used only when no credential is stored.
func (s *Store) Login(ctx context.Context) (mail.Login, error) {
	cred, err := s.readCredential(ctx)
	if err != nil {
		return mail.Login{}, err
	}
	if cred == nil {
		acct, password, err := s.legacyLogin(ctx)
		if err != nil {
			return mail.Login{}, err
		}
		if acct != nil {
			return mail.Login{
				Username: acct.Email,
				Secret:   password,
				Method:   mail.MethodPassword,
				IMAPAddr: acct.IMAPAddr(),
				SMTPAddr: acct.SMTPAddr(),
			}, nil
		}
	}
	return s.Bearer(ctx)
}

// ConfigureLegacyAccount stores a password-based account. The password goes
// to the secrets vault.
func (s *Store) ConfigureLegacyAccount(ctx context.Context, acct model.LegacyAccount, password string) error {
	if s.vault == nil {
		return errors.New("password accounts need a secrets vault")
	}
	if err := acct.Validate(); err != nil {
		return err
	}
	if password == "" {
		return errors.New("legacy account: password is required")
	}

	if err := s.vault.Set(credential.KeyLegacyPassword, password); err != nil {
		return err
	}
	if err := store.PutJSON(ctx, s.docs, store.KeyLegacyAccount, acct); err != nil {
		return fmt.Errorf("saving legacy account: %w", err)
	}

	s.log.Info("password account configured", "email", acct.Email)
	return nil
}

// LegacyAccount returns the stored password-based account, or nil.
func (s *Store) LegacyAccount(ctx context.Context) (*model.LegacyAccount, error) {
	var acct model.LegacyAccount
	err := store.GetJSON(ctx, s.docs, store.KeyLegacyAccount, &acct)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading legacy account: %w", err)
	}
	return &acct, nil
}

func (s *Store) legacyLogin(ctx context.Context) (*model.LegacyAccount, string, error) {
	if s.vault == nil {
		return nil, "", nil
	}
	acct, err := s.LegacyAccount(ctx)
	if err != nil || acct == nil {
		return nil, "", err
	}
	password, err := s.vault.Get(credential.KeyLegacyPassword)
	if errors.Is(err, credential.ErrNotFound) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", err
	}
	return acct, password, nil
}
