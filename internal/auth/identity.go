package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nhle/email-copilot/internal/credential"
	"github.com/nhle/email-copilot/internal/store"
)

// Identity sources.
const (
	SourceEnvironment = "environment"
	SourceFile        = "file"
)

// Environment variables that supply the application identity.
const (
	EnvClientID     = "GOOGLE_CLIENT_ID"
	EnvClientSecret = "GOOGLE_CLIENT_SECRET"
	EnvEmailUser    = "EMAIL_USER"
)

// ApplicationIdentity is the OAuth2 client registered with the provider.
type ApplicationIdentity struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`

	// Source records where the identity was resolved from. It is never
	// persisted.
	Source string `json:"-"`
}

// Identity returns the application identity, resolving it on first use.
// Environment variables win over the persisted document. A nil identity
// with a nil error means none is configured.
func (s *Store) Identity(ctx context.Context) (*ApplicationIdentity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.identityResolved {
		return s.identity, nil
	}

	id, err := s.resolveIdentity(ctx)
	if err != nil {
		return nil, err
	}
	s.identity = id
	s.identityResolved = true
	return id, nil
}

func (s *Store) envIdentity() *ApplicationIdentity {
	clientID := s.getenv(EnvClientID)
	clientSecret := s.getenv(EnvClientSecret)
	if clientID == "" || clientSecret == "" {
		return nil
	}
	return &ApplicationIdentity{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Source:       SourceEnvironment,
	}
}

func (s *Store) resolveIdentity(ctx context.Context) (*ApplicationIdentity, error) {
	if id := s.envIdentity(); id != nil {
		return id, nil
	}

	var id ApplicationIdentity
	err := store.GetJSON(ctx, s.docs, store.KeyAppIdentity, &id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading application identity: %w", err)
	}
	if id.ClientSecret == "" && s.vault != nil {
		secret, err := s.vault.Get(credential.KeyClientSecret)
		if err != nil && !errors.Is(err, credential.ErrNotFound) {
			return nil, fmt.Errorf("loading client secret: %w", err)
		}
		id.ClientSecret = secret
	}
	if id.ClientID == "" || id.ClientSecret == "" {
		return nil, &ConfigurationError{
			Missing: "stored application identity is incomplete",
			Remedy:  RemedyConfigure,
		}
	}
	id.Source = SourceFile
	return &id, nil
}

// ConfigureIdentity persists a new application identity and returns the
// identity in effect afterwards. With a vault the secret goes to the vault
// and the document keeps only the client id.
//
// An identity taken from the environment stays in effect for the life of
// the process; the saved one is used once the variables are unset.
func (s *Store) ConfigureIdentity(ctx context.Context, clientID, clientSecret string) (*ApplicationIdentity, error) {
	clientID = strings.TrimSpace(clientID)
	clientSecret = strings.TrimSpace(clientSecret)
	if clientID == "" || clientSecret == "" {
		return nil, &ConfigurationError{
			Missing: "client id and client secret are both required",
			Remedy:  RemedyConfigure,
		}
	}

	doc := ApplicationIdentity{ClientID: clientID, ClientSecret: clientSecret}
	if s.vault != nil {
		if err := s.vault.Set(credential.KeyClientSecret, clientSecret); err != nil {
			return nil, fmt.Errorf("saving client secret: %w", err)
		}
		doc.ClientSecret = ""
	}
	if err := store.PutJSON(ctx, s.docs, store.KeyAppIdentity, doc); err != nil {
		return nil, fmt.Errorf("saving application identity: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.identityResolved {
		if env := s.envIdentity(); env != nil {
			s.identity, s.identityResolved = env, true
		}
	}
	if s.identityResolved && s.identity != nil && s.identity.Source == SourceEnvironment {
		s.log.Warn("application identity saved but the environment identity stays active",
			"env", EnvClientID+"/"+EnvClientSecret)
		return s.identity, nil
	}

	id := &ApplicationIdentity{ClientID: clientID, ClientSecret: clientSecret, Source: SourceFile}
	s.identity, s.identityResolved = id, true
	s.log.Info("application identity configured", "source", id.Source, "vault", s.vault != nil)
	return id, nil
}
