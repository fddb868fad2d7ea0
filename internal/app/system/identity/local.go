package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/apierr"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/domain/models"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// CredentialStore persists password credentials for LocalProvider.
// GetByEmail returns an error coded NOT_FOUND when no credential exists and
// Create returns one coded CONFLICT for a duplicate email.
type CredentialStore interface {
	Create(ctx context.Context, c models.Credential) (models.Credential, error)
	GetByEmail(ctx context.Context, email string) (*models.Credential, error)
}

// LocalProvider is the built-in identity provider.
type LocalProvider struct {
	creds  CredentialStore
	tokens *TokenIssuer
	cost   int
}

// NewLocalProvider wires a LocalProvider.
func NewLocalProvider(creds CredentialStore, tokens *TokenIssuer) *LocalProvider {
	return &LocalProvider{creds: creds, tokens: tokens, cost: bcrypt.DefaultCost}
}

func (p *LocalProvider) Name() string { return "local" }

// Verify checks a token minted by SignIn. It never touches the database.
func (p *LocalProvider) Verify(ctx context.Context, credential string) (Identity, error) {
	if credential == "" {
		return Identity{}, ErrNoCredential
	}
	id, err := p.tokens.Parse(credential)
	observe(p.Name(), err)
	return id, err
}

// SignUp registers email with a bcrypt-hashed password.
func (p *LocalProvider) SignUp(ctx context.Context, email, password string) (Identity, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return Identity{}, apierr.Invalid("password cannot be used", map[string]string{"password": err.Error()})
	}
	cred, err := p.creds.Create(ctx, models.Credential{
		Subject:      uuid.NewString(),
		Email:        NormalizeEmail(email),
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		if apierr.CodeOf(err) == apierr.Conflict {
			return Identity{}, ErrEmailTaken
		}
		return Identity{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return Identity{Subject: cred.Subject, Email: cred.Email}, nil
}

// SignIn checks the password and issues an access token.
func (p *LocalProvider) SignIn(ctx context.Context, email, password string) (Session, error) {
	cred, err := p.creds.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if apierr.CodeOf(err) == apierr.NotFound {
			return Session{}, ErrBadLogin
		}
		return Session{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if bcrypt.CompareHashAndPassword(cred.PasswordHash, []byte(password)) != nil {
		return Session{}, ErrBadLogin
	}
	id := Identity{Subject: cred.Subject, Email: cred.Email}
	tok, exp, err := p.tokens.Issue(id)
	if err != nil {
		return Session{}, err
	}
	return Session{AccessToken: tok, ExpiresAt: exp, Identity: id}, nil
}
