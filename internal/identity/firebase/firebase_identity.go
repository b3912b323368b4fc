package firebase

import (
	"context"
	"errors"
	"fmt"
	"time"

	fb "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/identitytoolkit/v3"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/quipper/poc/sis/be/pkg/identity"
)

// Config selects the Firebase project. APIKey is the web API key used for
// password sign-in and custom-token exchange.
type Config struct {
	ProjectID       string
	CredentialsFile string
	APIKey          string
}

// FirebaseProvider adapts Firebase Authentication to identity.Provider.
// Session tokens are Firebase ID tokens minted by exchanging a custom token.
type FirebaseProvider struct {
	auth    *auth.Client
	toolkit *identitytoolkit.Service
}

var _ identity.Provider = (*FirebaseProvider)(nil)

func NewFirebaseProvider(ctx context.Context, cfg Config) (*FirebaseProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("firebase identity: api key required")
	}
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	app, err := fb.NewApp(ctx, &fb.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase identity: new app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase identity: auth client: %w", err)
	}
	toolkit, err := identitytoolkit.NewService(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("firebase identity: toolkit: %w", err)
	}
	return &FirebaseProvider{auth: client, toolkit: toolkit}, nil
}

func (p *FirebaseProvider) CreateAccount(ctx context.Context, email, password, displayName string) (*identity.Account, error) {
	params := (&auth.UserToCreate{}).Email(email).Password(password)
	if displayName != "" {
		params = params.DisplayName(displayName)
	}
	rec, err := p.auth.CreateUser(ctx, params)
	if err != nil {
		return nil, mapErr(err)
	}
	return toAccount(rec), nil
}

func (p *FirebaseProvider) UpdateAccount(ctx context.Context, id string, u identity.AccountUpdate) (*identity.Account, error) {
	if u.Empty() {
		return p.GetAccount(ctx, id)
	}
	params := &auth.UserToUpdate{}
	if u.Email != nil {
		params = params.Email(*u.Email).EmailVerified(false)
	}
	if u.Password != nil {
		params = params.Password(*u.Password)
	}
	if u.DisplayName != nil {
		params = params.DisplayName(*u.DisplayName)
	}
	rec, err := p.auth.UpdateUser(ctx, id, params)
	if err != nil {
		return nil, mapErr(err)
	}
	return toAccount(rec), nil
}

func (p *FirebaseProvider) DeleteAccount(ctx context.Context, id string) error {
	return mapErr(p.auth.DeleteUser(ctx, id))
}

func (p *FirebaseProvider) GetAccount(ctx context.Context, id string) (*identity.Account, error) {
	rec, err := p.auth.GetUser(ctx, id)
	if err != nil {
		return nil, mapErr(err)
	}
	return toAccount(rec), nil
}

func (p *FirebaseProvider) GetAccountByEmail(ctx context.Context, email string) (*identity.Account, error) {
	rec, err := p.auth.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, mapErr(err)
	}
	return toAccount(rec), nil
}

func (p *FirebaseProvider) ListAccounts(ctx context.Context) ([]*identity.Account, error) {
	var out []*identity.Account
	it := p.auth.Users(ctx, "")
	for {
		rec, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, toAccount(rec.UserRecord))
	}
	return out, nil
}

func (p *FirebaseProvider) SetCustomClaims(ctx context.Context, id string, claims map[string]any) error {
	return mapErr(p.auth.SetCustomUserClaims(ctx, id, claims))
}

func (p *FirebaseProvider) VerifyPassword(ctx context.Context, email, password string) (*identity.Account, error) {
	resp, err := p.toolkit.Relyingparty.VerifyPassword(&identitytoolkit.IdentitytoolkitRelyingpartyVerifyPasswordRequest{
		Email:    email,
		Password: password,
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", identity.ErrInvalidCredentials, err)
	}
	return p.GetAccount(ctx, resp.LocalId)
}

// IssueSessionToken mints a custom token and exchanges it for an ID token, so the
// result verifies with VerifySessionToken like any Firebase sign-in.
func (p *FirebaseProvider) IssueSessionToken(ctx context.Context, id string) (string, error) {
	custom, err := p.auth.CustomToken(ctx, id)
	if err != nil {
		return "", mapErr(err)
	}
	resp, err := p.toolkit.Relyingparty.VerifyCustomToken(&identitytoolkit.IdentitytoolkitRelyingpartyVerifyCustomTokenRequest{
		Token:             custom,
		ReturnSecureToken: true,
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("firebase identity: exchange custom token: %w", err)
	}
	return resp.IdToken, nil
}

func (p *FirebaseProvider) VerifySessionToken(ctx context.Context, token string) (*identity.Claims, error) {
	tok, err := p.auth.VerifyIDToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", identity.ErrInvalidToken, err)
	}
	c := &identity.Claims{
		AccountID: tok.UID,
		IssuedAt:  time.Unix(tok.IssuedAt, 0),
		ExpiresAt: time.Unix(tok.Expires, 0),
		Custom:    map[string]any{},
	}
	for k, v := range tok.Claims {
		if k == "email" {
			c.Email, _ = v.(string)
			continue
		}
		c.Custom[k] = v
	}
	return c, nil
}

func (p *FirebaseProvider) GeneratePasswordResetLink(ctx context.Context, email string) (string, error) {
	link, err := p.auth.PasswordResetLink(ctx, email)
	return link, mapErr(err)
}

func (p *FirebaseProvider) GenerateEmailVerificationLink(ctx context.Context, email string) (string, error) {
	link, err := p.auth.EmailVerificationLink(ctx, email)
	return link, mapErr(err)
}

func toAccount(rec *auth.UserRecord) *identity.Account {
	claims := map[string]any{}
	for k, v := range rec.CustomClaims {
		claims[k] = v
	}
	return &identity.Account{
		ID:            rec.UID,
		Email:         rec.Email,
		DisplayName:   rec.DisplayName,
		EmailVerified: rec.EmailVerified,
		Disabled:      rec.Disabled,
		Claims:        claims,
	}
}

func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case auth.IsUserNotFound(err):
		return fmt.Errorf("%w: %v", identity.ErrAccountNotFound, err)
	case auth.IsEmailAlreadyExists(err):
		return fmt.Errorf("%w: %v", identity.ErrEmailExists, err)
	default:
		return err
	}
}
