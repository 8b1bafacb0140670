package auth

import (
	"context"
	"fmt"
	"time"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"github.com/talkitive/talkitive-backend/config"
)

// FirebaseVerifier implements TokenVerifier on top of the Firebase Admin SDK.
type FirebaseVerifier struct {
	client *fbauth.Client
}

// InitializeFirebase initializes the Firebase Admin SDK and returns a verifier
func InitializeFirebase(cfg *config.FirebaseConfig) (*FirebaseVerifier, error) {
	if cfg.CredentialsPath == "" {
		return nil, fmt.Errorf("FIREBASE_CREDENTIALS_PATH is required")
	}

	opt := option.WithCredentialsFile(cfg.CredentialsPath)
	app, err := firebase.NewApp(context.Background(), nil, opt)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}

	authClient, err := app.Auth(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to get Auth client: %w", err)
	}

	return &FirebaseVerifier{client: authClient}, nil
}

func (v *FirebaseVerifier) VerifyIDToken(ctx context.Context, idToken string) (*Claims, error) {
	decoded, err := v.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, fmt.Errorf("verify id token: %w", err)
	}

	claims := &Claims{
		UID:            decoded.UID,
		SignInProvider: decoded.Firebase.SignInProvider,
	}
	if email, ok := decoded.Claims["email"].(string); ok {
		claims.Email = email
	}
	if verified, ok := decoded.Claims["email_verified"].(bool); ok {
		claims.EmailVerified = verified
	}
	if name, ok := decoded.Claims["name"].(string); ok {
		claims.Name = name
	}
	if picture, ok := decoded.Claims["picture"].(string); ok {
		claims.Picture = picture
	}

	return claims, nil
}

func (v *FirebaseVerifier) AccountMetadata(ctx context.Context, uid string) (*AccountMetadata, error) {
	record, err := v.client.GetUser(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("fetch user record: %w", err)
	}

	return &AccountMetadata{
		CreatedAt:    time.UnixMilli(record.UserMetadata.CreationTimestamp).UTC(),
		LastSignInAt: time.UnixMilli(record.UserMetadata.LastLogInTimestamp).UTC(),
	}, nil
}
