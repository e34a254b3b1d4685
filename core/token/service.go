package token

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"golang.org/x/crypto/nacl/secretbox"

	"github.com/trezcool/classmirror/core"
	"github.com/trezcool/classmirror/core/lms"
)

type (
	ServiceInterface interface {
		// Set validates the token against the upstream API (bounded by the
		// configured validation timeout) and stores it sealed.
		Set(ctx context.Context, userID, baseURL, rawToken string) (Token, error)
		Get(ctx context.Context, userID string) (Token, error)
		// Credentials returns the base URL and the opened bearer token.
		Credentials(ctx context.Context, userID string) (baseURL, rawToken string, err error)
		MarkSynced(ctx context.Context, userID string, at time.Time) error
	}

	Service struct {
		repo   Repository
		client lms.Client
		log    core.Logger
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(repo Repository, client lms.Client, log core.Logger) *Service {
	return &Service{repo: repo, client: client, log: log}
}

func (svc *Service) Set(ctx context.Context, userID, baseURL, rawToken string) (Token, error) {
	baseURL = core.CleanString(baseURL)
	if baseURL == "" {
		baseURL = core.Conf.Canvas.DefaultBaseURL
	}
	rawToken = core.CleanString(rawToken)
	if rawToken == "" {
		return Token{}, core.NewValidationError(errors.New("token is required"),
			core.FieldError{Field: "token", Error: "this field is required"})
	}

	vctx, cancel := context.WithTimeout(ctx, core.Conf.Canvas.TokenValidationTimeout)
	defer cancel()
	if err := svc.client.ValidateToken(vctx, baseURL, rawToken); err != nil {
		return Token{}, err
	}

	sealed, err := seal(rawToken)
	if err != nil {
		return Token{}, errors.Wrap(err, "sealing token")
	}
	now := time.Now().UTC()
	return svc.repo.UpsertToken(ctx, Token{
		UserID:          userID,
		BaseURL:         baseURL,
		Sealed:          sealed,
		LastValidatedAt: null.TimeFrom(now),
		CreatedAt:       now,
		UpdatedAt:       now,
	})
}

func (svc *Service) Get(ctx context.Context, userID string) (Token, error) {
	return svc.repo.GetToken(ctx, userID)
}

func (svc *Service) Credentials(ctx context.Context, userID string) (string, string, error) {
	tok, err := svc.repo.GetToken(ctx, userID)
	if err != nil {
		return "", "", err
	}
	raw, err := open(tok.Sealed)
	if err != nil {
		return "", "", errors.Wrap(ErrSealedToken, err.Error())
	}
	return tok.BaseURL, raw, nil
}

func (svc *Service) MarkSynced(ctx context.Context, userID string, at time.Time) error {
	return svc.repo.TouchLastSynced(ctx, userID, at.UTC())
}

// sealKey derives the secretbox key from the app secret.
func sealKey() [32]byte {
	return sha256.Sum256([]byte(core.Conf.SecretKey))
}

func seal(raw string) ([]byte, error) {
	var nonce [24]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, err
	}
	key := sealKey()
	return secretbox.Seal(nonce[:], []byte(raw), &nonce, &key), nil
}

func open(sealed []byte) (string, error) {
	if len(sealed) < 24 {
		return "", errors.New("sealed value too short")
	}
	var nonce [24]byte
	copy(nonce[:], sealed[:24])
	key := sealKey()
	raw, ok := secretbox.Open(nil, sealed[24:], &nonce, &key)
	if !ok {
		return "", errors.New("secretbox open failed")
	}
	return string(raw), nil
}
