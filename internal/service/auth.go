package service

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/golang-jwt/jwt/v5"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/exhibit-live/exhibit/internal/domain/presentation"
)

// ErrNotFound is the only error the HTTP edge is allowed to show for a
// failed verification. Expired token, wrong key, unknown presentation and
// malformed input all collapse into it so probing the endpoints reveals
// nothing; details go to the log.
var ErrNotFound = errors.New("not found")

// ErrAlreadyExists rejects creating a presentation under a taken id.
var ErrAlreadyExists = errors.New("presentation already exists")

// Claims are the token claims the broker understands. Tokens are minted by
// an external authority; the broker only verifies.
type Claims struct {
	// PID is the presentation id. For join tokens it must match the kid
	// header naming the verification key.
	PID string `json:"pid"`
	jwt.RegisteredClaims
}

// CreateRequest is the validated output of a create-token verification,
// ready to be turned into a Presentation.
type CreateRequest struct {
	ID                string
	PresenterIdentity string
	Title             string
	Encrypted         bool
	AuthKey           *ecdsa.PublicKey
	// Creator is the token subject. Logged, never trusted for anything else.
	Creator string
}

// JoinData is the validated output of a join-token verification.
type JoinData struct {
	Presentation *presentation.Presentation
	Identity     string
}

// Auther verifies externally minted tokens: create tokens against the
// service-wide key, join tokens against the target presentation's key.
type Auther interface {
	VerifyCreate(form url.Values) (CreateRequest, error)
	VerifyJoin(token []byte) (JoinData, error)
}

var _ Auther = (*AuthService)(nil)

// AuthService implements Auther with ES256 only. Audience public keys
// arrive as PEM on every create request, so parsed keys are kept in a small
// LRU keyed by the PEM text.
type AuthService struct {
	logger    *slog.Logger
	createKey *ecdsa.PublicKey
	store     *presentation.Store
	keyCache  *lru.Cache[string, *ecdsa.PublicKey]
}

func NewAuthService(logger *slog.Logger, createKey *ecdsa.PublicKey, store *presentation.Store) *AuthService {
	cache, _ := lru.New[string, *ecdsa.PublicKey](1024)
	return &AuthService{
		logger:    logger,
		createKey: createKey,
		store:     store,
		keyCache:  cache,
	}
}

func (s *AuthService) parsePublicKey(pemText string) (*ecdsa.PublicKey, error) {
	if key, ok := s.keyCache.Get(pemText); ok {
		return key, nil
	}
	key, err := jwt.ParseECPublicKeyFromPEM([]byte(pemText))
	if err != nil {
		return nil, fmt.Errorf("parse EC public key: %w", err)
	}
	s.keyCache.Add(pemText, key)
	return key, nil
}

func (s *AuthService) parserOptions() []jwt.ParserOption {
	return []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodES256.Alg()}),
		jwt.WithExpirationRequired(),
	}
}

// VerifyCreate validates a presentation-creation form: the registration_key
// token against the service create key, plus the fields needed to build the
// presentation. The token's pid claim chooses the presentation id.
func (s *AuthService) VerifyCreate(form url.Values) (CreateRequest, error) {
	tokenText := form.Get("registration_key")
	presenterIdentity := form.Get("presenter_identity")
	authKeyPEM := form.Get("authorization_public_key")
	title := form.Get("title")
	encrypted := form.Get("encrypted") == "on"

	if tokenText == "" || presenterIdentity == "" || authKeyPEM == "" || title == "" {
		s.logger.Warn("create rejected: missing form fields")
		return CreateRequest{}, ErrNotFound
	}

	claims := new(Claims)
	if _, err := jwt.ParseWithClaims(tokenText, claims, func(*jwt.Token) (any, error) {
		return s.createKey, nil
	}, s.parserOptions()...); err != nil {
		s.logger.Warn("create rejected: registration key invalid", "err", err)
		return CreateRequest{}, ErrNotFound
	}

	if claims.PID == "" {
		s.logger.Warn("create rejected: token carries no presentation id")
		return CreateRequest{}, ErrNotFound
	}

	if _, exists := s.store.Get(claims.PID); exists {
		s.logger.Error("refusing to register a new version of presentation", "presentation", claims.PID)
		return CreateRequest{}, ErrAlreadyExists
	}

	authKey, err := s.parsePublicKey(authKeyPEM)
	if err != nil {
		s.logger.Warn("create rejected: bad authorization public key", "err", err)
		return CreateRequest{}, ErrNotFound
	}

	return CreateRequest{
		ID:                claims.PID,
		PresenterIdentity: presenterIdentity,
		Title:             title,
		Encrypted:         encrypted,
		AuthKey:           authKey,
		Creator:           claims.Subject,
	}, nil
}

// VerifyJoin validates a join token. The unverified header names the
// presentation via kid; the signature is then checked against that
// presentation's installed key, and the pid claim must agree with the kid.
func (s *AuthService) VerifyJoin(token []byte) (JoinData, error) {
	tokenText := string(token)

	parser := jwt.NewParser(s.parserOptions()...)
	unverified, _, err := parser.ParseUnverified(tokenText, new(Claims))
	if err != nil {
		s.logger.Warn("join rejected: undecodable token", "err", err)
		return JoinData{}, ErrNotFound
	}

	kid, _ := unverified.Header["kid"].(string)
	if kid == "" {
		s.logger.Warn("join rejected: token header carries no kid")
		return JoinData{}, ErrNotFound
	}

	pres, ok := s.store.Get(kid)
	if !ok {
		s.logger.Warn("join rejected: unknown presentation", "presentation", kid)
		return JoinData{}, ErrNotFound
	}

	claims := new(Claims)
	if _, err := jwt.ParseWithClaims(tokenText, claims, func(*jwt.Token) (any, error) {
		return pres.AuthKey(), nil
	}, s.parserOptions()...); err != nil {
		s.logger.Warn("join rejected: signature verification failed", "presentation", kid, "err", err)
		return JoinData{}, ErrNotFound
	}

	if claims.Subject == "" || claims.PID != kid {
		s.logger.Warn("join rejected: claims do not match presentation",
			"presentation", kid, "pid", claims.PID)
		return JoinData{}, ErrNotFound
	}

	return JoinData{Presentation: pres, Identity: claims.Subject}, nil
}
