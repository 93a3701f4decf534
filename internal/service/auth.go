// Package service implements the application services sitting between the
// HTTP adapter and the ports.
package service

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/classpad/classpad/internal/config"
	"github.com/classpad/classpad/internal/domain"
	"github.com/classpad/classpad/internal/domain/user"
	"github.com/classpad/classpad/internal/port/database"
)

const (
	tokenAudience = "classpad"
	tokenIssuer   = "classpad-core"
)

// ErrInvalidCredentials is returned for any login failure. The cause is
// deliberately not distinguished so attackers cannot probe for accounts.
var ErrInvalidCredentials = errors.New("invalid credentials")

// AuthService handles registration, login, token issuance and the signed
// session cookie used by the realtime endpoints.
type AuthService struct {
	store        database.Store
	cfg          *config.Auth
	jwtSecret    []byte
	cookieSecret []byte
}

// NewAuthService creates an authentication service.
func NewAuthService(store database.Store, cfg *config.Auth) *AuthService {
	return &AuthService{
		store:        store,
		cfg:          cfg,
		jwtSecret:    []byte(cfg.JWTSecret),
		cookieSecret: []byte(cfg.CookieSecret),
	}
}

// Register creates a user with a bcrypt-hashed password.
func (s *AuthService) Register(ctx context.Context, req *user.CreateRequest) (*user.User, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrValidation, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &user.User{
		ID:           uuid.NewString(),
		Email:        strings.ToLower(req.Email),
		Name:         req.Name,
		PasswordHash: string(hash),
		Role:         req.Role,
		Enabled:      true,
	}

	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// Login authenticates a user and returns the access token response plus
// the raw refresh token for the caller to set as a cookie.
func (s *AuthService) Login(ctx context.Context, req user.LoginRequest) (*user.LoginResponse, string, error) {
	if err := req.Validate(); err != nil {
		return nil, "", fmt.Errorf("%w: %s", domain.ErrValidation, err)
	}

	u, err := s.store.GetUserByEmail(ctx, strings.ToLower(req.Email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("get user: %w", err)
	}

	if !u.Enabled {
		return nil, "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	accessToken, err := s.signJWT(u)
	if err != nil {
		return nil, "", fmt.Errorf("sign jwt: %w", err)
	}

	rawToken, err := generateRandomToken(32)
	if err != nil {
		return nil, "", fmt.Errorf("generate refresh token: %w", err)
	}
	rt := &user.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    u.ID,
		TokenHash: hashSHA256(rawToken),
		ExpiresAt: time.Now().Add(s.cfg.RefreshTokenExpiry),
	}
	if err := s.store.CreateRefreshToken(ctx, rt); err != nil {
		return nil, "", fmt.Errorf("store refresh token: %w", err)
	}

	return &user.LoginResponse{
		AccessToken: accessToken,
		ExpiresIn:   int(s.cfg.AccessTokenExpiry.Seconds()),
		User:        *u,
	}, rawToken, nil
}

// RefreshTokens validates a refresh token, rotates it atomically, and
// issues a fresh access token.
func (s *AuthService) RefreshTokens(ctx context.Context, rawToken string) (*user.LoginResponse, string, error) {
	rt, err := s.store.GetRefreshTokenByHash(ctx, hashSHA256(rawToken))
	if err != nil {
		return nil, "", errors.New("invalid refresh token")
	}

	if time.Now().After(rt.ExpiresAt) {
		_ = s.store.DeleteRefreshToken(ctx, rt.ID)
		return nil, "", errors.New("refresh token expired")
	}

	u, err := s.store.GetUser(ctx, rt.UserID)
	if err != nil {
		return nil, "", fmt.Errorf("get user: %w", err)
	}
	if !u.Enabled {
		return nil, "", errors.New("account is disabled")
	}

	accessToken, err := s.signJWT(u)
	if err != nil {
		return nil, "", fmt.Errorf("sign jwt: %w", err)
	}

	newRawToken, err := generateRandomToken(32)
	if err != nil {
		return nil, "", fmt.Errorf("generate refresh token: %w", err)
	}
	newRT := &user.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    u.ID,
		TokenHash: hashSHA256(newRawToken),
		ExpiresAt: time.Now().Add(s.cfg.RefreshTokenExpiry),
	}
	if err := s.store.RotateRefreshToken(ctx, rt.ID, newRT); err != nil {
		return nil, "", fmt.Errorf("rotate refresh token: %w", err)
	}

	return &user.LoginResponse{
		AccessToken: accessToken,
		ExpiresIn:   int(s.cfg.AccessTokenExpiry.Seconds()),
		User:        *u,
	}, newRawToken, nil
}

// Logout invalidates all refresh tokens for a user.
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	return s.store.DeleteRefreshTokensByUser(ctx, userID)
}

// ValidateAccessToken verifies a JWT and returns its claims.
func (s *AuthService) ValidateAccessToken(tokenStr string) (*user.TokenClaims, error) {
	return s.verifyJWT(tokenStr)
}

// GetUser returns a user by ID.
func (s *AuthService) GetUser(ctx context.Context, id string) (*user.User, error) {
	return s.store.GetUser(ctx, id)
}

// ListUsers returns all users.
func (s *AuthService) ListUsers(ctx context.Context) ([]user.User, error) {
	return s.store.ListUsers(ctx)
}

// UpdateUser applies the non-zero fields of req to a user.
func (s *AuthService) UpdateUser(ctx context.Context, id string, req user.UpdateRequest) (*user.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != "" {
		u.Name = req.Name
	}
	if req.Role != "" {
		if !user.ValidRoles[req.Role] {
			return nil, fmt.Errorf("%w: invalid role", domain.ErrValidation)
		}
		u.Role = req.Role
	}
	if req.Enabled != nil {
		u.Enabled = *req.Enabled
	}

	if err := s.store.UpdateUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// DeleteUser removes a user and their refresh tokens.
func (s *AuthService) DeleteUser(ctx context.Context, id string) error {
	if err := s.store.DeleteRefreshTokensByUser(ctx, id); err != nil {
		return err
	}
	return s.store.DeleteUser(ctx, id)
}

// ResetPassword sets a new password without checking the old one. Admin
// and CLI use only.
func (s *AuthService) ResetPassword(ctx context.Context, userID, newPassword string) error {
	if len(newPassword) < 8 {
		return fmt.Errorf("%w: password must be at least 8 characters", domain.ErrValidation)
	}

	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = string(hash)

	if err := s.store.UpdateUser(ctx, u); err != nil {
		return err
	}
	return s.store.DeleteRefreshTokensByUser(ctx, userID)
}

// ResetPasswordByEmail looks up an account by email and resets its
// password. Used by the admin CLI.
func (s *AuthService) ResetPasswordByEmail(ctx context.Context, email, newPassword string) error {
	u, err := s.store.GetUserByEmail(ctx, strings.ToLower(email))
	if err != nil {
		return err
	}
	return s.ResetPassword(ctx, u.ID, newPassword)
}

// SeedDefaultAdmin creates the initial admin account when the user table
// is empty.
func (s *AuthService) SeedDefaultAdmin(ctx context.Context) error {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	if len(users) > 0 {
		return nil
	}

	if _, err := s.Register(ctx, &user.CreateRequest{
		Email:    s.cfg.DefaultAdminEmail,
		Name:     "Admin",
		Password: s.cfg.DefaultAdminPass,
		Role:     user.RoleAdmin,
	}); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	slog.Info("seeded default admin user", "email", s.cfg.DefaultAdminEmail)
	return nil
}

// StartTokenCleanup purges expired refresh tokens on an interval until
// ctx is cancelled.
func (s *AuthService) StartTokenCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := s.store.PurgeExpiredRefreshTokens(ctx, time.Now())
				if err != nil {
					slog.Warn("failed to purge expired refresh tokens", "error", err)
				} else if n > 0 {
					slog.Info("purged expired refresh tokens", "count", n)
				}
			}
		}
	}()
}

// --- signed session cookie ---
//
// The realtime WebSocket endpoint cannot rely on the Authorization header
// (browsers do not send custom headers on WebSocket upgrades), so session
// identity rides in a compact HMAC-signed cookie: userID.expiry.signature.

// MintSessionCookie produces a signed cookie value for a user.
func (s *AuthService) MintSessionCookie(userID string) string {
	expiry := strconv.FormatInt(time.Now().Add(s.cfg.CookieExpiry).Unix(), 10)
	payload := userID + "." + expiry
	return payload + "." + s.cookieSign(payload)
}

// VerifySessionCookie checks a cookie's signature and expiry and returns
// the embedded user ID.
func (s *AuthService) VerifySessionCookie(value string) (string, error) {
	parts := strings.Split(value, ".")
	if len(parts) != 3 {
		return "", errors.New("malformed session cookie")
	}

	payload := parts[0] + "." + parts[1]
	if !hmac.Equal([]byte(parts[2]), []byte(s.cookieSign(payload))) {
		return "", errors.New("invalid session cookie signature")
	}

	expiry, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return "", errors.New("malformed session cookie expiry")
	}
	if time.Now().Unix() > expiry {
		return "", errors.New("session cookie expired")
	}

	return parts[0], nil
}

func (s *AuthService) cookieSign(payload string) string {
	mac := hmac.New(sha256.New, s.cookieSecret)
	mac.Write([]byte(payload))
	return base64URLEncode(mac.Sum(nil))
}

// --- JWT implementation (HS256 with stdlib) ---

var jwtHeader = base64URLEncode([]byte(`{"alg":"HS256","typ":"JWT"}`))

func (s *AuthService) signJWT(u *user.User) (string, error) {
	now := time.Now()
	claims := user.TokenClaims{
		UserID:   u.ID,
		Email:    u.Email,
		Name:     u.Name,
		Role:     u.Role,
		IssuedAt: now.Unix(),
		Expiry:   now.Add(s.cfg.AccessTokenExpiry).Unix(),
		JTI:      uuid.NewString(),
		Audience: tokenAudience,
		Issuer:   tokenIssuer,
	}

	payload, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("marshal claims: %w", err)
	}

	signingInput := jwtHeader + "." + base64URLEncode(payload)
	mac := hmac.New(sha256.New, s.jwtSecret)
	mac.Write([]byte(signingInput))
	return signingInput + "." + base64URLEncode(mac.Sum(nil)), nil
}

func (s *AuthService) verifyJWT(tokenStr string) (*user.TokenClaims, error) {
	parts := strings.SplitN(tokenStr, ".", 3)
	if len(parts) != 3 {
		return nil, errors.New("malformed token")
	}

	signingInput := parts[0] + "." + parts[1]
	mac := hmac.New(sha256.New, s.jwtSecret)
	mac.Write([]byte(signingInput))
	if !hmac.Equal([]byte(parts[2]), []byte(base64URLEncode(mac.Sum(nil)))) {
		return nil, errors.New("invalid signature")
	}

	payload, err := base64URLDecode(parts[1])
	if err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}

	var claims user.TokenClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, fmt.Errorf("unmarshal claims: %w", err)
	}

	if time.Now().Unix() > claims.Expiry {
		return nil, errors.New("token expired")
	}
	if claims.Audience != tokenAudience {
		return nil, errors.New("invalid token audience")
	}
	if claims.Issuer != tokenIssuer {
		return nil, errors.New("invalid token issuer")
	}

	return &claims, nil
}

// --- helpers ---

func base64URLEncode(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

func base64URLDecode(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(s)
}

func hashSHA256(data string) string {
	h := sha256.Sum256([]byte(data))
	return hex.EncodeToString(h[:])
}

func generateRandomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
