package httpapi

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"bizdash/backend/internal/domain"
)

const userLookupTimeout = 5 * time.Second

type AuthManager struct {
	mu        sync.RWMutex
	secret    []byte
	tokenTTL  time.Duration
	userStore UserStore
	users     map[string]credential
}

// UserStore is the source of dashboard accounts; the remote store provides it.
type UserStore interface {
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
}

type credential struct {
	password string
	ownerID  string
	active   bool
}

// dashboardClaims carries the owner id as the token subject.
type dashboardClaims struct {
	jwtlib.RegisteredClaims
	Username string `json:"username"`
}

func NewAuthManager(secret string, tokenTTL time.Duration, userStore UserStore) *AuthManager {
	if secret == "" {
		secret = "dev-change-me"
	}
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}

	manager := &AuthManager{
		secret:    []byte(secret),
		tokenTTL:  tokenTTL,
		userStore: userStore,
		users:     make(map[string]credential),
	}
	manager.bootstrapUsers(context.Background())
	return manager
}

// Login verifies the credentials and returns a signed token plus the actor it
// identifies.
func (a *AuthManager) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, domain.Actor, error) {
	lookupCtx, cancel := context.WithTimeout(ctx, userLookupTimeout)
	a.bootstrapUsers(lookupCtx)
	cancel()

	username := strings.ToLower(strings.TrimSpace(req.Username))
	a.mu.RLock()
	cred, ok := a.users[username]
	a.mu.RUnlock()
	if !ok || !verifyPassword(cred.password, req.Password) {
		return domain.LoginResponse{}, domain.Actor{}, errors.New("invalid credentials")
	}
	if !cred.active {
		return domain.LoginResponse{}, domain.Actor{}, errors.New("account is inactive")
	}

	expiresAt := time.Now().UTC().Add(a.tokenTTL)
	token, err := a.sign(username, cred.ownerID, expiresAt)
	if err != nil {
		return domain.LoginResponse{}, domain.Actor{}, err
	}

	return domain.LoginResponse{
		AccessToken: token,
		OwnerID:     cred.ownerID,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
	}, domain.Actor{Username: username, OwnerID: cred.ownerID}, nil
}

func (a *AuthManager) ParseToken(tokenStr string) (domain.Actor, error) {
	claims := &dashboardClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return domain.Actor{}, errors.New("invalid or expired token")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.Actor{}, errors.New("invalid token subject")
	}
	return domain.Actor{Username: claims.Username, OwnerID: sub}, nil
}

func (a *AuthManager) sign(username, ownerID string, expiresAt time.Time) (string, error) {
	claims := dashboardClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   ownerID,
			IssuedAt:  jwtlib.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    "bizdash",
		},
		Username: username,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// bootstrapUsers reloads accounts from the user store. Plain-text passwords
// are hashed in memory; the store copy is left as is.
func (a *AuthManager) bootstrapUsers(ctx context.Context) {
	if a.userStore == nil {
		return
	}

	users, err := a.userStore.ListUsers(ctx)
	if err != nil {
		log.Printf("[auth] WARN: list users failed: %v", err)
		return
	}
	if len(users) == 0 {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for _, user := range users {
		username := strings.ToLower(strings.TrimSpace(user.Username))
		if username == "" || user.OwnerID == "" {
			continue
		}
		password := user.Password
		if !isPasswordHash(password) {
			if existing, ok := a.users[username]; ok && verifyPassword(existing.password, password) {
				password = existing.password
			} else if hashed, err := hashPassword(password); err == nil {
				password = hashed
			}
		}
		a.users[username] = credential{
			password: password,
			ownerID:  user.OwnerID,
			active:   user.Active,
		}
	}
}

func verifyPassword(stored string, input string) bool {
	if stored == "" || strings.TrimSpace(input) == "" || !isPasswordHash(stored) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(input)) == nil
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func isPasswordHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}
