package main

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	tokenTTL       = 7 * 24 * time.Hour
	tokenIssuer    = "stackfire"
	signingKeyLen  = 32
	signingKeyName = "jwt_secret" // settings row

	minUsernameLen = 2
	maxUsernameLen = 16
	minPasswordLen = 4

	loginWindow      = time.Minute
	maxLoginAttempts = 10
)

// bcryptCost is a variable so tests can hash quickly
var bcryptCost = 12

var (
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidUsername    = fmt.Errorf("username must be %d-%d characters", minUsernameLen, maxUsernameLen)
	ErrWeakPassword       = fmt.Errorf("password must be at least %d characters", minPasswordLen)
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrRateLimited        = errors.New("too many login attempts, try again later")
	ErrInvalidToken       = errors.New("invalid token")
	ErrInternal           = errors.New("internal error")
)

// pilotClaims is the token payload identifying a registered pilot
type pilotClaims struct {
	PilotID  int64  `json:"pid"`
	Username string `json:"usr"`
	jwt.RegisteredClaims
}

// loginLimiter counts attempts per key in fixed windows
type loginLimiter struct {
	mu      sync.Mutex
	windows map[string]loginWindowState
	limit   int
	span    time.Duration
}

type loginWindowState struct {
	attempts int
	resetAt  time.Time
}

func newLoginLimiter(limit int, span time.Duration) *loginLimiter {
	return &loginLimiter{windows: make(map[string]loginWindowState), limit: limit, span: span}
}

// allow records an attempt and reports whether it is within the limit
func (l *loginLimiter) allow(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.windows[key]
	if now.After(w.resetAt) {
		w = loginWindowState{resetAt: now.Add(l.span)}
	}
	w.attempts++
	l.windows[key] = w
	return w.attempts <= l.limit
}

// Auth issues and checks pilot credentials
type Auth struct {
	db         *DB
	log        *zap.Logger
	signingKey []byte
	limiter    *loginLimiter
}

// NewAuth creates an Auth whose signing key survives restarts via the settings table
func NewAuth(db *DB, log *zap.Logger) *Auth {
	if log == nil {
		log = zap.NewNop()
	}
	return &Auth{
		db:         db,
		log:        log,
		signingKey: signingKey(db, log),
		limiter:    newLoginLimiter(maxLoginAttempts, loginWindow),
	}
}

func signingKey(db *DB, log *zap.Logger) []byte {
	if db != nil {
		if key, err := hex.DecodeString(db.GetSetting(signingKeyName)); err == nil && len(key) == signingKeyLen {
			return key
		}
	}
	key := make([]byte, signingKeyLen)
	if _, err := rand.Read(key); err != nil {
		panic("auth: read random signing key: " + err.Error())
	}
	if db != nil {
		if err := db.SetSetting(signingKeyName, hex.EncodeToString(key)); err != nil {
			log.Warn("signing key not persisted, tokens will not survive a restart", zap.Error(err))
		}
	}
	return key
}

func validCredentials(username, password string) error {
	if n := len(username); n < minUsernameLen || n > maxUsernameLen {
		return ErrInvalidUsername
	}
	if len(password) < minPasswordLen {
		return ErrWeakPassword
	}
	return nil
}

// Register creates an account and returns its id and a session token
func (a *Auth) Register(username, password string) (int64, string, error) {
	username = strings.TrimSpace(username)
	if err := validCredentials(username, password); err != nil {
		return 0, "", err
	}

	taken, err := a.db.UsernameExists(username)
	switch {
	case err != nil:
		a.log.Error("username lookup failed", zap.Error(err))
		return 0, "", ErrInternal
	case taken:
		return 0, "", ErrUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		a.log.Error("password hash failed", zap.Error(err))
		return 0, "", ErrInternal
	}
	id, err := a.db.CreateAccount(username, string(hash))
	if err != nil {
		a.log.Error("create account failed", zap.String("username", username), zap.Error(err))
		return 0, "", ErrInternal
	}
	return a.issue(id, username)
}

// Login checks a password and returns the account id and a fresh token.
// Attempts are limited per remote address.
func (a *Auth) Login(username, password, ip string) (int64, string, error) {
	if !a.limiter.allow(ip, time.Now()) {
		return 0, "", ErrRateLimited
	}

	acct, err := a.db.GetAccountByUsername(strings.TrimSpace(username))
	if err != nil {
		a.log.Error("account lookup failed", zap.Error(err))
		return 0, "", ErrInternal
	}
	if acct == nil || bcrypt.CompareHashAndPassword([]byte(acct.PassHash), []byte(password)) != nil {
		return 0, "", ErrInvalidCredentials
	}
	return a.issue(acct.ID, acct.Username)
}

// ValidateToken returns the pilot a token was issued to
func (a *Auth) ValidateToken(token string) (int64, string, error) {
	var claims pilotClaims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (interface{}, error) { return a.signingKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return 0, "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.PilotID <= 0 || claims.Username == "" {
		return 0, "", ErrInvalidToken
	}
	return claims.PilotID, claims.Username, nil
}

func (a *Auth) issue(id int64, username string) (int64, string, error) {
	now := time.Now()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, pilotClaims{
		PilotID:  id,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
	}).SignedString(a.signingKey)
	if err != nil {
		a.log.Error("sign token failed", zap.Error(err))
		return 0, "", ErrInternal
	}
	return id, token, nil
}
