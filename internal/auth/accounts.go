package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/tepiprep/tepiprep/internal/rbac"
)

const (
	MinPasswordLen = 8
	MaxPasswordLen = 72 // bcrypt input limit, in bytes
	ResetTokenTTL  = time.Hour
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrWeakPassword       = errors.New("password too short")
	ErrPasswordTooLong    = errors.New("password too long")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrInvalidToken       = errors.New("reset token invalid or expired")
	ErrUserNotFound       = errors.New("user not found")
)

func checkPassword(pw string) error {
	switch {
	case len(pw) < MinPasswordLen:
		return ErrWeakPassword
	case len(pw) > MaxPasswordLen:
		return ErrPasswordTooLong
	}
	return nil
}

type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	CreatedAt   int64  `json:"created_at"`
}

// Accounts manages users, password hashes and reset tokens.
type Accounts struct {
	db   *sql.DB
	cost int
	now  func() time.Time
}

type Option func(*Accounts)

// WithBcryptCost lowers the hashing cost, for tests.
func WithBcryptCost(c int) Option           { return func(a *Accounts) { a.cost = c } }
func WithClock(now func() time.Time) Option { return func(a *Accounts) { a.now = now } }

func NewAccounts(db *sql.DB, opts ...Option) *Accounts {
	a := &Accounts{db: db, cost: 12, now: time.Now}
	for _, o := range opts {
		o(a)
	}
	return a
}

func normalizeEmail(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return "", ErrInvalidEmail
	}
	return s, nil
}

func (a *Accounts) SignUp(ctx context.Context, email, password, displayName string) (User, error) {
	return a.create(ctx, email, password, displayName, rbac.RoleStudent)
}

func (a *Accounts) create(ctx context.Context, email, password, displayName, role string) (User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return User{}, err
	}
	if err := checkPassword(password); err != nil {
		return User{}, err
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = strings.SplitN(email, "@", 2)[0]
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if err != nil {
		return User{}, err
	}
	u := User{ID: uuid.NewString(), Email: email, DisplayName: displayName, Role: role, CreatedAt: a.now().Unix()}
	res, err := a.db.ExecContext(ctx, `INSERT INTO users (id, email, display_name, password_hash, role, created_at)
		VALUES ($1,$2,$3,$4,$5,$6) ON CONFLICT (email) DO NOTHING`,
		u.ID, u.Email, u.DisplayName, string(hash), u.Role, u.CreatedAt)
	if err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return User{}, ErrEmailTaken
	}
	return u, nil
}

// Login checks credentials. Unknown email and wrong password are the same error.
func (a *Accounts) Login(ctx context.Context, email, password string) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var u User
	var hash string
	err := a.db.QueryRowContext(ctx,
		`SELECT id, email, display_name, role, created_at, password_hash FROM users WHERE email=$1`, email).
		Scan(&u.ID, &u.Email, &u.DisplayName, &u.Role, &u.CreatedAt, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

func (a *Accounts) Get(ctx context.Context, id string) (User, error) {
	var u User
	err := a.db.QueryRowContext(ctx,
		`SELECT id, email, display_name, role, created_at FROM users WHERE id=$1`, id).
		Scan(&u.ID, &u.Email, &u.DisplayName, &u.Role, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	return u, err
}

func (a *Accounts) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if err := checkPassword(newPassword); err != nil {
		return err
	}
	var hash string
	err := a.db.QueryRowContext(ctx, `SELECT password_hash FROM users WHERE id=$1`, userID).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrUserNotFound
	}
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(oldPassword)) != nil {
		return ErrInvalidCredentials
	}
	return a.setPassword(ctx, a.db, userID, newPassword)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (a *Accounts) setPassword(ctx context.Context, ex execer, userID, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if err != nil {
		return err
	}
	_, err = ex.ExecContext(ctx, `UPDATE users SET password_hash=$1 WHERE id=$2`, string(hash), userID)
	return err
}

// RequestReset creates a single-use reset token valid for one hour. For an
// unknown email it returns "" and no error, so callers cannot probe accounts.
func (a *Accounts) RequestReset(ctx context.Context, email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var userID string
	err := a.db.QueryRowContext(ctx, `SELECT id FROM users WHERE email=$1`, email).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	token := hex.EncodeToString(buf)
	_, err = a.db.ExecContext(ctx, `INSERT INTO password_resets (token_hash, user_id, expires_at) VALUES ($1,$2,$3)`,
		hashToken(token), userID, a.now().Add(ResetTokenTTL).Unix())
	if err != nil {
		return "", err
	}
	return token, nil
}

// ConfirmReset consumes token and sets a new password.
func (a *Accounts) ConfirmReset(ctx context.Context, token, newPassword string) error {
	if err := checkPassword(newPassword); err != nil {
		return err
	}
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var userID string
	err = tx.QueryRowContext(ctx, `SELECT user_id FROM password_resets
		WHERE token_hash=$1 AND used_at IS NULL AND expires_at > $2`, hashToken(token), a.now().Unix()).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrInvalidToken
	}
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE password_resets SET used_at=$1 WHERE token_hash=$2`,
		a.now().Unix(), hashToken(token)); err != nil {
		return err
	}
	if err := a.setPassword(ctx, tx, userID, newPassword); err != nil {
		return err
	}
	return tx.Commit()
}

// EnsureAdmin creates the admin account, or promotes an existing account
// with that email. It never changes an existing password.
func (a *Accounts) EnsureAdmin(ctx context.Context, email, password string) (User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return User{}, err
	}
	u, err := a.create(ctx, email, password, "Admin", rbac.RoleAdmin)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, ErrEmailTaken) {
		return User{}, err
	}
	if _, err := a.db.ExecContext(ctx, `UPDATE users SET role=$1 WHERE email=$2`, rbac.RoleAdmin, email); err != nil {
		return User{}, err
	}
	var id string
	if err := a.db.QueryRowContext(ctx, `SELECT id FROM users WHERE email=$1`, email).Scan(&id); err != nil {
		return User{}, err
	}
	return a.Get(ctx, id)
}

// CountUsers is used by the admin dashboard.
func (a *Accounts) CountUsers(ctx context.Context) (int, error) {
	var n int
	err := a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

func hashToken(t string) string {
	sum := sha256.Sum256([]byte(t))
	return hex.EncodeToString(sum[:])
}
