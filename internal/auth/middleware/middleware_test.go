package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/tepiprep/tepiprep/internal/db"
	"github.com/tepiprep/tepiprep/internal/rbac"
)

func TestIssueAndParse(t *testing.T) {
	a := NewAuthService("secret", time.Hour)
	tok, exp, err := a.IssueJWT("u1", "a@b.fr", rbac.RoleStudent)
	if err != nil {
		t.Fatal(err)
	}
	if time.Until(exp) > time.Hour || time.Until(exp) < 59*time.Minute {
		t.Fatalf("unexpected expiry %v", exp)
	}
	c, err := a.Parse(tok)
	if err != nil || c.Sub != "u1" || c.Email != "a@b.fr" || c.Role != rbac.RoleStudent {
		t.Fatalf("parse: %+v %v", c, err)
	}

	other := NewAuthService("other", time.Hour)
	if _, err := other.Parse(tok); err == nil {
		t.Fatal("token signed with another secret must fail")
	}

	a.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := a.Parse(tok); err == nil {
		t.Fatal("expired token must fail")
	}
}

func TestJWTMiddleware(t *testing.T) {
	a := NewAuthService("secret", time.Hour)
	var gotSub, gotRole, gotEmail string
	h := JWTMiddleware(a)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSub = rbac.SubjectFromContext(r.Context())
		gotRole = rbac.RoleFromContext(r.Context())
		gotEmail = EmailFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing bearer: %d", rec.Code)
	}

	tok, _, _ := a.IssueJWT("u1", "a@b.fr", rbac.RoleAdmin)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || gotSub != "u1" || gotRole != rbac.RoleAdmin || gotEmail != "a@b.fr" {
		t.Fatalf("code=%d sub=%q role=%q email=%q", rec.Code, gotSub, gotRole, gotEmail)
	}
}

func TestAttachRoleFromDB(t *testing.T) {
	ctx := context.Background()
	conn, err := db.OpenMemory(ctx, t.Name())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	if _, err := conn.Exec(`INSERT INTO users (id, email, display_name, password_hash, role, created_at)
		VALUES ('u1','a@b.fr','A','x','student',0)`); err != nil {
		t.Fatal(err)
	}

	var role string
	h := AttachRoleFromDB(conn, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role = rbac.RoleFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(rbac.WithRole(rbac.WithSubject(ctx, "u1"), rbac.RoleAdmin))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || role != rbac.RoleStudent {
		t.Fatalf("stored role must win: code=%d role=%q", rec.Code, role)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(rbac.WithSubject(ctx, "ghost"))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("deleted user: %d", rec.Code)
	}
}
