package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestTenantMiddleware_WithValidCookie(t *testing.T) {
	m := NewTenantMiddleware("test-secret")
	tenantID := uuid.MustParse("3d9a4c1e-5b7f-4e21-9c0d-8a6b2f1e4d37")

	nextCalled := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
		id, ok := GetTenantIDFromContext(r.Context())
		if !ok {
			t.Fatalf("tenant id not in context")
		}
		if id != tenantID {
			t.Fatalf("tenant id from context = %s, want %s", id, tenantID)
		}
	})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/menu", nil)

	m.SetTenantCookie(w, tenantID)
	resCookies := w.Result().Cookies()
	if len(resCookies) == 0 {
		t.Fatalf("no cookies set by SetTenantCookie")
	}
	if resCookies[0].Name != TenantCookieName {
		t.Fatalf("cookie name = %q, want %q", resCookies[0].Name, TenantCookieName)
	}

	r.AddCookie(resCookies[0])

	m.Middleware(next).ServeHTTP(httptest.NewRecorder(), r)

	if !nextCalled {
		t.Fatalf("next handler was not called")
	}
}

func TestTenantMiddleware_WithHeader(t *testing.T) {
	m := NewTenantMiddleware("test-secret")
	tenantID := uuid.New()

	var got uuid.UUID
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = GetTenantIDFromContext(r.Context())
	})

	r := httptest.NewRequest(http.MethodGet, "/api/menu", nil)
	r.Header.Set(TenantHeaderName, m.Token(tenantID))

	m.Middleware(next).ServeHTTP(httptest.NewRecorder(), r)

	if got != tenantID {
		t.Fatalf("tenant id from header = %s, want %s", got, tenantID)
	}
}

func TestTenantMiddleware_Rejects(t *testing.T) {
	m := NewTenantMiddleware("test-secret")
	other := NewTenantMiddleware("other-secret")
	tenantID := uuid.New()
	valid := m.Token(tenantID)
	id, sig, _ := strings.Cut(valid, ".")

	tests := []struct {
		name  string
		token string
	}{
		{name: "no token", token: ""},
		{name: "no signature", token: id},
		{name: "foreign secret", token: other.Token(tenantID)},
		{name: "tampered id", token: uuid.New().String() + "." + sig},
		{name: "extra segment", token: valid + ".x"},
		{name: "not a uuid", token: "42." + sig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatalf("next handler should not be called")
			})

			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/api/menu", nil)
			if tt.token != "" {
				r.Header.Set(TenantHeaderName, tt.token)
			}

			m.Middleware(next).ServeHTTP(w, r)

			if w.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusUnauthorized)
			}
		})
	}
}

func TestNewTenantMiddleware_EmptySecret(t *testing.T) {
	a := NewTenantMiddleware("")
	b := NewTenantMiddleware("")
	tenantID := uuid.New()

	if a.Token(tenantID) == b.Token(tenantID) {
		t.Fatalf("empty secret must be replaced with a random key")
	}
}
