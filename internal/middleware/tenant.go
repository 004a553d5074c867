// Package middleware содержит HTTP middleware сервиса меню-бордов.
package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

type contextKey string

const tenantIDKey contextKey = "tenantID"

const (
	// TenantCookieName: имя cookie с токеном арендатора.
	TenantCookieName = "tenant_token"
	// TenantHeaderName: заголовок с токеном арендатора для клиентов без cookie.
	TenantHeaderName = "X-Tenant-Token"
	tenantCookieTTL  = 365 * 24 * time.Hour
)

// TenantMiddleware определяет арендатора запроса по подписанному токену.
type TenantMiddleware struct {
	secretKey []byte
}

// NewTenantMiddleware создаёт middleware с указанным секретом подписи.
// Пустой секрет заменяется случайным: токены перестают быть валидными после перезапуска.
func NewTenantMiddleware(secret string) *TenantMiddleware {
	key := []byte(secret)
	if len(key) == 0 {
		randomKey := make([]byte, 32)
		if _, err := rand.Read(randomKey); err == nil {
			key = randomKey
		} else {
			key = []byte("default-secret-key")
		}
	}

	return &TenantMiddleware{
		secretKey: key,
	}
}

// Middleware проверяет токен арендатора и добавляет его идентификатор в контекст запроса.
// Токен берётся из заголовка X-Tenant-Token, а при его отсутствии из cookie.
func (m *TenantMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get(TenantHeaderName)
		if token == "" {
			if cookie, err := r.Cookie(TenantCookieName); err == nil {
				token = cookie.Value
			}
		}
		if token == "" {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		tenantID, ok := m.parseToken(token)
		if !ok {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithTenantID(r.Context(), tenantID)))
	})
}

// Token возвращает подписанный токен арендатора.
func (m *TenantMiddleware) Token(tenantID uuid.UUID) string {
	id := tenantID.String()
	return id + "." + m.sign(id)
}

// SetTenantCookie устанавливает cookie с токеном арендатора и возвращает сам токен.
func (m *TenantMiddleware) SetTenantCookie(w http.ResponseWriter, tenantID uuid.UUID) string {
	value := m.Token(tenantID)

	http.SetCookie(w, &http.Cookie{
		Name:     TenantCookieName,
		Value:    value,
		Path:     "/",
		Expires:  time.Now().Add(tenantCookieTTL),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return value
}

func (m *TenantMiddleware) sign(id string) string {
	mac := hmac.New(sha256.New, m.secretKey)
	mac.Write([]byte(id))
	return hex.EncodeToString(mac.Sum(nil))
}

func (m *TenantMiddleware) parseToken(token string) (uuid.UUID, bool) {
	idStr, signature, found := strings.Cut(token, ".")
	if !found || strings.Contains(signature, ".") {
		return uuid.Nil, false
	}

	if !hmac.Equal([]byte(signature), []byte(m.sign(idStr))) {
		return uuid.Nil, false
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, false
	}

	return id, true
}

// GetTenantIDFromContext извлекает идентификатор арендатора из контекста запроса.
func GetTenantIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(tenantIDKey).(uuid.UUID)
	return id, ok
}

// WithTenantID кладёт идентификатор арендатора в контекст.
func WithTenantID(ctx context.Context, tenantID uuid.UUID) context.Context {
	return context.WithValue(ctx, tenantIDKey, tenantID)
}
