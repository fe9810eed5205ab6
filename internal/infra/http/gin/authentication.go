package ginserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"staybook/internal/app/identity"
)

// Claims are the token fields issued by the external auth service.
type Claims struct {
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// AuthMiddleware verifies HS256 bearer tokens and puts the principal on the
// request context. Requests without a token pass through anonymously; the
// bus authorizer decides what an anonymous caller may do.
type AuthMiddleware struct {
	Secret []byte
	Issuer string
	Logger *slog.Logger
}

func (m AuthMiddleware) Handle(c *gin.Context) {
	raw := extractBearerToken(c.GetHeader("Authorization"))
	if raw == "" {
		c.Next()
		return
	}
	p, err := m.parse(raw)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Debug("token rejected", slog.Any("error", err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	c.Request = c.Request.WithContext(identity.WithPrincipal(c.Request.Context(), p))
	c.Next()
}

func (m AuthMiddleware) parse(raw string) (identity.Principal, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired()}
	if m.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.Issuer))
	}
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return m.Secret, nil
	}, opts...)
	if err != nil {
		return identity.Principal{}, err
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return identity.Principal{}, errors.New("token without subject")
	}
	p := identity.Principal{ID: claims.Subject}
	for _, r := range claims.Roles {
		switch role := identity.Role(strings.ToLower(strings.TrimSpace(r))); role {
		case identity.RoleGuest, identity.RoleHost, identity.RoleAdmin:
			p.Roles = append(p.Roles, role)
		}
	}
	return p, nil
}

// requirePrincipal answers 401 when the request carries no valid token.
func requirePrincipal(c *gin.Context) (identity.Principal, bool) {
	p, ok := identity.FromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "auth required"})
		return identity.Principal{}, false
	}
	return p, true
}

func extractBearerToken(header string) string {
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
