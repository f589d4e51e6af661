package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"cadet-chat-service/internal/domain"
	"cadet-chat-service/internal/identity"
	"cadet-chat-service/internal/response"
)

// UnauthorizedMessage is returned for every missing or rejected credential.
const UnauthorizedMessage = "Unauthorized. Provide a valid Bearer token."

const authUserKey = "auth_user"

// ErrUnauthorized is returned when no acceptable credential is present.
var ErrUnauthorized = errors.New("unauthorized")

// AuthUser is the caller identity resolved once per request or socket.
type AuthUser struct {
	UserID int64
	Role   domain.ChatRole
}

// Claims carried by access tokens. The role may be absent, in which case the
// directory decides.
type TokenClaims struct {
	UserID int64
	Role   string
	Rank   string
}

type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*TokenClaims, error)
}

type AuthServiceValidator struct {
	authServiceURL string
	secretKey      string
	httpClient     *http.Client
	logger         *zap.Logger
}

func NewAuthServiceValidator(authServiceURL, secretKey string, logger *zap.Logger) *AuthServiceValidator {
	return &AuthServiceValidator{
		authServiceURL: strings.TrimRight(authServiceURL, "/"),
		secretKey:      secretKey,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
		logger: logger,
	}
}

func (v *AuthServiceValidator) ValidateToken(ctx context.Context, tokenString string) (*TokenClaims, error) {
	// Try auth service first
	if v.authServiceURL != "" {
		claims, err := v.validateWithAuthService(ctx, tokenString)
		if err == nil {
			return claims, nil
		}
		v.logger.Debug("Auth service validation failed, falling back to local", zap.Error(err))
	}

	return v.validateLocally(tokenString)
}

func (v *AuthServiceValidator) validateWithAuthService(ctx context.Context, token string) (*TokenClaims, error) {
	url := v.authServiceURL + "/api/auth/validate"

	reqBody, _ := json.Marshal(map[string]string{"token": token})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth service returned status %d", resp.StatusCode)
	}

	var result struct {
		UserID json.Number `json:"user_id"`
		Role   string      `json:"role"`
		Rank   string      `json:"rank"`
	}
	decoder := json.NewDecoder(resp.Body)
	decoder.UseNumber()
	if err := decoder.Decode(&result); err != nil {
		return nil, err
	}

	userID, err := strconv.ParseInt(result.UserID.String(), 10, 64)
	if err != nil || userID <= 0 {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return &TokenClaims{UserID: userID, Role: result.Role, Rank: result.Rank}, nil
}

func (v *AuthServiceValidator) validateLocally(tokenString string) (*TokenClaims, error) {
	if v.secretKey == "" {
		return nil, jwt.ErrTokenUnverifiable
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(v.secretKey), nil
	}, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))

	if err != nil || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, jwt.ErrTokenInvalidClaims
	}

	var userID int64
	for _, key := range []string{"user_id", "userId", "id", "sub"} {
		if val, exists := claims[key]; exists {
			userID = claimInt(val)
			break
		}
	}
	if userID <= 0 {
		return nil, jwt.ErrTokenInvalidClaims
	}

	role, _ := claims["role"].(string)
	rank, _ := claims["rank"].(string)
	return &TokenClaims{UserID: userID, Role: role, Rank: rank}, nil
}

func claimInt(val interface{}) int64 {
	switch v := val.(type) {
	case float64:
		return int64(v)
	case string:
		id, _ := strconv.ParseInt(v, 10, 64)
		return id
	case json.Number:
		id, _ := v.Int64()
		return id
	}
	return 0
}

// Authenticator turns request credentials into an AuthUser.
type Authenticator struct {
	validator  TokenValidator
	resolver   *identity.Resolver
	devHeaders bool
	logger     *zap.Logger
}

// NewAuthenticator builds an Authenticator. devHeaders enables the X-User-Id /
// X-User-Role fallback and must be false in production.
func NewAuthenticator(validator TokenValidator, resolver *identity.Resolver, devHeaders bool, logger *zap.Logger) *Authenticator {
	return &Authenticator{
		validator:  validator,
		resolver:   resolver,
		devHeaders: devHeaders,
		logger:     logger,
	}
}

// Authenticate reads, in order, the token query parameter (sockets only), the
// Bearer header and, when enabled, the development identity headers.
func (a *Authenticator) Authenticate(ctx context.Context, r *http.Request, allowQuery bool) (*AuthUser, error) {
	token := ""
	if allowQuery {
		token = strings.TrimSpace(r.URL.Query().Get("token"))
	}
	if token == "" {
		token = bearerToken(r.Header.Get("Authorization"))
	}

	if token != "" {
		claims, err := a.validator.ValidateToken(ctx, token)
		if err != nil {
			return nil, ErrUnauthorized
		}
		return a.identify(ctx, claims.UserID, claims.Role, claims.Rank)
	}

	if !a.devHeaders {
		return nil, ErrUnauthorized
	}

	rawID := r.Header.Get("X-User-Id")
	rawRole := r.Header.Get("X-User-Role")
	if allowQuery && rawID == "" {
		rawID = r.URL.Query().Get("user_id")
		rawRole = r.URL.Query().Get("role")
	}
	userID, err := strconv.ParseInt(strings.TrimSpace(rawID), 10, 64)
	if err != nil || userID <= 0 {
		return nil, ErrUnauthorized
	}
	return a.identify(ctx, userID, rawRole, "")
}

func (a *Authenticator) identify(ctx context.Context, userID int64, rawRole, rank string) (*AuthUser, error) {
	if role, ok := domain.NormalizeRole(rawRole, rank); ok {
		return &AuthUser{UserID: userID, Role: role}, nil
	}
	if a.resolver == nil {
		return nil, ErrUnauthorized
	}

	ident, err := a.resolver.Resolve(ctx, userID)
	if err != nil {
		a.logger.Debug("Failed to resolve caller role", zap.Int64("user_id", userID), zap.Error(err))
		return nil, ErrUnauthorized
	}
	return &AuthUser{UserID: ident.UserID, Role: ident.ChatRole}, nil
}

func bearerToken(header string) string {
	parts := strings.Fields(header)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return parts[1]
}

// AuthMiddleware rejects requests without a valid identity
func AuthMiddleware(auth *Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := auth.Authenticate(c.Request.Context(), c.Request, false)
		if err != nil {
			response.AbortWithError(c, http.StatusUnauthorized, response.ErrCodeUnauthorized, UnauthorizedMessage)
			return
		}

		c.Set(authUserKey, user)
		c.Next()
	}
}

// CurrentUser returns the identity stored by AuthMiddleware.
func CurrentUser(c *gin.Context) (*AuthUser, bool) {
	value, exists := c.Get(authUserKey)
	if !exists {
		return nil, false
	}
	user, ok := value.(*AuthUser)
	return user, ok
}
