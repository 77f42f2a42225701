package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/awslabs/aws-lambda-go-api-proxy/core"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"savethespice-backend/internal/config"
	appErrors "savethespice-backend/internal/errors"
	"savethespice-backend/pkg/api"
)

// DevUserHeader carries the user id when authentication is disabled.
const DevUserHeader = "X-User-Id"

var (
	errMissingToken = errors.New("missing bearer token")
	errNoSubject    = errors.New("token has no subject")
)

// Authenticate resolves the caller's user id according to the configured mode and
// rejects the request with 401 when it cannot.
func Authenticate(cfg config.Auth, logger *zap.Logger) func(next http.Handler) http.Handler {
	var resolve func(r *http.Request) (string, error)
	switch cfg.Mode {
	case config.AuthJWT:
		resolve = bearerResolver([]byte(cfg.JWTSecret), cfg.JWTIssuer)
	case config.AuthNone:
		logger.Warn("authentication disabled; trusting " + DevUserHeader)
		resolve = func(r *http.Request) (string, error) {
			return r.Header.Get(DevUserHeader), nil
		}
	default:
		resolve = gatewayUserID
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := resolve(r)
			if err == nil && userID == "" {
				err = errNoSubject
			}
			if err != nil {
				logger.Debug("request not authenticated",
					zap.String("path", r.URL.Path),
					zap.Error(err),
				)
				api.Error(w, http.StatusUnauthorized, string(appErrors.CodeUnauthorized), "unauthorized")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// gatewayUserID reads the sub claim placed in the request context by the Lambda proxy.
// Both JWT and Lambda authorizers are supported.
func gatewayUserID(r *http.Request) (string, error) {
	reqCtx, ok := core.GetAPIGatewayV2ContextFromContext(r.Context())
	if !ok || reqCtx.Authorizer == nil {
		return "", errors.New("no authorizer context")
	}
	if reqCtx.Authorizer.JWT != nil {
		if sub := reqCtx.Authorizer.JWT.Claims["sub"]; sub != "" {
			return sub, nil
		}
	}
	if sub, ok := reqCtx.Authorizer.Lambda["sub"].(string); ok {
		return sub, nil
	}
	return "", errNoSubject
}

func bearerResolver(secret []byte, issuer string) func(r *http.Request) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	parser := jwt.NewParser(opts...)

	return func(r *http.Request) (string, error) {
		header := r.Header.Get("Authorization")
		scheme, token, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
			return "", errMissingToken
		}

		var claims jwt.RegisteredClaims
		if _, err := parser.ParseWithClaims(strings.TrimSpace(token), &claims, func(*jwt.Token) (any, error) {
			return secret, nil
		}); err != nil {
			return "", err
		}
		return claims.Subject, nil
	}
}
