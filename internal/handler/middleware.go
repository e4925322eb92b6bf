package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/time/rate"
)

const (
	sessionCookie = "session"

	authorizationHeader = "Authorization"
	bearer              = "Bearer "
)

// sessionAuth guards the RPC endpoint: a valid session token must arrive
// in the session cookie or as a bearer header.
func (h *Handler) sessionAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := sessionToken(c)
		if token == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "No session")
		}
		claims, err := h.authSvc.ParseSession(token)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid session")
		}
		c.Set(sessionClaimsKey, claims)
		return next(c)
	}
}

const sessionClaimsKey = "sessionClaims"

func sessionToken(c echo.Context) string {
	if cookie, err := c.Cookie(sessionCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	authorization := c.Request().Header.Get(authorizationHeader)
	if strings.HasPrefix(authorization, bearer) {
		return strings.TrimPrefix(authorization, bearer)
	}
	return ""
}

func newRateLimiterMW(rps rate.Limit) echo.MiddlewareFunc {
	return middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rps))
}

func requestLoggerConfig(log *zap.Logger) middleware.RequestLoggerConfig {
	return middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		HandleError:  true,
		LogError:     true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := zapcore.InfoLevel
			if v.Error != nil {
				level = zapcore.ErrorLevel
			}
			log.Log(level, "request",
				zap.String("URI", v.URI),
				zap.String("Method", v.Method),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.Error(v.Error),
				zap.String("request_id", v.RequestID),
			)
			return nil
		},
	}
}
