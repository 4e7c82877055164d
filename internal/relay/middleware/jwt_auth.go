package middleware

import (
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/avolkov/farview/internal/relay/appctx"
)

// JWTAuthMiddleware проверяет токен доступа к комнате. Токен берется из
// заголовка Authorization (Bearer) либо из query-параметра token -
// браузерные websocket-клиенты не умеют выставлять заголовки.
// Subject токена - идентификатор комнаты, он кладется в контекст.
func JWTAuthMiddleware(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := tokenFromRequest(c)
			if raw == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing token"})
			}

			token, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(token *jwt.Token) (any, error) {
				return []byte(secret), nil
			})
			if err != nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid or expired token"})
			}

			claims, ok := token.Claims.(*jwt.RegisteredClaims)
			if !ok || !token.Valid || claims.Subject == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid or expired token"})
			}

			c.SetRequest(
				c.Request().WithContext(
					appctx.WithRoomID(c.Request().Context(), claims.Subject),
				),
			)

			return next(c)
		}
	}
}

func tokenFromRequest(c echo.Context) string {
	const prefix = "Bearer "

	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	if len(auth) > len(prefix) && auth[:len(prefix)] == prefix {
		return auth[len(prefix):]
	}

	return c.QueryParam("token")
}
