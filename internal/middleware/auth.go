package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"mhp_backend_echo/internal/models"
)

const userContextKey = "user"

// RequireAuth returns a middleware that verifies the Bearer access token
// and loads the authenticated user into the request context.
func RequireAuth(db *gorm.DB, secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Missing authorization header")
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid authorization format")
			}

			token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token claims")
			}
			if typ, _ := claims["typ"].(string); typ == "refresh" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Refresh token not accepted here")
			}

			userID, ok := claims["user_id"].(float64)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token claims")
			}

			var user models.User
			if err := db.First(&user, uint(userID)).Error; err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "User not found")
			}
			if !user.IsActive {
				return echo.NewHTTPError(http.StatusUnauthorized, "Account is deactivated")
			}

			c.Set(userContextKey, &user)
			return next(c)
		}
	}
}

// UserFromContext returns the authenticated user set by RequireAuth.
func UserFromContext(c echo.Context) *models.User {
	user, _ := c.Get(userContextKey).(*models.User)
	return user
}
