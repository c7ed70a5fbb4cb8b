package router

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo-contrib/echoprometheus"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	echoSwagger "github.com/swaggo/echo-swagger"

	"userdirectory/internal/auth"
	"userdirectory/internal/errors"
	"userdirectory/internal/handler"
	"userdirectory/internal/logger"
	"userdirectory/internal/model"
)

const metricsSubsystem = "userdirectory"

// Register wires routes and middleware.
func Register(
	e *echo.Echo,
	jwtService *auth.JWTService,
	tokenStore auth.TokenStoreInterface,
	userHandler *handler.UserHandler,
	authHandler *handler.AuthHandler,
) {
	e.Use(middleware.RequestID())
	e.Use(logger.RequestLogger())
	e.Use(middleware.Recover())
	e.Use(echoprometheus.NewMiddleware(metricsSubsystem))

	e.Validator = &CustomValidator{validator: model.NewValidator()}

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	api := e.Group("/api")

	// Public routes
	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/refresh", authHandler.Refresh)

	api.POST("/users", userHandler.CreateUser)
	api.GET("/users", userHandler.ListUsers)
	api.GET("/users/by-username/:username", userHandler.GetUserByUsername)
	api.GET("/users/by-email/:email", userHandler.FindUsersByEmail)
	api.GET("/users/:id", userHandler.GetUser)

	// Secured routes (require JWT authentication)
	secured := api.Group("",
		echojwt.WithConfig(echojwt.Config{
			SigningKey: jwtService.Secret(),
			NewClaimsFunc: func(echo.Context) jwt.Claims {
				return auth.NewClaims()
			},
		}),
		rejectRevoked(tokenStore),
	)

	secured.POST("/auth/logout", authHandler.Logout)
	secured.GET("/me", userHandler.Me)
	secured.PATCH("/users/:id", userHandler.UpdateUser)
	secured.DELETE("/users/:id", userHandler.DeleteUser)
}

// rejectRevoked admits only access tokens and refuses those blacklisted on logout.
func rejectRevoked(tokenStore auth.TokenStoreInterface) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := c.Get("user").(*jwt.Token)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}
			claims, ok := token.Claims.(*auth.Claims)
			if !ok || !claims.IsAccess() {
				return echo.NewHTTPError(http.StatusUnauthorized, errors.ErrorResponse{
					Error: "access token required",
					Code:  "INVALID_TOKEN_TYPE",
				})
			}

			revoked, err := tokenStore.IsAccessTokenBlacklisted(c.Request().Context(), claims.ID)
			if err != nil {
				// cache outage should not lock every user out
				logrus.WithError(err).Warn("access token blacklist lookup failed")
			}
			if revoked {
				return echo.NewHTTPError(http.StatusUnauthorized, errors.ErrorResponse{
					Error: "token has been revoked",
					Code:  "TOKEN_REVOKED",
				})
			}
			return next(c)
		}
	}
}

// CustomValidator wraps validator for Echo.
type CustomValidator struct {
	validator *validator.Validate
}

// Validate implements echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}
