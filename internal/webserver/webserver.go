package webserver

import (
	"context"
	"crypto/subtle"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/talkincode/shopbot/internal/app"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// WebServer hosts the admin REST API. All business routes live under
// /api and require the bearer secret from the web config.
type WebServer struct {
	root *echo.Echo
	api  *echo.Group
	app  app.AppContext
}

var server *WebServer

// Init builds the package-level server instance. Routes are registered by
// adminapi via ApiGET and friends before Start is called.
func Init(a app.AppContext) *WebServer {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = &jsonSerializer{}
	e.Use(middleware.Recover())

	secret := a.Config().Web.Secret
	api := e.Group("/api", func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := strings.TrimPrefix(c.Request().Header.Get(echo.HeaderAuthorization), "Bearer ")
			if subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			}
			return next(c)
		}
	})

	e.GET("/", func(c echo.Context) error {
		return c.String(http.StatusOK, "shopbot")
	})
	e.GET("/health", healthHandler(a))

	server = &WebServer{root: e, api: api, app: a}
	return server
}

// Start runs the listener and shuts it down when the context is cancelled.
func (s *WebServer) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.app.Config().Web.Host, s.app.Config().Web.Port)
	zap.L().Info("starting admin api", zap.String("listen", addr))

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.root.Start(addr)
	}()

	select {
	case <-ctx.Done():
		shctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.root.Shutdown(shctx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func healthHandler(a app.AppContext) echo.HandlerFunc {
	return func(c echo.Context) error {
		status := "ok"
		sqlDB, err := a.DB().DB()
		if err == nil {
			err = sqlDB.Ping()
		}
		if err != nil {
			status = "degraded"
		}
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":   status,
			"sessions": a.SessionStore().Len(),
			"time":     time.Now().Format(time.RFC3339),
		})
	}
}

func ApiGET(path string, h echo.HandlerFunc) {
	server.api.GET(path, h)
}

func ApiPOST(path string, h echo.HandlerFunc) {
	server.api.POST(path, h)
}

func ApiPUT(path string, h echo.HandlerFunc) {
	server.api.PUT(path, h)
}

func ApiDELETE(path string, h echo.HandlerFunc) {
	server.api.DELETE(path, h)
}

// GetDB exposes the gorm handle to route handlers.
func GetDB() *gorm.DB {
	return server.app.DB()
}

// GetApp exposes the application context to route handlers.
func GetApp() app.AppContext {
	return server.app
}

type jsonSerializer struct{}

func (jsonSerializer) Serialize(c echo.Context, i interface{}, indent string) error {
	enc := jsoniter.NewEncoder(c.Response())
	if indent != "" {
		enc.SetIndent("", indent)
	}
	return enc.Encode(i)
}

func (jsonSerializer) Deserialize(c echo.Context, i interface{}) error {
	err := jsoniter.NewDecoder(c.Request().Body).Decode(i)
	if err == io.EOF {
		return echo.NewHTTPError(http.StatusBadRequest, "empty request body")
	}
	return err
}
