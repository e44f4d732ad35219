package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/hospital/frontdesk/internal/platform/auth"
)

// Recovery turns a handler panic into a 500 and logs it with the route and
// caller. It prefers the request logger installed by Logger.
func Recovery(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				ctx := c.Request().Context()
				log := zerolog.Ctx(ctx)
				if log.GetLevel() == zerolog.Disabled {
					rid, _ := c.Get("request_id").(string)
					l := logger.With().Str("request_id", rid).Logger()
					log = &l
				}
				log.Error().
					Str("method", c.Request().Method).
					Str("route", c.Path()).
					Str("user_id", auth.UserIDFromContext(ctx)).
					Str("panic", fmt.Sprint(r)).
					Bytes("stack", debug.Stack()).
					Msg("panic recovered")

				err = echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
			}()
			return next(c)
		}
	}
}
