package server

import (
	"fmt"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// accessLog is an access-log middleware writing one line per request.
func accessLog(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			// skip metric endpoints
			if strings.HasPrefix(c.Path(), "/metrics") {
				return nil
			}

			req := c.Request()
			res := c.Response()
			var event *zerolog.Event
			switch n := res.Status; {
			case n >= 500:
				event = logger.Error().Err(err)
			case n >= 400:
				event = logger.Warn().Err(err)
			default:
				event = logger.Info()
			}
			event.
				Str("request_id", res.Header().Get(echo.HeaderXRequestID)).
				Str("remote_ip", c.RealIP()).
				Str("request", fmt.Sprintf("%s %s", req.Method, req.RequestURI)).
				Int("status", res.Status).
				Int64("size", res.Size).
				Dur("latency", time.Since(start)).
				Msg("request handled")
			return nil
		}
	}
}
