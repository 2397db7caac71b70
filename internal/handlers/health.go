package handlers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
)

type HealthStore interface {
	Ping(ctx context.Context) error
}

func Healthz(store HealthStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := store.Ping(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	}
}
