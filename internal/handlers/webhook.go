package handlers

import (
	"context"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/labstack/echo/v4"
)

type UpdateHandler interface {
	HandleUpdate(ctx context.Context, update tgbotapi.Update)
}

const secretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// TelegramWebhook ingests bot updates in webhook mode. The secret token set
// when registering the webhook authenticates Telegram as the caller.
func TelegramWebhook(listener UpdateHandler, secret string) echo.HandlerFunc {
	return func(c echo.Context) error {
		if secret != "" && c.Request().Header.Get(secretTokenHeader) != secret {
			return echo.NewHTTPError(http.StatusUnauthorized, "bad secret token")
		}

		update := tgbotapi.Update{}
		if err := c.Bind(&update); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "malformed update")
		}

		listener.HandleUpdate(c.Request().Context(), update)
		return c.NoContent(http.StatusOK)
	}
}
