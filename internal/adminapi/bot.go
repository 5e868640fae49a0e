package adminapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/shopbot/internal/bot"
	"github.com/talkincode/shopbot/internal/webserver"
)

type botMessagePayload struct {
	Jid  string `json:"jid"`
	Text string `json:"text"`
}

func registerBotRoutes() {
	webserver.ApiGET("/bot/status", getBotStatus)
	webserver.ApiPOST("/bot/message", sendBotMessage)
}

func getBotStatus(c echo.Context) error {
	svc := bot.Get()
	return ok(c, map[string]interface{}{
		"connected": svc.IsConnected(),
		"sessions":  webserver.GetApp().SessionStore().Len(),
	})
}

// sendBotMessage pushes an operator message into a chat, e.g. to announce
// maintenance.
func sendBotMessage(c echo.Context) error {
	svc := bot.Get()
	if svc == nil || !svc.IsConnected() {
		return fail(c, http.StatusServiceUnavailable, "BOT_OFFLINE", "Bot is not connected", nil)
	}
	var payload botMessagePayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse message", err.Error())
	}
	payload.Jid = strings.TrimSpace(payload.Jid)
	payload.Text = strings.TrimSpace(payload.Text)
	if payload.Jid == "" || payload.Text == "" {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Jid and text are required", nil)
	}
	if err := svc.SendText(c.Request().Context(), payload.Jid, payload.Text); err != nil {
		return fail(c, http.StatusInternalServerError, "SEND_ERROR", "Failed to send message", err.Error())
	}
	return ok(c, payload)
}
