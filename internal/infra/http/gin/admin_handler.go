package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	"staybook/internal/app/handlers/admin"
)

type AdminHandler struct {
	Commands commands.Bus
	Logger   *slog.Logger
}

// SweepPayments runs one expiration sweep on demand. Schedulers normally use
// the sweeper binary instead.
func (h AdminHandler) SweepPayments(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	result, err := commands.Dispatch[admin.RunPaymentSweepCommand, *dto.SweepResult](c.Request.Context(), h.Commands, admin.RunPaymentSweepCommand{RequestedBy: p.ID})
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
