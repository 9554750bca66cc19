package httpjson

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	web "github.com/vaultkeeper-hq/vaultkeeper/http"
)

func (h *handler) setupKeeperRoutes(rg *gin.RouterGroup) {
	keeper := rg.Group("/keeper")

	keeper.GET("/health", h.getKeeperHealth)
	keeper.GET("/ticks/latest", h.getLatestKeeperTick)
}

func (h *handler) getKeeperHealth(c *gin.Context) {
	if h.deps.Keeper == nil {
		web.ErrNotFound(c, errors.Wrap(ErrNotFound, "keeper is not enabled"))
		return
	}

	c.JSON(http.StatusOK, h.deps.Keeper.Health())
}

func (h *handler) getLatestKeeperTick(c *gin.Context) {
	if h.deps.Keeper == nil || h.deps.Database == nil {
		web.ErrNotFound(c, errors.Wrap(ErrNotFound, "keeper tick history is not enabled"))
		return
	}

	tick, err := h.deps.Database.GetLatestKeeperTick(c.Request.Context())
	if err != nil {
		web.ErrInternalServerError(c, err)
		return
	}

	if tick == nil {
		web.ErrNotFound(c, errors.Wrap(ErrNotFound, "keeper tick"))
		return
	}

	c.JSON(http.StatusOK, tick)
}
