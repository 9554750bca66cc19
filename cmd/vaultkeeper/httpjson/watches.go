package httpjson

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	web "github.com/vaultkeeper-hq/vaultkeeper/http"
	"github.com/vaultkeeper-hq/vaultkeeper/logging"
	"github.com/vaultkeeper-hq/vaultkeeper/models"
	"github.com/vaultkeeper-hq/vaultkeeper/utils"
)

func (h *handler) setupWatchRoutes(rg *gin.RouterGroup) {
	watches := rg.Group("/watches")

	watches.POST("", h.startWatch)
	watches.GET(":hash/events", h.listWatchEvents)
}

func (h *handler) startWatch(c *gin.Context) {
	var req models.StartWatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		web.ErrBadRequest(c, errors.Wrap(err, "invalid request"))
		return
	}

	if !utils.IsValidBytes32(req.TxHash) {
		web.ErrBadRequest(c, errors.Errorf("invalid transaction hash: %s", req.TxHash))
		return
	}

	if _, err := h.deps.Registry.GetClient(req.ChainID); err != nil {
		web.ErrBadRequest(c, err)
		return
	}

	h.logger.Info().
		Str(logging.FieldTxHash, req.TxHash).
		Uint64(logging.FieldChain, req.ChainID).
		Msg("StartWatch request received")

	// The watch outlives this request, it is bound to the server lifetime.
	h.deps.Monitor.StartWatch(h.baseCtx, models.WatchRequest{
		TxHash:        req.TxHash,
		ChainID:       req.ChainID,
		SubscriberID:  req.SubscriberID,
		Confirmations: req.Confirmations,
		PollInterval:  time.Duration(req.PollIntervalMs) * time.Millisecond,
	})

	c.JSON(http.StatusAccepted, gin.H{
		"status":   "watching",
		"tx_hash":  req.TxHash,
		"chain_id": req.ChainID,
	})
}

func (h *handler) listWatchEvents(c *gin.Context) {
	ctx := c.Request.Context()

	hash := c.Param("hash")
	if !utils.IsValidBytes32(hash) {
		web.ErrBadRequest(c, errors.Wrap(ErrParamRequired, "transaction hash"))
		return
	}

	if h.deps.Database == nil {
		web.ErrNotFound(c, errors.New("event history is not enabled"))
		return
	}

	events, err := h.deps.Database.ListStatusEvents(ctx, hash)
	if err != nil {
		web.ErrInternalServerError(c, err)
		return
	}

	if events == nil {
		events = []*models.StatusEvent{}
	}

	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}
