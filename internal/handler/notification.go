package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/geraidev/checkout/internal/gateway"
)

// notification receives server-to-server payment status updates from the
// gateway. The response is always 200 on success so the gateway stops
// retrying; replays are absorbed by the status state machine.
func (h *Handler) notification(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable request body")
		return
	}

	n, err := gateway.DecodeNotification(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid notification")
		return
	}
	if err := n.VerifySignature(h.serverKey); err != nil {
		zctx.From(r.Context()).Warn("rejected notification",
			zap.String("order_id", n.OrderID),
			zap.Error(err),
		)
		writeError(w, http.StatusUnauthorized, "signature mismatch")
		return
	}

	if err := h.service.ApplyPaymentStatus(r.Context(), n.OrderID, n.Status()); err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
