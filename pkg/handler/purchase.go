package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"trx_discount_back/models"
	"trx_discount_back/pkg/converter"
)

// Purchase runs one attempt to completion. Failures are part of the result, not HTTP errors.
func (h *Handler) Purchase(c *gin.Context) {
	var req models.PurchaseRequest
	if err := c.BindJSON(&req); err != nil {
		newErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	if req.Amount == "" {
		req.Amount = h.service.Purchase.Input()
	}

	res, err := h.service.Purchase.Purchase(c.Request.Context(), req)
	if errors.Is(err, models.ErrPurchaseInFlight) {
		newErrorResponse(c, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		newErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	wrapOkJSON(c, map[string]interface{}{
		"data": res,
	})
}

func (h *Handler) GetPurchaseStatus(c *gin.Context) {
	res, ok := h.service.Purchase.Status()
	out := map[string]interface{}{
		"state":     h.service.Purchase.State(),
		"in_flight": h.service.Purchase.InFlight(),
	}
	if ok {
		out["data"] = res
	}
	wrapOkJSON(c, out)
}

// GetPaymentRequest builds the manual payment instructions for ?amount= TRX.
func (h *Handler) GetPaymentRequest(c *gin.Context) {
	amount, ok := converter.ParseAmount(c.Query("amount"))
	if !ok {
		newErrorResponse(c, http.StatusBadRequest, "amount must be a TRX amount greater than 0")
		return
	}

	req := h.service.Payments.Request(h.service.Config.ReceivingAddress, amount, h.converter.Discount(amount))
	wrapOkJSON(c, map[string]interface{}{
		"data": req,
	})
}

type copyRequest struct {
	Text string `json:"text" binding:"required"`
}

// Copy puts text on the host clipboard. A failure is reported but never breaks the flow.
func (h *Handler) Copy(c *gin.Context) {
	var req copyRequest
	if err := c.BindJSON(&req); err != nil {
		newErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.service.Payments.Copy(req.Text); err != nil {
		newErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	wrapOkJSON(c, map[string]interface{}{
		"copied": true,
	})
}
