package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"trx_discount_back/models"
)

func (h *Handler) GetRate(c *gin.Context) {
	rate := h.service.Rates.Rate()
	wrapOkJSON(c, map[string]interface{}{
		"data":  rate,
		"ready": rate != nil,
		"stale": h.service.Rates.Stale(),
	})
}

func (h *Handler) RefreshRate(c *gin.Context) {
	rate := h.service.Rates.FetchRate(c.Request.Context())
	wrapOkJSON(c, map[string]interface{}{
		"data": rate,
	})
}

// Convert quotes the discounted USDT amount for {amount}. usdt is empty until a rate is known.
func (h *Handler) Convert(c *gin.Context) {
	var req models.ConvertRequest
	if err := c.BindJSON(&req); err != nil {
		newErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	res := models.ConvertResponse{
		Amount: req.Amount,
		USDT:   h.service.Purchase.Convert(req.Amount),
	}
	if rate := h.service.Rates.Rate(); rate != nil {
		res.Rate = *rate
	}

	wrapOkJSON(c, map[string]interface{}{
		"data": res,
	})
}

// SetInput applies an edit to the amount field. Malformed edits are ignored, not rejected.
func (h *Handler) SetInput(c *gin.Context) {
	var req models.InputRequest
	if err := c.BindJSON(&req); err != nil {
		newErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	input, usdt := h.service.Purchase.SetInput(req.Value)
	wrapOkJSON(c, map[string]interface{}{
		"input": input,
		"usdt":  usdt,
	})
}
