package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mrlokans/ebookstore/internal/auth"
	"github.com/mrlokans/ebookstore/internal/purchase"
)

// PurchasesController exposes the two purchase phases. Both routes sit
// behind RequireBearer; the token subject identifies the reader.
type PurchasesController struct {
	flow   PurchaseFlow
	logger *zap.Logger
}

func NewPurchasesController(flow PurchaseFlow, logger *zap.Logger) *PurchasesController {
	return &PurchasesController{
		flow:   flow,
		logger: orNop(logger),
	}
}

// PurchaseBook handles GET /purchase-book/:id.
func (controller *PurchasesController) PurchaseBook(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	descriptor, err := controller.flow.InitiatePurchase(c.Request.Context(), auth.GetEmail(c), id)
	if err != nil {
		respondError(c, controller.logger, err)
		return
	}
	c.IndentedJSON(http.StatusOK, descriptor)
}

// ProcessPayment handles POST /process-payment/:id.
func (controller *PurchasesController) ProcessPayment(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	form, ok := requireForm(c, "card_number", "card_expiration_month", "card_expiration_year")
	if !ok {
		return
	}
	card := purchase.CardDetails{
		Number:   form["card_number"],
		ExpMonth: form["card_expiration_month"],
		ExpYear:  form["card_expiration_year"],
	}

	descriptor, err := controller.flow.SubmitPayment(c.Request.Context(), auth.GetEmail(c), id, card)
	if err != nil {
		respondError(c, controller.logger, err)
		return
	}
	c.IndentedJSON(http.StatusOK, descriptor)
}
