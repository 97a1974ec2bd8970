package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/ton-deals/backend/internal/http/dto"
	"github.com/ton-deals/backend/internal/middleware"
	"github.com/ton-deals/backend/internal/services"
)

// PaymentHandler exposes the escrow side of a deal: deposit details,
// payment confirmation and the transaction history.
type PaymentHandler struct {
	dealService *services.DealService
	log         *zap.Logger
}

func NewPaymentHandler(dealService *services.DealService, log *zap.Logger) *PaymentHandler {
	return &PaymentHandler{dealService: dealService, log: log}
}

func (h *PaymentHandler) InitiatePayment(c *fiber.Ctx) error {
	dealID, err := parseDealID(c)
	if err != nil {
		return respondErr(c, h.log, err)
	}

	info, err := h.dealService.InitiatePayment(c.Context(), dealID, middleware.GetUserID(c))
	if err != nil {
		return respondErr(c, h.log, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: info})
}

// VerifyPayment is the advertiser-side check: did my deposit land.
func (h *PaymentHandler) VerifyPayment(c *fiber.Ctx) error {
	dealID, err := parseDealID(c)
	if err != nil {
		return respondErr(c, h.log, err)
	}

	deal, err := h.dealService.MarkPaid(c.Context(), dealID, middleware.GetUserID(c))
	if err != nil {
		return respondErr(c, h.log, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: deal})
}

// ConfirmPayment is the publishing side re-checking the deposit before
// starting work.
func (h *PaymentHandler) ConfirmPayment(c *fiber.Ctx) error {
	dealID, err := parseDealID(c)
	if err != nil {
		return respondErr(c, h.log, err)
	}

	deal, err := h.dealService.ConfirmPayment(c.Context(), dealID, middleware.GetUserID(c))
	if err != nil {
		return respondErr(c, h.log, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: deal})
}

func (h *PaymentHandler) GetEscrowStatus(c *fiber.Ctx) error {
	dealID, err := parseDealID(c)
	if err != nil {
		return respondErr(c, h.log, err)
	}

	info, balance, err := h.dealService.GetEscrowStatus(c.Context(), dealID, middleware.GetUserID(c))
	if err != nil {
		return respondErr(c, h.log, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.EscrowStatusResponse{
		DealID:        info.DealID.String(),
		EscrowAddress: info.EscrowAddress,
		AmountTON:     info.AmountTON.String(),
		PaymentStatus: info.PaymentStatus,
		BalanceTON:    balance.String(),
	}})
}

func (h *PaymentHandler) GetTransactions(c *fiber.Ctx) error {
	dealID, err := parseDealID(c)
	if err != nil {
		return respondErr(c, h.log, err)
	}

	txs, err := h.dealService.GetTransactions(c.Context(), dealID, middleware.GetUserID(c))
	if err != nil {
		return respondErr(c, h.log, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: txs})
}

func (h *PaymentHandler) RefundDeal(c *fiber.Ctx) error {
	dealID, err := parseDealID(c)
	if err != nil {
		return respondErr(c, h.log, err)
	}

	deal, err := h.dealService.Refund(c.Context(), dealID, middleware.GetUserID(c))
	if err != nil {
		return respondErr(c, h.log, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: deal})
}
