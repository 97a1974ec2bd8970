package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ton-deals/backend/internal/apperr"
	"github.com/ton-deals/backend/internal/http/dto"
	"github.com/ton-deals/backend/internal/middleware"
	"github.com/ton-deals/backend/internal/services"
)

type DealHandler struct {
	dealService *services.DealService
	log         *zap.Logger
}

func NewDealHandler(dealService *services.DealService, log *zap.Logger) *DealHandler {
	return &DealHandler{dealService: dealService, log: log}
}

// respondErr converts service errors into HTTP responses. Internal errors are
// logged with the request id and masked for the client.
func respondErr(c *fiber.Ctx, log *zap.Logger, err error) error {
	reqID, _ := c.Locals(middleware.CtxRequestID).(string)

	var status int
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		status = fiber.StatusNotFound
	case apperr.KindForbidden:
		status = fiber.StatusForbidden
	case apperr.KindConflict:
		status = fiber.StatusConflict
	case apperr.KindBadRequest:
		status = fiber.StatusBadRequest
	default:
		status = fiber.StatusInternalServerError
		log.Error("request failed",
			zap.String("request_id", reqID),
			zap.String("path", c.Path()),
			zap.Error(err))
	}

	return c.Status(status).JSON(dto.ErrorResponse{Error: apperr.PublicMessage(err), RequestID: reqID})
}

func parseDealID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, apperr.BadRequest("invalid deal id")
	}
	return id, nil
}

func (h *DealHandler) CreateDeal(c *fiber.Ctx) error {
	var req dto.CreateDealRequest
	if err := c.BodyParser(&req); err != nil {
		return respondErr(c, h.log, apperr.BadRequest("invalid request body"))
	}

	channelID, err := uuid.Parse(req.ChannelID)
	if err != nil {
		return respondErr(c, h.log, apperr.BadRequest("invalid channel_id"))
	}

	in := services.CreateDealInput{
		ChannelID:   channelID,
		PostContent: req.PostContent,
	}
	if req.AdFormatID != nil {
		formatID, err := uuid.Parse(*req.AdFormatID)
		if err != nil {
			return respondErr(c, h.log, apperr.BadRequest("invalid ad_format_id"))
		}
		in.AdFormatID = &formatID
	}
	if req.PriceTON != "" {
		price, err := decimal.NewFromString(req.PriceTON)
		if err != nil {
			return respondErr(c, h.log, apperr.BadRequest("invalid price_ton"))
		}
		in.PriceTON = price
	}

	actorID := middleware.GetUserID(c)
	deal, err := h.dealService.CreateFromListing(c.Context(), actorID, in)
	if err != nil {
		return respondErr(c, h.log, err)
	}

	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: deal})
}

func (h *DealHandler) CreateDealFromApplication(c *fiber.Ctx) error {
	applicationID, err := uuid.Parse(c.Params("application_id"))
	if err != nil {
		return respondErr(c, h.log, apperr.BadRequest("invalid application id"))
	}

	actorID := middleware.GetUserID(c)
	deal, err := h.dealService.CreateFromCampaign(c.Context(), actorID, applicationID)
	if err != nil {
		return respondErr(c, h.log, err)
	}

	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: deal})
}

func (h *DealHandler) GetDeal(c *fiber.Ctx) error {
	dealID, err := parseDealID(c)
	if err != nil {
		return respondErr(c, h.log, err)
	}

	deal, err := h.dealService.GetDeal(c.Context(), dealID, middleware.GetUserID(c))
	if err != nil {
		return respondErr(c, h.log, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: deal})
}

func (h *DealHandler) ListDeals(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)

	limit, offset := 20, 0
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			offset = n
		}
	}

	var state, dealType *string
	if v := c.Query("state"); v != "" {
		state = &v
	}
	if v := c.Query("deal_type"); v != "" {
		dealType = &v
	}

	deals, err := h.dealService.ListDeals(c.Context(), userID, state, dealType, limit, offset)
	if err != nil {
		return respondErr(c, h.log, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: deals})
}

func (h *DealHandler) AcceptDeal(c *fiber.Ctx) error {
	dealID, err := parseDealID(c)
	if err != nil {
		return respondErr(c, h.log, err)
	}

	deal, err := h.dealService.Accept(c.Context(), dealID, middleware.GetUserID(c))
	if err != nil {
		return respondErr(c, h.log, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: deal})
}

func (h *DealHandler) RejectDeal(c *fiber.Ctx) error {
	dealID, err := parseDealID(c)
	if err != nil {
		return respondErr(c, h.log, err)
	}

	var req dto.RejectDealRequest
	if err := c.BodyParser(&req); err != nil {
		return respondErr(c, h.log, apperr.BadRequest("invalid request body"))
	}

	deal, err := h.dealService.Reject(c.Context(), dealID, middleware.GetUserID(c), req.Reason)
	if err != nil {
		return respondErr(c, h.log, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: deal})
}

func (h *DealHandler) CancelDeal(c *fiber.Ctx) error {
	dealID, err := parseDealID(c)
	if err != nil {
		return respondErr(c, h.log, err)
	}

	var req dto.CancelDealRequest
	_ = c.BodyParser(&req)

	deal, err := h.dealService.Cancel(c.Context(), dealID, middleware.GetUserID(c), req.Reason)
	if err != nil {
		return respondErr(c, h.log, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: deal})
}

func (h *DealHandler) SubmitDraft(c *fiber.Ctx) error {
	dealID, err := parseDealID(c)
	if err != nil {
		return respondErr(c, h.log, err)
	}

	var req dto.SubmitDraftRequest
	if err := c.BodyParser(&req); err != nil {
		return respondErr(c, h.log, apperr.BadRequest("invalid request body"))
	}

	deal, err := h.dealService.SubmitDraft(c.Context(), dealID, middleware.GetUserID(c), req.Content, req.ScheduledPostTime)
	if err != nil {
		return respondErr(c, h.log, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: deal})
}

func (h *DealHandler) ReviewDraft(c *fiber.Ctx) error {
	dealID, err := parseDealID(c)
	if err != nil {
		return respondErr(c, h.log, err)
	}

	var req dto.ReviewDraftRequest
	if err := c.BodyParser(&req); err != nil {
		return respondErr(c, h.log, apperr.BadRequest("invalid request body"))
	}

	deal, err := h.dealService.ReviewDraft(c.Context(), dealID, middleware.GetUserID(c), req.Approve, req.Reason)
	if err != nil {
		return respondErr(c, h.log, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: deal})
}

func (h *DealHandler) MarkPosted(c *fiber.Ctx) error {
	dealID, err := parseDealID(c)
	if err != nil {
		return respondErr(c, h.log, err)
	}

	var req dto.MarkPostedRequest
	_ = c.BodyParser(&req)

	deal, err := h.dealService.MarkPosted(c.Context(), dealID, middleware.GetUserID(c), req.PostLink)
	if err != nil {
		return respondErr(c, h.log, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: deal})
}

func (h *DealHandler) VerifyPost(c *fiber.Ctx) error {
	dealID, err := parseDealID(c)
	if err != nil {
		return respondErr(c, h.log, err)
	}

	deal, err := h.dealService.VerifyPost(c.Context(), dealID, middleware.GetUserID(c))
	if err != nil {
		return respondErr(c, h.log, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: deal})
}

func (h *DealHandler) GetDealEvents(c *fiber.Ctx) error {
	dealID, err := parseDealID(c)
	if err != nil {
		return respondErr(c, h.log, err)
	}

	events, err := h.dealService.GetDealEvents(c.Context(), dealID, middleware.GetUserID(c))
	if err != nil {
		return respondErr(c, h.log, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: events})
}
