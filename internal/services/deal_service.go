package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ton-deals/backend/internal/apperr"
	"github.com/ton-deals/backend/internal/config"
	"github.com/ton-deals/backend/internal/escrow"
	"github.com/ton-deals/backend/internal/events"
	"github.com/ton-deals/backend/internal/models"
	"github.com/ton-deals/backend/internal/repositories"
)

// DealStore is the persistence surface the deal workflow needs. The pgx
// repository implements it; tests run against an in-memory fake.
type DealStore interface {
	Create(ctx context.Context, d *models.Deal) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Deal, error)
	GetByIDWithChannel(ctx context.Context, id uuid.UUID) (*models.DealWithChannel, error)
	ListWithChannel(ctx context.Context, f repositories.DealFilter) ([]models.DealWithChannel, error)
	TransitionState(ctx context.Context, id uuid.UUID, fromState, toState string, patch *models.DealPatch) (bool, error)
	ListScheduledDue(ctx context.Context, now time.Time) ([]models.Deal, error)
	ListPublishedBefore(ctx context.Context, cutoff time.Time) ([]models.Deal, error)
	ListStaleBefore(ctx context.Context, states []string, cutoff time.Time) ([]models.Deal, error)
}

type ChannelStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Channel, error)
	GetAdFormat(ctx context.Context, id uuid.UUID) (*models.AdFormat, error)
}

type CampaignStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Campaign, error)
	GetApplicationByID(ctx context.Context, id uuid.UUID) (*models.CampaignApplication, error)
	UpdateApplicationStatus(ctx context.Context, id uuid.UUID, status string) error
}

type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type AuditLogger interface {
	Log(ctx context.Context, entry models.AuditLog) error
}

// WalletVault mints and looks up the per-deal escrow wallet.
type WalletVault interface {
	CreateOrGetWallet(ctx context.Context, dealID uuid.UUID) (*models.EscrowWallet, error)
	GetWallet(ctx context.Context, dealID uuid.UUID) (*models.EscrowWallet, error)
}

// Notifier is the bot-facing surface: channel publications and user DMs.
type Notifier interface {
	PublishPost(ctx context.Context, req PublishRequest) (*PublishResult, error)
	SendNotification(ctx context.Context, telegramUserID int64, text string) error
}

// PostChecker verifies that a published post still exists.
type PostChecker interface {
	FetchPost(ctx context.Context, username string, messageID int64) (bool, string, error)
}

// PostLinkParser splits a t.me link into username and message id.
type PostLinkParser func(link string) (string, int64, error)

type DealService struct {
	deals     DealStore
	channels  ChannelStore
	campaigns CampaignStore
	users     UserStore
	audit     AuditLogger
	vault     WalletVault
	bridge    escrow.Bridge
	bot       Notifier
	checker   PostChecker
	parseLink PostLinkParser
	publisher events.Publisher
	cfg       *config.Config
	log       *zap.Logger
}

func NewDealService(
	deals DealStore,
	channels ChannelStore,
	campaigns CampaignStore,
	users UserStore,
	audit AuditLogger,
	vault WalletVault,
	bridge escrow.Bridge,
	bot Notifier,
	checker PostChecker,
	parseLink PostLinkParser,
	publisher events.Publisher,
	cfg *config.Config,
	log *zap.Logger,
) *DealService {
	return &DealService{
		deals:     deals,
		channels:  channels,
		campaigns: campaigns,
		users:     users,
		audit:     audit,
		vault:     vault,
		bridge:    bridge,
		bot:       bot,
		checker:   checker,
		parseLink: parseLink,
		publisher: publisher,
		cfg:       cfg,
		log:       log,
	}
}

// transition is the single choke point for deal state changes. It validates
// the move against the transition table, performs the conditional update
// (losing a concurrent race surfaces as a conflict, never a silent
// overwrite), then records the audit entry and publishes the event.
func (s *DealService) transition(ctx context.Context, deal *models.Deal, newState string, patch *models.DealPatch, actorID *uuid.UUID, actorType string) error {
	if !models.IsValidTransition(deal.State, newState) {
		return apperr.BadRequest("deal in state %q cannot move to %q", deal.State, newState)
	}

	oldState := deal.State
	ok, err := s.deals.TransitionState(ctx, deal.ID, oldState, newState, patch)
	if err != nil {
		return apperr.Internal(err, "failed to update deal")
	}
	if !ok {
		return apperr.Conflict("deal was modified concurrently, reload and retry")
	}

	deal.State = newState
	if patch != nil {
		patch.Apply(deal)
	}
	deal.UpdatedAt = time.Now()

	_ = s.audit.Log(ctx, models.AuditLog{
		ActorUserID: actorID,
		ActorType:   actorType,
		Action:      fmt.Sprintf("deal_state_%s_to_%s", oldState, newState),
		EntityType:  "deal",
		EntityID:    &deal.ID,
		Meta:        map[string]any{"old_state": oldState, "new_state": newState},
	})

	_ = s.publisher.Publish(ctx, "events:deal", events.Event{
		Type: events.EventDealStateChanged,
		Payload: map[string]any{
			"deal_id":   deal.ID.String(),
			"old_state": oldState,
			"new_state": newState,
		},
	})

	return nil
}

func (s *DealService) getDeal(ctx context.Context, id uuid.UUID) (*models.Deal, error) {
	deal, err := s.deals.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Internal(err, "failed to load deal")
	}
	if deal == nil {
		return nil, apperr.NotFound("deal not found")
	}
	return deal, nil
}

// ---- Origination ----

type CreateDealInput struct {
	ChannelID   uuid.UUID
	AdFormatID  *uuid.UUID
	PriceTON    decimal.Decimal
	PostContent *string
}

// CreateFromListing opens a deal against a channel listing. The advertiser
// initiates; the channel owner holds approval rights.
func (s *DealService) CreateFromListing(ctx context.Context, advertiserID uuid.UUID, in CreateDealInput) (*models.Deal, error) {
	channel, err := s.channels.GetByID(ctx, in.ChannelID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to load channel")
	}
	if channel == nil {
		return nil, apperr.NotFound("channel not found")
	}
	if channel.Status != models.ChannelStatusActive {
		return nil, apperr.BadRequest("channel is not accepting deals")
	}
	if channel.OwnerID == advertiserID {
		return nil, apperr.Forbidden("you cannot buy ads in your own channel")
	}

	price := in.PriceTON
	if in.AdFormatID != nil {
		format, err := s.channels.GetAdFormat(ctx, *in.AdFormatID)
		if err != nil {
			return nil, apperr.Internal(err, "failed to load ad format")
		}
		if format == nil || format.ChannelID != in.ChannelID {
			return nil, apperr.BadRequest("ad format does not belong to this channel")
		}
		if price.IsZero() && format.PriceTON != nil {
			price, err = decimal.NewFromString(*format.PriceTON)
			if err != nil {
				return nil, apperr.Internal(err, "bad price on ad format")
			}
		}
	}
	if price.LessThanOrEqual(decimal.Zero) {
		return nil, apperr.BadRequest("deal price must be positive")
	}

	timeoutAt := time.Now().AddDate(0, 0, s.cfg.DealTimeoutDays)
	deal := &models.Deal{
		ChannelID:      in.ChannelID,
		AdvertiserID:   advertiserID,
		OwnerID:        channel.OwnerID,
		ApplicantID:    advertiserID,
		AdFormatID:     in.AdFormatID,
		DealType:       models.DealTypeChannelListing,
		PriceTON:       price,
		State:          models.DealStatePending,
		PaymentStatus:  models.PaymentStatusPending,
		CreativeStatus: models.CreativeStatusDraft,
		PostContent:    in.PostContent,
		TimeoutAt:      &timeoutAt,
	}

	if err := s.deals.Create(ctx, deal); err != nil {
		return nil, apperr.Internal(err, "failed to create deal")
	}

	_ = s.audit.Log(ctx, models.AuditLog{
		ActorUserID: &advertiserID,
		ActorType:   "user",
		Action:      "deal_created",
		EntityType:  "deal",
		EntityID:    &deal.ID,
		Meta:        map[string]any{"deal_type": deal.DealType, "price_ton": price.String()},
	})
	s.notify(ctx, deal.OwnerID, "New ad deal request for your channel. Open the app to review it.")

	return deal, nil
}

// CreateFromCampaign converts an accepted campaign application into a deal.
// Roles invert relative to listing deals: the campaign's advertiser holds
// approval rights and the applying channel owner does the publishing.
func (s *DealService) CreateFromCampaign(ctx context.Context, actorID, applicationID uuid.UUID) (*models.Deal, error) {
	app, err := s.campaigns.GetApplicationByID(ctx, applicationID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to load application")
	}
	if app == nil {
		return nil, apperr.NotFound("campaign application not found")
	}
	if app.Status != models.ApplicationStatusPending {
		return nil, apperr.BadRequest("application has already been processed")
	}

	campaign, err := s.campaigns.GetByID(ctx, app.CampaignID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to load campaign")
	}
	if campaign == nil {
		return nil, apperr.NotFound("campaign not found")
	}
	if campaign.AdvertiserID != actorID {
		return nil, apperr.Forbidden("only the campaign owner can accept applications")
	}
	if app.ProposedPriceTON.LessThanOrEqual(decimal.Zero) {
		return nil, apperr.BadRequest("application price must be positive")
	}

	timeoutAt := time.Now().AddDate(0, 0, s.cfg.DealTimeoutDays)
	deal := &models.Deal{
		ChannelID:             app.ChannelID,
		AdvertiserID:          campaign.AdvertiserID,
		OwnerID:               campaign.AdvertiserID,
		ApplicantID:           app.ApplicantID,
		CampaignID:            &campaign.ID,
		DealType:              models.DealTypeCampaignRequest,
		IsCampaignApplication: true,
		PriceTON:              app.ProposedPriceTON,
		State:                 models.DealStatePending,
		PaymentStatus:         models.PaymentStatusPending,
		CreativeStatus:        models.CreativeStatusDraft,
		TimeoutAt:             &timeoutAt,
	}

	if err := s.deals.Create(ctx, deal); err != nil {
		return nil, apperr.Internal(err, "failed to create deal")
	}
	if err := s.campaigns.UpdateApplicationStatus(ctx, app.ID, models.ApplicationStatusAccepted); err != nil {
		s.log.Error("failed to mark application accepted",
			zap.String("application_id", app.ID.String()), zap.Error(err))
	}

	_ = s.audit.Log(ctx, models.AuditLog{
		ActorUserID: &actorID,
		ActorType:   "user",
		Action:      "deal_created",
		EntityType:  "deal",
		EntityID:    &deal.ID,
		Meta:        map[string]any{"deal_type": deal.DealType, "campaign_id": campaign.ID.String()},
	})
	s.notify(ctx, app.ApplicantID, "Your campaign application was accepted. A deal has been opened.")

	return deal, nil
}

// ---- Approval ----

// Accept moves a pending deal forward. Only the owner side may accept. The
// escrow wallet is minted here so the payment screen can show an address
// immediately, and the deal lands in awaiting_payment in the same call.
func (s *DealService) Accept(ctx context.Context, dealID, actorID uuid.UUID) (*models.Deal, error) {
	deal, err := s.getDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if deal.OwnerID != actorID {
		return nil, apperr.Forbidden("only the deal owner can accept it")
	}

	if err := s.transition(ctx, deal, models.DealStateAccepted, nil, &actorID, "user"); err != nil {
		return nil, err
	}
	if _, err := s.vault.CreateOrGetWallet(ctx, deal.ID); err != nil {
		return nil, err
	}
	if err := s.transition(ctx, deal, models.DealStateAwaitingPayment, nil, &actorID, "system"); err != nil {
		return nil, err
	}

	s.notify(ctx, s.payerID(deal), "Your deal was accepted. Deposit the payment to move forward.")
	return deal, nil
}

// Reject declines a pending deal. A non-empty reason is mandatory.
func (s *DealService) Reject(ctx context.Context, dealID, actorID uuid.UUID, reason string) (*models.Deal, error) {
	deal, err := s.getDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if deal.OwnerID != actorID {
		return nil, apperr.Forbidden("only the deal owner can reject it")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperr.BadRequest("rejection reason is required")
	}

	patch := &models.DealPatch{RejectionReason: &reason}
	if err := s.transition(ctx, deal, models.DealStateRejected, patch, &actorID, "user"); err != nil {
		return nil, err
	}

	s.notify(ctx, deal.ApplicantID, "Your deal was rejected: "+reason)
	return deal, nil
}

// Cancel aborts a deal that has not reached publication. Either party may
// cancel; the optional reason is kept for the counterparty.
func (s *DealService) Cancel(ctx context.Context, dealID, actorID uuid.UUID, reason *string) (*models.Deal, error) {
	deal, err := s.getDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if !deal.IsParty(actorID) {
		return nil, apperr.Forbidden("only a deal participant can cancel it")
	}

	now := time.Now()
	patch := &models.DealPatch{CancelledAt: &now}
	if reason != nil && strings.TrimSpace(*reason) != "" {
		trimmed := strings.TrimSpace(*reason)
		patch.RejectionReason = &trimmed
	}
	if err := s.transition(ctx, deal, models.DealStateCancelled, patch, &actorID, "user"); err != nil {
		return nil, err
	}

	other := deal.OwnerID
	if actorID == deal.OwnerID {
		other = deal.ApplicantID
	}
	s.notify(ctx, other, "The deal was cancelled by the other party.")
	return deal, nil
}

// ---- Payment ----

// PaymentInfo is what the payment screen needs: where to send and how much.
type PaymentInfo struct {
	DealID        uuid.UUID       `json:"deal_id"`
	EscrowAddress string          `json:"escrow_address"`
	AmountTON     decimal.Decimal `json:"amount_ton"`
	PaymentStatus string          `json:"payment_status"`
}

// InitiatePayment returns the escrow deposit details, minting the wallet if
// the deal reached awaiting_payment without one.
func (s *DealService) InitiatePayment(ctx context.Context, dealID, actorID uuid.UUID) (*PaymentInfo, error) {
	deal, err := s.getDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if deal.AdvertiserID != actorID {
		return nil, apperr.Forbidden("only the advertiser pays for the deal")
	}
	if deal.State != models.DealStateAwaitingPayment {
		return nil, apperr.BadRequest("deal in state %q is not awaiting payment", deal.State)
	}

	w, err := s.vault.CreateOrGetWallet(ctx, deal.ID)
	if err != nil {
		return nil, err
	}
	return &PaymentInfo{
		DealID:        deal.ID,
		EscrowAddress: w.Address,
		AmountTON:     deal.PriceTON,
		PaymentStatus: deal.PaymentStatus,
	}, nil
}

// MarkPaid is the advertiser-side payment confirmation: verify the deposit
// on chain and advance the deal.
func (s *DealService) MarkPaid(ctx context.Context, dealID, actorID uuid.UUID) (*models.Deal, error) {
	deal, err := s.getDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if deal.AdvertiserID != actorID {
		return nil, apperr.Forbidden("only the advertiser can confirm their payment")
	}
	return s.confirmDeposit(ctx, deal, actorID)
}

// ConfirmPayment is the channel-side variant: the publisher re-checks the
// deposit before starting work.
func (s *DealService) ConfirmPayment(ctx context.Context, dealID, actorID uuid.UUID) (*models.Deal, error) {
	deal, err := s.getDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if deal.ChannelPartyID() != actorID {
		return nil, apperr.Forbidden("only the publishing side can confirm receipt")
	}
	return s.confirmDeposit(ctx, deal, actorID)
}

func (s *DealService) confirmDeposit(ctx context.Context, deal *models.Deal, actorID uuid.UUID) (*models.Deal, error) {
	if deal.State != models.DealStateAwaitingPayment {
		return nil, apperr.BadRequest("deal in state %q is not awaiting payment", deal.State)
	}

	ok, err := s.bridge.VerifyPayment(ctx, deal.ID, deal.PriceTON)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.BadRequest("escrow deposit not found or below the deal price")
	}

	confirmed := models.PaymentStatusConfirmed
	patch := &models.DealPatch{PaymentStatus: &confirmed}
	if err := s.transition(ctx, deal, models.DealStateDrafting, patch, &actorID, "user"); err != nil {
		return nil, err
	}

	_ = s.publisher.Publish(ctx, "events:deal", events.Event{
		Type:    events.EventPaymentReceived,
		Payload: map[string]any{"deal_id": deal.ID.String(), "amount_ton": deal.PriceTON.String()},
	})
	s.notify(ctx, deal.ChannelPartyID(), "Payment received in escrow. You can start drafting the post.")
	s.notify(ctx, deal.AdvertiserID, "Your escrow deposit is confirmed.")
	return deal, nil
}

// ---- Creative loop ----

var scheduledTimeLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
}

func parseScheduledTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range scheduledTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", raw)
}

// SubmitDraft records the proposed post text and schedule and hands the deal
// to the advertiser for review. Resubmission after a revision request clears
// the previous feedback.
func (s *DealService) SubmitDraft(ctx context.Context, dealID, actorID uuid.UUID, content, scheduledTime string) (*models.Deal, error) {
	deal, err := s.getDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if deal.ChannelPartyID() != actorID {
		return nil, apperr.Forbidden("only the publishing side submits drafts")
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperr.BadRequest("draft content is required")
	}
	when, err := parseScheduledTime(scheduledTime)
	if err != nil {
		return nil, apperr.BadRequest("scheduled time must look like 2006-01-02T15:04:05")
	}
	if !when.After(time.Now()) {
		return nil, apperr.BadRequest("scheduled time must be in the future")
	}

	now := time.Now()
	submitted := models.CreativeStatusSubmitted
	// A fresh submission wipes any stale feedback from earlier rounds.
	patch := &models.DealPatch{
		CreativeStatus:         &submitted,
		PostContent:            &content,
		ScheduledPostTime:      &when,
		CreativeSubmittedAt:    &now,
		ClearRejectionReason:   true,
		ClearEditRequestReason: true,
	}
	if err := s.transition(ctx, deal, models.DealStateReviewing, patch, &actorID, "user"); err != nil {
		return nil, err
	}

	s.notify(ctx, deal.AdvertiserID, "A draft is ready for your review.")
	return deal, nil
}

// ReviewDraft is the advertiser's verdict. Approval schedules the post;
// otherwise a non-empty reason sends the deal back to drafting.
func (s *DealService) ReviewDraft(ctx context.Context, dealID, actorID uuid.UUID, approve bool, reason *string) (*models.Deal, error) {
	deal, err := s.getDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if deal.AdvertiserID != actorID {
		return nil, apperr.Forbidden("only the advertiser reviews drafts")
	}

	if approve {
		now := time.Now()
		approved := models.CreativeStatusApproved
		patch := &models.DealPatch{
			CreativeStatus:     &approved,
			CreativeApprovedAt: &now,
		}
		if err := s.transition(ctx, deal, models.DealStateScheduled, patch, &actorID, "user"); err != nil {
			return nil, err
		}
		s.notify(ctx, deal.ChannelPartyID(), "Your draft was approved and is scheduled for publication.")
		return deal, nil
	}

	if reason == nil || strings.TrimSpace(*reason) == "" {
		return nil, apperr.BadRequest("a reason is required when requesting changes")
	}
	trimmed := strings.TrimSpace(*reason)
	revision := models.CreativeStatusRevisionRequested
	patch := &models.DealPatch{
		CreativeStatus:    &revision,
		EditRequestReason: &trimmed,
	}
	if err := s.transition(ctx, deal, models.DealStateDrafting, patch, &actorID, "user"); err != nil {
		return nil, err
	}
	s.notify(ctx, deal.ChannelPartyID(), "Changes requested on your draft: "+trimmed)
	return deal, nil
}

// ---- Publication ----

// MarkPosted records a manual publication: the channel side posted the
// creative themselves and supplies the link.
func (s *DealService) MarkPosted(ctx context.Context, dealID, actorID uuid.UUID, postLink *string) (*models.Deal, error) {
	deal, err := s.getDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if deal.ChannelPartyID() != actorID {
		return nil, apperr.Forbidden("only the publishing side marks the post")
	}

	now := time.Now()
	patch := &models.DealPatch{ActualPostTime: &now}
	if postLink != nil && strings.TrimSpace(*postLink) != "" {
		trimmed := strings.TrimSpace(*postLink)
		if _, _, err := s.parseLink(trimmed); err != nil {
			return nil, apperr.BadRequest("post link must be a t.me post URL")
		}
		patch.PostLink = &trimmed
	}
	if err := s.transition(ctx, deal, models.DealStatePublished, patch, &actorID, "user"); err != nil {
		return nil, err
	}

	s.notify(ctx, deal.AdvertiserID, "The ad post is live.")
	return deal, nil
}

// VerifyPost is the advertiser's early completion path: confirm the post and
// release escrow without waiting for the verification job.
func (s *DealService) VerifyPost(ctx context.Context, dealID, actorID uuid.UUID) (*models.Deal, error) {
	deal, err := s.getDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if deal.AdvertiserID != actorID {
		return nil, apperr.Forbidden("only the advertiser can verify the post")
	}
	if deal.State != models.DealStatePublished {
		return nil, apperr.BadRequest("deal in state %q has no post to verify", deal.State)
	}

	if err := s.completeAndRelease(ctx, deal, &actorID, "user"); err != nil {
		return nil, err
	}
	return deal, nil
}

// completeAndRelease moves published -> completed and pays the channel side
// from escrow. The payout address is the recipient's verified TON Connect
// wallet; without one the funds stay in escrow and the call fails.
func (s *DealService) completeAndRelease(ctx context.Context, deal *models.Deal, actorID *uuid.UUID, actorType string) error {
	recipient, err := s.users.GetByID(ctx, deal.ChannelPartyID())
	if err != nil {
		return apperr.Internal(err, "failed to load payout recipient")
	}
	if recipient == nil || recipient.TONWalletAddress == nil || *recipient.TONWalletAddress == "" {
		return apperr.BadRequest("the channel side has no verified payout wallet connected")
	}

	txHash, err := s.bridge.ReleaseFunds(ctx, deal.ID, *recipient.TONWalletAddress)
	if err != nil {
		return err
	}

	now := time.Now()
	released := models.PaymentStatusReleased
	patch := &models.DealPatch{
		PaymentStatus:   &released,
		PostVerifiedAt:  &now,
		FundsReleasedAt: &now,
	}
	if err := s.transition(ctx, deal, models.DealStateCompleted, patch, actorID, actorType); err != nil {
		// Funds already moved; the deal row must not stay behind.
		s.log.Error("funds released but completion transition failed",
			zap.String("deal_id", deal.ID.String()),
			zap.String("tx_hash", txHash),
			zap.Error(err),
		)
		return err
	}

	_ = s.publisher.Publish(ctx, "events:deal", events.Event{
		Type:    events.EventFundsReleased,
		Payload: map[string]any{"deal_id": deal.ID.String(), "tx_hash": txHash},
	})
	s.notify(ctx, deal.ChannelPartyID(), "Deal completed, escrow funds released to your wallet.")
	s.notify(ctx, deal.AdvertiserID, "Deal completed.")
	return nil
}

// Refund returns the escrow deposit to the advertiser after a funded deal
// was cancelled.
func (s *DealService) Refund(ctx context.Context, dealID, actorID uuid.UUID) (*models.Deal, error) {
	deal, err := s.getDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if !deal.IsParty(actorID) {
		return nil, apperr.Forbidden("only a deal participant can request a refund")
	}
	if deal.State != models.DealStateCancelled {
		return nil, apperr.BadRequest("only cancelled deals can be refunded")
	}
	if deal.PaymentStatus != models.PaymentStatusConfirmed {
		return nil, apperr.BadRequest("no confirmed escrow deposit to refund")
	}

	advertiser, err := s.users.GetByID(ctx, deal.AdvertiserID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to load refund recipient")
	}
	if advertiser == nil || advertiser.TONWalletAddress == nil || *advertiser.TONWalletAddress == "" {
		return nil, apperr.BadRequest("the advertiser has no verified payout wallet connected")
	}

	if _, err := s.bridge.RefundFunds(ctx, deal.ID, *advertiser.TONWalletAddress); err != nil {
		return nil, err
	}

	refunded := models.PaymentStatusRefunded
	patch := &models.DealPatch{PaymentStatus: &refunded}
	if err := s.transition(ctx, deal, models.DealStateRefunded, patch, &actorID, "user"); err != nil {
		return nil, err
	}

	s.notify(ctx, deal.AdvertiserID, "Your escrow deposit was refunded.")
	return deal, nil
}

// ---- Reads ----

func (s *DealService) GetDeal(ctx context.Context, dealID, userID uuid.UUID) (*models.DealWithChannel, error) {
	deal, err := s.deals.GetByIDWithChannel(ctx, dealID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to load deal")
	}
	if deal == nil {
		return nil, apperr.NotFound("deal not found")
	}
	if !deal.IsParty(userID) {
		return nil, apperr.Forbidden("you are not a participant of this deal")
	}
	return deal, nil
}

func (s *DealService) ListDeals(ctx context.Context, userID uuid.UUID, state, dealType *string, limit, offset int) ([]models.DealWithChannel, error) {
	deals, err := s.deals.ListWithChannel(ctx, repositories.DealFilter{
		UserID:   &userID,
		State:    state,
		DealType: dealType,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		return nil, apperr.Internal(err, "failed to list deals")
	}
	return deals, nil
}

// GetEscrowStatus returns the deposit details plus the live on-chain balance.
func (s *DealService) GetEscrowStatus(ctx context.Context, dealID, userID uuid.UUID) (*PaymentInfo, decimal.Decimal, error) {
	deal, err := s.getDeal(ctx, dealID)
	if err != nil {
		return nil, decimal.Zero, err
	}
	if !deal.IsParty(userID) {
		return nil, decimal.Zero, apperr.Forbidden("you are not a participant of this deal")
	}

	// Status is a read: no wallet is minted here. Before the deal reaches
	// awaiting_payment there is simply nothing to report.
	w, err := s.vault.GetWallet(ctx, deal.ID)
	if err != nil {
		return nil, decimal.Zero, err
	}
	if w == nil {
		return nil, decimal.Zero, apperr.NotFound("no escrow wallet exists for this deal yet")
	}
	balance, err := s.bridge.GetBalance(ctx, w.Address)
	if err != nil {
		return nil, decimal.Zero, err
	}
	return &PaymentInfo{
		DealID:        deal.ID,
		EscrowAddress: w.Address,
		AmountTON:     deal.PriceTON,
		PaymentStatus: deal.PaymentStatus,
	}, balance, nil
}

func (s *DealService) GetTransactions(ctx context.Context, dealID, userID uuid.UUID) ([]escrow.Transaction, error) {
	deal, err := s.getDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if !deal.IsParty(userID) {
		return nil, apperr.Forbidden("you are not a participant of this deal")
	}
	return s.bridge.GetTransactions(ctx, dealID)
}

func (s *DealService) GetDealEvents(ctx context.Context, dealID, userID uuid.UUID) ([]models.AuditLog, error) {
	deal, err := s.getDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if !deal.IsParty(userID) {
		return nil, apperr.Forbidden("you are not a participant of this deal")
	}
	type auditReader interface {
		GetByEntity(ctx context.Context, entityType string, entityID uuid.UUID, limit, offset int) ([]models.AuditLog, error)
	}
	if r, ok := s.audit.(auditReader); ok {
		return r.GetByEntity(ctx, "deal", dealID, 100, 0)
	}
	return nil, nil
}

// ---- Background jobs ----

// AutoPublishDue publishes scheduled deals whose time has come. Per-deal
// failures are logged and skipped so one broken deal cannot stall the rest.
func (s *DealService) AutoPublishDue(ctx context.Context) error {
	due, err := s.deals.ListScheduledDue(ctx, time.Now())
	if err != nil {
		return err
	}

	for i := range due {
		deal := &due[i]
		if err := s.publishDeal(ctx, deal); err != nil {
			s.log.Error("auto-publish failed",
				zap.String("deal_id", deal.ID.String()),
				zap.Error(err),
			)
			continue
		}
		s.log.Info("deal auto-published", zap.String("deal_id", deal.ID.String()))
	}
	return nil
}

func (s *DealService) publishDeal(ctx context.Context, deal *models.Deal) error {
	if deal.PostContent == nil || *deal.PostContent == "" {
		return fmt.Errorf("deal %s has no approved content", deal.ID)
	}
	channel, err := s.channels.GetByID(ctx, deal.ChannelID)
	if err != nil {
		return err
	}
	if channel == nil {
		return fmt.Errorf("channel %s not found", deal.ChannelID)
	}

	result, err := s.bot.PublishPost(ctx, PublishRequest{
		DealID: deal.ID.String(),
		ChatID: channel.TelegramChannelID,
		Text:   *deal.PostContent,
	})
	if err != nil {
		return err
	}

	now := time.Now()
	patch := &models.DealPatch{ActualPostTime: &now}
	if result.PostURL != "" {
		patch.PostLink = &result.PostURL
	}
	if err := s.transition(ctx, deal, models.DealStatePublished, patch, nil, "system"); err != nil {
		return err
	}

	s.notify(ctx, deal.AdvertiserID, "Your ad post is live.")
	s.notify(ctx, deal.ChannelPartyID(), "The scheduled ad post was published.")
	return nil
}

// VerifyAndCompleteDue completes published deals once the hold window after
// actual_post_time has passed and the post is still up.
func (s *DealService) VerifyAndCompleteDue(ctx context.Context) error {
	cutoff := time.Now().Add(-s.cfg.PostVerificationDelay)
	ready, err := s.deals.ListPublishedBefore(ctx, cutoff)
	if err != nil {
		return err
	}

	for i := range ready {
		deal := &ready[i]
		// Funds only move for a post we can actually confirm. A deal
		// without a verifiable link stays published until a human or the
		// advertiser resolves it.
		if deal.PostLink == nil || *deal.PostLink == "" {
			s.log.Warn("published deal has no post link, holding escrow",
				zap.String("deal_id", deal.ID.String()))
			continue
		}
		username, msgID, err := s.parseLink(*deal.PostLink)
		if err != nil {
			s.log.Warn("post link is not verifiable, holding escrow",
				zap.String("deal_id", deal.ID.String()),
				zap.String("post_link", *deal.PostLink),
				zap.Error(err),
			)
			continue
		}
		exists, _, err := s.checker.FetchPost(ctx, username, msgID)
		if err != nil {
			s.log.Warn("post check unavailable, retrying next cycle",
				zap.String("deal_id", deal.ID.String()), zap.Error(err))
			continue
		}
		if !exists {
			s.log.Warn("ad post no longer exists, holding escrow",
				zap.String("deal_id", deal.ID.String()),
				zap.String("post_link", *deal.PostLink),
			)
			s.notify(ctx, deal.AdvertiserID, "The ad post appears to have been deleted. Escrow is on hold.")
			continue
		}

		if err := s.completeAndRelease(ctx, deal, nil, "system"); err != nil {
			s.log.Error("auto-complete failed",
				zap.String("deal_id", deal.ID.String()),
				zap.Error(err),
			)
			continue
		}
		s.log.Info("deal auto-completed", zap.String("deal_id", deal.ID.String()))
	}
	return nil
}

// CancelStale force-cancels deals stuck before funding for too long.
func (s *DealService) CancelStale(ctx context.Context) error {
	cutoff := time.Now().Add(-s.cfg.StaleDealCutoff)
	stale, err := s.deals.ListStaleBefore(ctx, models.StaleCancellableStates, cutoff)
	if err != nil {
		return err
	}

	reason := "System: Timeout due to inactivity (>72h)"
	for i := range stale {
		deal := &stale[i]
		now := time.Now()
		patch := &models.DealPatch{
			RejectionReason: &reason,
			CancelledAt:     &now,
		}
		if err := s.transition(ctx, deal, models.DealStateCancelled, patch, nil, "system"); err != nil {
			s.log.Error("stale cancel failed",
				zap.String("deal_id", deal.ID.String()),
				zap.Error(err),
			)
			continue
		}
		s.notify(ctx, deal.ApplicantID, "Your deal was cancelled automatically after 72 hours of inactivity.")
		s.notify(ctx, deal.OwnerID, "A deal was cancelled automatically after 72 hours of inactivity.")
		s.log.Info("stale deal cancelled", zap.String("deal_id", deal.ID.String()))
	}
	return nil
}

// ---- helpers ----

// payerID is the side that funds escrow.
func (s *DealService) payerID(deal *models.Deal) uuid.UUID {
	return deal.AdvertiserID
}

func (s *DealService) notify(ctx context.Context, userID uuid.UUID, text string) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil || user == nil {
		return
	}
	if err := s.bot.SendNotification(ctx, user.TelegramUserID, text); err != nil {
		s.log.Debug("notification delivery failed",
			zap.String("user_id", userID.String()), zap.Error(err))
	}
}
