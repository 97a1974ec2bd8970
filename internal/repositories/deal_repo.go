package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ton-deals/backend/internal/models"
)

const dealColumns = `id, channel_id, advertiser_id, owner_id, applicant_id, campaign_id, ad_format_id,
       deal_type, is_campaign_application, price_ton, state, payment_status, creative_status,
       post_content, post_link, scheduled_post_time, actual_post_time, post_verified_at,
       rejection_reason, edit_request_reason, creative_submitted_at, creative_approved_at,
       funds_released_at, timeout_at, cancelled_at, created_at, updated_at`

type DealRepo struct {
	pool *pgxpool.Pool
}

func NewDealRepo(pool *pgxpool.Pool) *DealRepo {
	return &DealRepo{pool: pool}
}

func scanDeal(row pgx.Row, d *models.Deal) error {
	return row.Scan(&d.ID, &d.ChannelID, &d.AdvertiserID, &d.OwnerID, &d.ApplicantID, &d.CampaignID, &d.AdFormatID,
		&d.DealType, &d.IsCampaignApplication, &d.PriceTON, &d.State, &d.PaymentStatus, &d.CreativeStatus,
		&d.PostContent, &d.PostLink, &d.ScheduledPostTime, &d.ActualPostTime, &d.PostVerifiedAt,
		&d.RejectionReason, &d.EditRequestReason, &d.CreativeSubmittedAt, &d.CreativeApprovedAt,
		&d.FundsReleasedAt, &d.TimeoutAt, &d.CancelledAt, &d.CreatedAt, &d.UpdatedAt)
}

func (r *DealRepo) Create(ctx context.Context, d *models.Deal) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO deals (channel_id, advertiser_id, owner_id, applicant_id, campaign_id, ad_format_id,
		                   deal_type, is_campaign_application, price_ton, state, payment_status, creative_status,
		                   post_content, timeout_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at, updated_at
	`, d.ChannelID, d.AdvertiserID, d.OwnerID, d.ApplicantID, d.CampaignID, d.AdFormatID,
		d.DealType, d.IsCampaignApplication, d.PriceTON, d.State, d.PaymentStatus, d.CreativeStatus,
		d.PostContent, d.TimeoutAt,
	).Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
}

func (r *DealRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Deal, error) {
	var d models.Deal
	err := scanDeal(r.pool.QueryRow(ctx, `SELECT `+dealColumns+` FROM deals WHERE id = $1`, id), &d)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *DealRepo) GetByIDWithChannel(ctx context.Context, id uuid.UUID) (*models.DealWithChannel, error) {
	var d models.DealWithChannel
	err := r.pool.QueryRow(ctx, `
		SELECT d.id, d.channel_id, d.advertiser_id, d.owner_id, d.applicant_id, d.campaign_id, d.ad_format_id,
		       d.deal_type, d.is_campaign_application, d.price_ton, d.state, d.payment_status, d.creative_status,
		       d.post_content, d.post_link, d.scheduled_post_time, d.actual_post_time, d.post_verified_at,
		       d.rejection_reason, d.edit_request_reason, d.creative_submitted_at, d.creative_approved_at,
		       d.funds_released_at, d.timeout_at, d.cancelled_at, d.created_at, d.updated_at,
		       c.title, c.username
		FROM deals d
		JOIN channels c ON c.id = d.channel_id
		WHERE d.id = $1
	`, id).Scan(&d.ID, &d.ChannelID, &d.AdvertiserID, &d.OwnerID, &d.ApplicantID, &d.CampaignID, &d.AdFormatID,
		&d.DealType, &d.IsCampaignApplication, &d.PriceTON, &d.State, &d.PaymentStatus, &d.CreativeStatus,
		&d.PostContent, &d.PostLink, &d.ScheduledPostTime, &d.ActualPostTime, &d.PostVerifiedAt,
		&d.RejectionReason, &d.EditRequestReason, &d.CreativeSubmittedAt, &d.CreativeApprovedAt,
		&d.FundsReleasedAt, &d.TimeoutAt, &d.CancelledAt, &d.CreatedAt, &d.UpdatedAt,
		&d.ChannelTitle, &d.ChannelUsername)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

type DealFilter struct {
	ChannelID *uuid.UUID
	UserID    *uuid.UUID // either side of the deal
	State     *string
	DealType  *string
	Limit     int
	Offset    int
}

func (r *DealRepo) ListWithChannel(ctx context.Context, f DealFilter) ([]models.DealWithChannel, error) {
	query := `
		SELECT d.id, d.channel_id, d.advertiser_id, d.owner_id, d.applicant_id, d.campaign_id, d.ad_format_id,
		       d.deal_type, d.is_campaign_application, d.price_ton, d.state, d.payment_status, d.creative_status,
		       d.post_content, d.post_link, d.scheduled_post_time, d.actual_post_time, d.post_verified_at,
		       d.rejection_reason, d.edit_request_reason, d.creative_submitted_at, d.creative_approved_at,
		       d.funds_released_at, d.timeout_at, d.cancelled_at, d.created_at, d.updated_at,
		       c.title, c.username
		FROM deals d
		JOIN channels c ON c.id = d.channel_id
	`
	args := []any{}
	argIdx := 1
	where := []string{}

	if f.ChannelID != nil {
		where = append(where, fmt.Sprintf("d.channel_id = $%d", argIdx))
		args = append(args, *f.ChannelID)
		argIdx++
	}
	if f.UserID != nil {
		where = append(where, fmt.Sprintf("(d.advertiser_id = $%d OR d.owner_id = $%d OR d.applicant_id = $%d)", argIdx, argIdx, argIdx))
		args = append(args, *f.UserID)
		argIdx++
	}
	if f.State != nil {
		where = append(where, fmt.Sprintf("d.state = $%d", argIdx))
		args = append(args, *f.State)
		argIdx++
	}
	if f.DealType != nil {
		where = append(where, fmt.Sprintf("d.deal_type = $%d", argIdx))
		args = append(args, *f.DealType)
		argIdx++
	}

	if len(where) > 0 {
		query += " WHERE "
		for i, w := range where {
			if i > 0 {
				query += " AND "
			}
			query += w
		}
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query += fmt.Sprintf(" ORDER BY d.created_at DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deals []models.DealWithChannel
	for rows.Next() {
		var d models.DealWithChannel
		if err := rows.Scan(&d.ID, &d.ChannelID, &d.AdvertiserID, &d.OwnerID, &d.ApplicantID, &d.CampaignID, &d.AdFormatID,
			&d.DealType, &d.IsCampaignApplication, &d.PriceTON, &d.State, &d.PaymentStatus, &d.CreativeStatus,
			&d.PostContent, &d.PostLink, &d.ScheduledPostTime, &d.ActualPostTime, &d.PostVerifiedAt,
			&d.RejectionReason, &d.EditRequestReason, &d.CreativeSubmittedAt, &d.CreativeApprovedAt,
			&d.FundsReleasedAt, &d.TimeoutAt, &d.CancelledAt, &d.CreatedAt, &d.UpdatedAt,
			&d.ChannelTitle, &d.ChannelUsername); err != nil {
			return nil, err
		}
		deals = append(deals, d)
	}
	return deals, rows.Err()
}

// TransitionState performs the conditional state update that every deal
// mutation goes through. The WHERE clause re-checks the expected current
// state so two concurrent transitions cannot both win; the losing caller
// gets false back and re-reads the row.
func (r *DealRepo) TransitionState(ctx context.Context, id uuid.UUID, fromState, toState string, patch *models.DealPatch) (bool, error) {
	set := []string{"state = $1", "updated_at = now()"}
	args := []any{toState}
	argIdx := 2

	add := func(expr string, val any) {
		set = append(set, fmt.Sprintf(expr, argIdx))
		args = append(args, val)
		argIdx++
	}

	if patch != nil {
		if patch.PaymentStatus != nil {
			add("payment_status = $%d", *patch.PaymentStatus)
		}
		if patch.CreativeStatus != nil {
			add("creative_status = $%d", *patch.CreativeStatus)
		}
		if patch.PostContent != nil {
			add("post_content = $%d", *patch.PostContent)
		}
		if patch.PostLink != nil {
			add("post_link = $%d", *patch.PostLink)
		}
		if patch.ScheduledPostTime != nil {
			add("scheduled_post_time = $%d", *patch.ScheduledPostTime)
		}
		if patch.ActualPostTime != nil {
			add("actual_post_time = $%d", *patch.ActualPostTime)
		}
		if patch.PostVerifiedAt != nil {
			add("post_verified_at = $%d", *patch.PostVerifiedAt)
		}
		if patch.RejectionReason != nil {
			add("rejection_reason = $%d", *patch.RejectionReason)
		}
		if patch.EditRequestReason != nil {
			add("edit_request_reason = $%d", *patch.EditRequestReason)
		}
		// One-shot timestamps keep their first value.
		if patch.CreativeSubmittedAt != nil {
			add("creative_submitted_at = COALESCE(creative_submitted_at, $%d)", *patch.CreativeSubmittedAt)
		}
		if patch.CreativeApprovedAt != nil {
			add("creative_approved_at = COALESCE(creative_approved_at, $%d)", *patch.CreativeApprovedAt)
		}
		if patch.FundsReleasedAt != nil {
			add("funds_released_at = COALESCE(funds_released_at, $%d)", *patch.FundsReleasedAt)
		}
		if patch.CancelledAt != nil {
			add("cancelled_at = COALESCE(cancelled_at, $%d)", *patch.CancelledAt)
		}
		if patch.ClearRejectionReason {
			set = append(set, "rejection_reason = NULL")
		}
		if patch.ClearEditRequestReason {
			set = append(set, "edit_request_reason = NULL")
		}
	}

	query := "UPDATE deals SET "
	for i, s := range set {
		if i > 0 {
			query += ", "
		}
		query += s
	}
	query += fmt.Sprintf(" WHERE id = $%d AND state = $%d", argIdx, argIdx+1)
	args = append(args, id, fromState)

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ---- Scheduler queries ----

// ListScheduledDue returns scheduled deals whose post time has arrived.
func (r *DealRepo) ListScheduledDue(ctx context.Context, now time.Time) ([]models.Deal, error) {
	return r.listDeals(ctx, `
		SELECT `+dealColumns+` FROM deals
		WHERE state = 'scheduled' AND scheduled_post_time IS NOT NULL AND scheduled_post_time <= $1
		ORDER BY scheduled_post_time
	`, now)
}

// ListPublishedBefore returns published deals whose post went up before the
// cutoff and is therefore ready for hold verification.
func (r *DealRepo) ListPublishedBefore(ctx context.Context, cutoff time.Time) ([]models.Deal, error) {
	return r.listDeals(ctx, `
		SELECT `+dealColumns+` FROM deals
		WHERE state = 'published' AND actual_post_time IS NOT NULL AND actual_post_time <= $1
		ORDER BY actual_post_time
	`, cutoff)
}

// ListStaleBefore returns deals stuck in one of the given states with no
// activity since the cutoff.
func (r *DealRepo) ListStaleBefore(ctx context.Context, states []string, cutoff time.Time) ([]models.Deal, error) {
	return r.listDeals(ctx, `
		SELECT `+dealColumns+` FROM deals
		WHERE state = ANY($1) AND updated_at < $2
		ORDER BY updated_at
	`, states, cutoff)
}

func (r *DealRepo) listDeals(ctx context.Context, query string, args ...any) ([]models.Deal, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deals []models.Deal
	for rows.Next() {
		var d models.Deal
		if err := scanDeal(rows, &d); err != nil {
			return nil, err
		}
		deals = append(deals, d)
	}
	return deals, rows.Err()
}
