package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ton-deals/backend/internal/models"
)

type CampaignRepo struct {
	pool *pgxpool.Pool
}

func NewCampaignRepo(pool *pgxpool.Pool) *CampaignRepo {
	return &CampaignRepo{pool: pool}
}

func (r *CampaignRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	var c models.Campaign
	err := r.pool.QueryRow(ctx, `
		SELECT id, advertiser_id, title, budget_ton, status, created_at, updated_at
		FROM campaigns WHERE id = $1
	`, id).Scan(&c.ID, &c.AdvertiserID, &c.Title, &c.BudgetTON, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CampaignRepo) GetApplicationByID(ctx context.Context, id uuid.UUID) (*models.CampaignApplication, error) {
	var a models.CampaignApplication
	err := r.pool.QueryRow(ctx, `
		SELECT id, campaign_id, channel_id, applicant_id, proposed_price_ton, status, created_at
		FROM campaign_applications WHERE id = $1
	`, id).Scan(&a.ID, &a.CampaignID, &a.ChannelID, &a.ApplicantID, &a.ProposedPriceTON, &a.Status, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *CampaignRepo) UpdateApplicationStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE campaign_applications SET status = $1 WHERE id = $2
	`, status, id)
	return err
}
