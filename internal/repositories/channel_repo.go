package repositories

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ton-deals/backend/internal/models"
)

type ChannelRepo struct {
	pool *pgxpool.Pool
}

func NewChannelRepo(pool *pgxpool.Pool) *ChannelRepo {
	return &ChannelRepo{pool: pool}
}

func (r *ChannelRepo) Create(ctx context.Context, ch *models.Channel) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO channels (telegram_channel_id, username, title, owner_id, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`, ch.TelegramChannelID, ch.Username, ch.Title, ch.OwnerID, ch.Status).Scan(&ch.ID, &ch.CreatedAt, &ch.UpdatedAt)
}

func (r *ChannelRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Channel, error) {
	var ch models.Channel
	err := r.pool.QueryRow(ctx, `
		SELECT id, telegram_channel_id, username, title, owner_id, status, created_at, updated_at
		FROM channels WHERE id = $1
	`, id).Scan(&ch.ID, &ch.TelegramChannelID, &ch.Username, &ch.Title, &ch.OwnerID, &ch.Status, &ch.CreatedAt, &ch.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

func (r *ChannelRepo) GetByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Channel, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, telegram_channel_id, username, title, owner_id, status, created_at, updated_at
		FROM channels WHERE owner_id = $1 ORDER BY created_at DESC
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var channels []models.Channel
	for rows.Next() {
		var ch models.Channel
		if err := rows.Scan(&ch.ID, &ch.TelegramChannelID, &ch.Username, &ch.Title, &ch.OwnerID, &ch.Status, &ch.CreatedAt, &ch.UpdatedAt); err != nil {
			return nil, err
		}
		channels = append(channels, ch)
	}
	return channels, rows.Err()
}

func (r *ChannelRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := r.pool.Exec(ctx, `UPDATE channels SET status = $1, updated_at = now() WHERE id = $2`, status, id)
	return err
}

// ---- Ad formats ----

func (r *ChannelRepo) GetAdFormat(ctx context.Context, id uuid.UUID) (*models.AdFormat, error) {
	var f models.AdFormat
	err := r.pool.QueryRow(ctx, `
		SELECT id, channel_id, name, price_ton, description, created_at
		FROM ad_formats WHERE id = $1
	`, id).Scan(&f.ID, &f.ChannelID, &f.Name, &f.PriceTON, &f.Description, &f.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *ChannelRepo) ListAdFormats(ctx context.Context, channelID uuid.UUID) ([]models.AdFormat, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, channel_id, name, price_ton, description, created_at
		FROM ad_formats WHERE channel_id = $1 ORDER BY created_at
	`, channelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var formats []models.AdFormat
	for rows.Next() {
		var f models.AdFormat
		if err := rows.Scan(&f.ID, &f.ChannelID, &f.Name, &f.PriceTON, &f.Description, &f.CreatedAt); err != nil {
			return nil, err
		}
		formats = append(formats, f)
	}
	return formats, rows.Err()
}

// NormalizeUsername strips the @ / t.me prefixes users paste in.
func NormalizeUsername(u string) string {
	u = strings.TrimPrefix(u, "@")
	u = strings.TrimPrefix(u, "https://t.me/")
	u = strings.TrimPrefix(u, "http://t.me/")
	return strings.ToLower(strings.TrimSpace(u))
}
