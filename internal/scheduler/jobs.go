package scheduler

import (
	"context"

	"github.com/ton-deals/backend/internal/config"
	"github.com/ton-deals/backend/internal/services"
)

// RegisterDealJobs wires the three deal maintenance jobs: publishing
// scheduled posts, verifying published posts and releasing escrow, and
// cancelling deals that never got off the ground.
func RegisterDealJobs(r *Registry, svc *services.DealService, cfg *config.Config) {
	r.Add("auto_publish", cfg.AutoPublishInterval, func(ctx context.Context) error {
		return svc.AutoPublishDue(ctx)
	})
	r.Add("post_verification", cfg.PostVerifyInterval, func(ctx context.Context) error {
		return svc.VerifyAndCompleteDue(ctx)
	})
	r.Add("stale_deal_cancel", cfg.StaleCancelInterval, func(ctx context.Context) error {
		return svc.CancelStale(ctx)
	})
}
