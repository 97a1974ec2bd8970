package dto

type AuthTelegramRequest struct {
	InitData string `json:"init_data"`
}

type CreateDealRequest struct {
	ChannelID   string  `json:"channel_id"`
	AdFormatID  *string `json:"ad_format_id,omitempty"`
	PriceTON    string  `json:"price_ton,omitempty"` // если пусто — берём из формата
	PostContent *string `json:"post_content,omitempty"`
}

type RejectDealRequest struct {
	Reason string `json:"reason"`
}

type CancelDealRequest struct {
	Reason *string `json:"reason,omitempty"`
}

type SubmitDraftRequest struct {
	Content           string `json:"content"`
	ScheduledPostTime string `json:"scheduled_post_time,omitempty"`
}

type ReviewDraftRequest struct {
	Approve bool    `json:"approve"`
	Reason  *string `json:"reason,omitempty"`
}

type MarkPostedRequest struct {
	PostLink *string `json:"post_link,omitempty"`
}
