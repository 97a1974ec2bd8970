package dto

type AuthResponse struct {
	Token string `json:"token"`
	User  any    `json:"user"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

type SuccessResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data,omitempty"`
}

type EscrowStatusResponse struct {
	DealID        string `json:"deal_id"`
	EscrowAddress string `json:"escrow_address"`
	AmountTON     string `json:"amount_ton"`
	PaymentStatus string `json:"payment_status"`
	BalanceTON    string `json:"balance_ton"`
}
