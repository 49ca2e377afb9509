package shiftkeys

import "time"

// ErrorCode classifies a failed redemption attempt. Every failure an
// account attempt can hit maps into exactly one of these.
type ErrorCode string

const (
	ErrorAccountMisconfigured ErrorCode = "AccountMisconfigured"
	ErrorCsrfMissing          ErrorCode = "CsrfMissing"
	ErrorNoRedemptionOptions  ErrorCode = "NoRedemptionOptions"
	ErrorNetworkError         ErrorCode = "NetworkError"
	ErrorUnknown              ErrorCode = "Unknown"
)

// KeyCandidate is one code reported by a key source, with provenance.
type KeyCandidate struct {
	Code       string
	SourceName string
	FoundAt    time.Time
}

// Account holds decrypted credentials for one rewards-site account.
// Instances live only for the duration of one redemption call.
type Account struct {
	Id       int64  `json:"id"`
	Email    string `json:"email"`
	Password string `json:"-"`
	Service  string `json:"service"`
}

// RedeemResult is the outcome of one (code, account) attempt.
// ErrorCode is set if and only if Success is false.
type RedeemResult struct {
	AccountId int64     `json:"account_id"`
	Email     string    `json:"email"`
	Service   string    `json:"service"`
	Success   bool      `json:"success"`
	ErrorCode ErrorCode `json:"error_code,omitempty"`
	Message   string    `json:"message,omitempty"`
}

// SweepItem is one unique code discovered in a sweep, with every
// source that reported it and the redemption outcome per account.
type SweepItem struct {
	Code    string         `json:"code"`
	Sources []string       `json:"sources"`
	Results []RedeemResult `json:"results"`
}

type SweepSummary struct {
	TotalKeys               int `json:"total_keys"`
	TotalRedemptionAttempts int `json:"total_redemption_attempts"`
	TotalSucceeded          int `json:"total_succeeded"`
	TotalFailed             int `json:"total_failed"`
}

type SweepResult struct {
	Since     time.Time    `json:"since_utc"`
	ScannedAt time.Time    `json:"scanned_at_utc"`
	Summary   SweepSummary `json:"summary"`
	Items     []SweepItem  `json:"items"`
}
