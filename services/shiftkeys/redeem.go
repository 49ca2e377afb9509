package shiftkeys

import (
	"context"
	"errors"
	"strings"

	"hobbyhub-backend/lib/scrapers/shift"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ErrBlankCode is a usage error: the caller passed an empty or
// whitespace-only code. It is raised before any account or network
// access, never captured as a RedeemResult.
var ErrBlankCode = errors.New("redemption code must not be blank")

// Redeem attempts the code against every configured account, one
// fresh session per account, sequentially. Concurrent logins against
// the same external service tend to trip its anti-automation
// defenses, so accounts are deliberately not fanned out.
//
// Every account yields exactly one RedeemResult, failures included.
func (s Service) Redeem(ctx context.Context, code string) ([]RedeemResult, error) {
	ctx, span := tracer.Start(ctx, "Redeem")
	defer span.End()

	if strings.TrimSpace(code) == "" {
		span.SetStatus(codes.Error, ErrBlankCode.Error())
		return nil, ErrBlankCode
	}
	code = strings.TrimSpace(code)
	span.SetAttributes(attribute.String("code", code))

	accounts, err := s.accounts.GetAccountsForUse(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load accounts")
		return nil, err
	}
	if len(accounts) == 0 {
		return []RedeemResult{}, nil
	}

	results := make([]RedeemResult, 0, len(accounts))
	for _, account := range accounts {
		results = append(results, s.redeemForAccount(ctx, code, account))
	}
	return results, nil
}

func (s Service) redeemForAccount(ctx context.Context, code string, account Account) RedeemResult {
	ctx, span := tracer.Start(ctx, "redeemForAccount")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("account_id", account.Id),
		attribute.String("service", account.Service),
	)

	result := RedeemResult{
		AccountId: account.Id,
		Email:     account.Email,
		Service:   account.Service,
	}

	if strings.TrimSpace(account.Email) == "" ||
		strings.TrimSpace(account.Password) == "" ||
		strings.TrimSpace(account.Service) == "" {
		result.ErrorCode = ErrorAccountMisconfigured
		result.Message = "Missing email, password, or service."
		span.SetStatus(codes.Error, result.Message)
		return result
	}

	err := s.runRedemption(ctx, code, account)
	if err != nil {
		result.ErrorCode, result.Message = classify(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, result.Message)
		return result
	}

	result.Success = true
	return result
}

// runRedemption drives one session through the full workflow:
// home token -> login -> rewards token -> option discovery ->
// submission of every matching option.
func (s Service) runRedemption(ctx context.Context, code string, account Account) error {
	session, err := s.newSession(ctx)
	if err != nil {
		return err
	}
	defer session.Close()

	homeToken, err := session.HomeToken(ctx)
	if err != nil {
		return err
	}
	err = session.Login(ctx, account.Email, account.Password, homeToken)
	if err != nil {
		return err
	}
	rewardsToken, err := session.RewardsToken(ctx, homeToken, account.Email, account.Password)
	if err != nil {
		return err
	}
	options, err := session.RedemptionOptions(ctx, code, rewardsToken, account.Service)
	if err != nil {
		return err
	}
	for _, option := range options {
		err := session.Redeem(ctx, option)
		if err != nil {
			return err
		}
	}
	return nil
}

// classify maps a workflow failure onto the closed error taxonomy.
// The session reports typed variants, so no message inspection is
// involved and page-specific wording never leaks into results.
func classify(err error) (ErrorCode, string) {
	var csrf *shift.CsrfNotFoundError
	if errors.As(err, &csrf) {
		return ErrorCsrfMissing, "CSRF token not found."
	}
	var noForm *shift.NoMatchingFormError
	if errors.As(err, &noForm) {
		return ErrorNoRedemptionOptions, "No redemption options for that service."
	}
	var request *shift.RequestError
	if errors.As(err, &request) {
		return ErrorNetworkError, "Network error talking to SHiFT."
	}
	return ErrorUnknown, "Unexpected error during redemption."
}
