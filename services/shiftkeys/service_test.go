package shiftkeys

import (
	"context"
	"errors"
	"time"

	"hobbyhub-backend/lib/scrapers/shift"
)

// fakeSource returns a scripted candidate list, or fails outright.
type fakeSource struct {
	name string
	keys []KeyCandidate
	err  error
}

func (s fakeSource) Name() string { return s.name }

func (s fakeSource) GetKeys(ctx context.Context, since time.Time) ([]KeyCandidate, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.keys, nil
}

type fakeStore struct {
	accounts []Account
	calls    int
}

func (s *fakeStore) GetAccountsForUse(ctx context.Context) ([]Account, error) {
	s.calls++
	return s.accounts, nil
}

// fakeSession drives the workflow without a network, failing at
// whichever step its fields say to.
type fakeSession struct {
	homeTokenErr    error
	loginErr        error
	rewardsTokenErr error
	optionsErr      error
	options         []shift.RedemptionOption
	redeemErrs      []error

	steps       []string
	redeemCalls int
	closed      bool
}

func (s *fakeSession) HomeToken(ctx context.Context) (string, error) {
	s.steps = append(s.steps, "home-token")
	if s.homeTokenErr != nil {
		return "", s.homeTokenErr
	}
	return "home-token", nil
}

func (s *fakeSession) Login(ctx context.Context, email, password, homeToken string) error {
	s.steps = append(s.steps, "login")
	return s.loginErr
}

func (s *fakeSession) RewardsToken(ctx context.Context, homeToken, email, password string) (string, error) {
	s.steps = append(s.steps, "rewards-token")
	if s.rewardsTokenErr != nil {
		return "", s.rewardsTokenErr
	}
	return "rewards-token", nil
}

func (s *fakeSession) RedemptionOptions(ctx context.Context, code, rewardsToken, service string) ([]shift.RedemptionOption, error) {
	s.steps = append(s.steps, "options")
	if s.optionsErr != nil {
		return nil, s.optionsErr
	}
	if len(s.options) > 0 {
		return s.options, nil
	}
	return []shift.RedemptionOption{{Service: service, Title: "Borderlands 3"}}, nil
}

func (s *fakeSession) Redeem(ctx context.Context, option shift.RedemptionOption) error {
	s.steps = append(s.steps, "redeem")
	call := s.redeemCalls
	s.redeemCalls++
	if call < len(s.redeemErrs) {
		return s.redeemErrs[call]
	}
	return nil
}

func (s *fakeSession) Close() { s.closed = true }

// sessionRecorder hands out one fake session per factory call so
// tests can assert on every session that got opened.
type sessionRecorder struct {
	build    func() *fakeSession
	sessions []*fakeSession
	err      error
}

func (r *sessionRecorder) factory(ctx context.Context) (Session, error) {
	if r.err != nil {
		return nil, r.err
	}
	session := r.build()
	r.sessions = append(r.sessions, session)
	return session, nil
}

func newRecorder(build func() *fakeSession) *sessionRecorder {
	if build == nil {
		build = func() *fakeSession { return &fakeSession{} }
	}
	return &sessionRecorder{build: build}
}

var errFakeNetwork = &shift.RequestError{Step: "get /home", Err: errors.New("connection refused")}
