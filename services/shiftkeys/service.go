package shiftkeys

import (
	"context"
	"time"

	"hobbyhub-backend/lib/scrapers/shift"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("services/shiftkeys")

// KeySource is a pluggable provider of candidate codes. How a source
// acquires them (text mining, an external API, ...) is its own
// business, the sweep only depends on this contract.
type KeySource interface {
	Name() string
	GetKeys(ctx context.Context, since time.Time) ([]KeyCandidate, error)
}

// AccountStore supplies decrypted account credentials on demand.
type AccountStore interface {
	GetAccountsForUse(ctx context.Context) ([]Account, error)
}

// Session is one authenticated conversation with the rewards site.
// Implemented by *shift.Client; faked in tests.
type Session interface {
	HomeToken(ctx context.Context) (string, error)
	Login(ctx context.Context, email, password, homeToken string) error
	RewardsToken(ctx context.Context, homeToken, email, password string) (string, error)
	RedemptionOptions(ctx context.Context, code, rewardsToken, service string) ([]shift.RedemptionOption, error)
	Redeem(ctx context.Context, option shift.RedemptionOption) error
	Close()
}

// SessionFactory creates one fresh session. A new one is opened per
// account per code so cookie state is never shared.
type SessionFactory func(ctx context.Context) (Session, error)

type Service struct {
	accounts   AccountStore
	sources    []KeySource
	newSession SessionFactory
}

func NewService(accounts AccountStore, sources []KeySource, newSession SessionFactory) Service {
	return Service{
		accounts:   accounts,
		sources:    sources,
		newSession: newSession,
	}
}
