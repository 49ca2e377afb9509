// Package shiftapi pulls recent codes from a community code API that
// authenticates with a client-credentials token exchange.
package shiftapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"hobbyhub-backend/lib/telemetry"
	"hobbyhub-backend/services/shiftkeys"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("services/shiftkeys/sources/shiftapi")

type Source struct {
	name         string
	tokenUrl     string
	codesUrl     string
	clientId     string
	clientSecret string
	http         *resty.Client

	mu             sync.Mutex
	token          string
	tokenExpiresAt time.Time
}

type Options struct {
	Name         string
	TokenUrl     string
	CodesUrl     string
	ClientId     string
	ClientSecret string
}

func NewSource(opts Options) *Source {
	client := resty.New()
	client.SetTimeout(time.Second * 30)

	telemetry.InstrumentResty(client, "sources/shiftapi/http")

	return &Source{
		name:         opts.Name,
		tokenUrl:     opts.TokenUrl,
		codesUrl:     opts.CodesUrl,
		clientId:     opts.ClientId,
		clientSecret: opts.ClientSecret,
		http:         client,
	}
}

func (s *Source) Name() string {
	return s.name
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// bearerToken returns the cached access token, exchanging client
// credentials for a new one when the cached token is within a minute
// of expiring.
func (s *Source) bearerToken(ctx context.Context) (string, error) {
	ctx, span := tracer.Start(ctx, "bearerToken")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && time.Now().Before(s.tokenExpiresAt.Add(-time.Minute)) {
		span.SetStatus(codes.Ok, "TOKEN CACHE HIT")
		return s.token, nil
	}

	form := url.Values{}
	form.Add("grant_type", "client_credentials")
	form.Add("client_id", s.clientId)
	form.Add("client_secret", s.clientSecret)

	res, err := s.http.R().
		SetContext(ctx).
		SetBody(form.Encode()).
		SetHeader("content-type", "application/x-www-form-urlencoded").
		Post(s.tokenUrl)
	if err != nil {
		span.SetStatus(codes.Error, "failed to exchange client credentials")
		return "", err
	}

	var token tokenResponse
	err = json.Unmarshal(res.Body(), &token)
	if err != nil {
		span.SetStatus(codes.Error, "failed to unmarshal token response")
		return "", err
	}
	if token.AccessToken == "" {
		err := fmt.Errorf("shiftapi: token exchange returned no access token")
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	s.token = token.AccessToken
	s.tokenExpiresAt = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	return s.token, nil
}

type apiCode struct {
	Code       string    `json:"code"`
	ArchivedAt time.Time `json:"archived_at"`
}

type codesResponse struct {
	Codes []apiCode `json:"codes"`
}

func (s *Source) GetKeys(ctx context.Context, since time.Time) ([]shiftkeys.KeyCandidate, error) {
	ctx, span := tracer.Start(ctx, "GetKeys")
	defer span.End()
	span.SetAttributes(attribute.String("source", s.name))

	token, err := s.bearerToken(ctx)
	if err != nil {
		return nil, err
	}

	res, err := s.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetQueryParam("since", since.UTC().Format(time.RFC3339)).
		Get(s.codesUrl)
	if err != nil {
		span.SetStatus(codes.Error, "failed to fetch codes")
		return nil, err
	}

	var body codesResponse
	err = json.Unmarshal(res.Body(), &body)
	if err != nil {
		span.SetStatus(codes.Error, "failed to unmarshal codes response")
		return nil, err
	}

	var candidates []shiftkeys.KeyCandidate
	for _, code := range body.Codes {
		if code.ArchivedAt.Before(since) {
			continue
		}
		candidates = append(candidates, shiftkeys.KeyCandidate{
			Code:       code.Code,
			SourceName: s.name,
			FoundAt:    code.ArchivedAt.UTC(),
		})
	}

	span.SetAttributes(attribute.Int("candidate_count", len(candidates)))
	return candidates, nil
}
