// Package codearchive mines SHiFT codes out of community archive
// pages: html listings where each entry carries a <time> element and
// one or more codes somewhere in its text.
package codearchive

import (
	"bytes"
	"context"
	"regexp"
	"strings"
	"time"

	"hobbyhub-backend/lib/telemetry"
	"hobbyhub-backend/services/shiftkeys"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("services/shiftkeys/sources/codearchive")

// SHiFT codes are five dash-separated groups of five characters.
var codePattern = regexp.MustCompile(`\b[A-Z0-9]{5}(?:-[A-Z0-9]{5}){4}\b`)

type Source struct {
	name    string
	pageUrl string
	http    *resty.Client
}

type Options struct {
	Name    string
	PageUrl string
}

func NewSource(opts Options) Source {
	client := resty.New()
	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	client.SetTimeout(time.Second * 30)

	telemetry.InstrumentResty(client, "sources/codearchive/http")

	return Source{
		name:    opts.Name,
		pageUrl: opts.PageUrl,
		http:    client,
	}
}

func (s Source) Name() string {
	return s.name
}

func (s Source) GetKeys(ctx context.Context, since time.Time) ([]shiftkeys.KeyCandidate, error) {
	ctx, span := tracer.Start(ctx, "GetKeys")
	defer span.End()
	span.SetAttributes(attribute.String("source", s.name))

	res, err := s.http.R().
		SetContext(ctx).
		Get(s.pageUrl)
	if err != nil {
		span.SetStatus(codes.Error, "failed to fetch archive page")
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		span.SetStatus(codes.Error, "failed to parse archive page html")
		return nil, err
	}

	var candidates []shiftkeys.KeyCandidate
	doc.Find("time[datetime]").Each(func(_ int, timeEl *goquery.Selection) {
		foundAt, err := time.Parse(time.RFC3339, timeEl.AttrOr("datetime", ""))
		if err != nil {
			// entries without a parseable timestamp can't be
			// filtered by the lookback window, skip them
			return
		}
		if foundAt.Before(since) {
			return
		}

		entry := timeEl.Parent().Text()
		for _, code := range codePattern.FindAllString(strings.ToUpper(entry), -1) {
			candidates = append(candidates, shiftkeys.KeyCandidate{
				Code:       code,
				SourceName: s.name,
				FoundAt:    foundAt.UTC(),
			})
		}
	})

	span.SetAttributes(attribute.Int("candidate_count", len(candidates)))
	return candidates, nil
}
