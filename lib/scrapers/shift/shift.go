package shift

import (
	"bytes"
	"context"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"hobbyhub-backend/lib/htmlutil"
	"hobbyhub-backend/lib/restyutil"
	"hobbyhub-backend/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapers/shift")

const (
	homePath        = "/home"
	sessionsPath    = "/sessions"
	rewardsPath     = "/rewards"
	offersPath      = "/entitlement_offer_codes"
	redemptionsPath = "/code_redemptions"
)

// hidden fields carried by every redemption form on the offer page
const (
	fieldService = "archway_code_redemption[service]"
	fieldTitle   = "archway_code_redemption[title]"
	fieldCode    = "archway_code_redemption[code]"
)

// RedemptionOption is one redemption form discovered on the
// code-specific entitlement-offer page.
type RedemptionOption struct {
	Service     string
	Title       string
	DisplayName string
	FormBody    url.Values
}

// Client owns one authenticated conversation with the rewards site.
// It is never shared across accounts, a fresh one is created per
// redemption attempt so cookies cannot bleed between accounts.
type Client struct {
	BaseUrl *url.URL
	Http    *resty.Client
}

type ClientOptions struct {
	BaseUrl string
	// when non-empty, every http exchange is dumped into this
	// directory for debugging
	DebugDir string
}

func NewClient(opts ClientOptions) (*Client, error) {
	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, err
	}

	client := resty.New()
	client.SetBaseURL(opts.BaseUrl)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseUrl.Hostname()))
	client.SetTimeout(time.Second * 30)

	telemetry.InstrumentResty(client, "scrapers/shift/http")
	if opts.DebugDir != "" {
		restyutil.InstrumentClient(client, restyutil.NewFilesystemOutput(opts.DebugDir))
	}

	return &Client{
		BaseUrl: baseUrl,
		Http:    client,
	}, nil
}

// HomeToken fetches the home page and extracts the anti-forgery token
// embedded in its metadata.
func (c *Client) HomeToken(ctx context.Context) (string, error) {
	ctx, span := tracer.Start(ctx, "client:HomeToken")
	defer span.End()

	res, err := c.Http.R().
		SetContext(ctx).
		Get(homePath)
	if err != nil {
		span.SetStatus(codes.Error, "failed to fetch home page")
		return "", &RequestError{Step: "get " + homePath, Err: err}
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		span.SetStatus(codes.Error, "failed to parse home page html")
		return "", err
	}

	token := htmlutil.MetaContent(doc, "csrf-token")
	if token == "" {
		err := &CsrfNotFoundError{Page: homePath}
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return token, nil
}

// Login submits the session-creation form, establishing the
// authenticated cookie state carried by subsequent calls.
func (c *Client) Login(ctx context.Context, email, password, homeToken string) error {
	ctx, span := tracer.Start(ctx, "client:Login")
	defer span.End()

	_, err := c.Http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"authenticity_token": homeToken,
			"user[email]":        email,
			"user[password]":     password,
		}).
		SetHeader("referer", c.BaseUrl.JoinPath(homePath).String()).
		Post(sessionsPath)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to submit login form")
		return &RequestError{Step: "post " + sessionsPath, Err: err}
	}
	return nil
}

// RewardsToken fetches the rewards page and extracts the freshly
// issued anti-forgery token from it. When the site has dropped the
// session and bounces the request back to the login page, it logs in
// again with the given credentials and retries the fetch once.
func (c *Client) RewardsToken(ctx context.Context, homeToken, email, password string) (string, error) {
	ctx, span := tracer.Start(ctx, "client:RewardsToken")
	defer span.End()

	res, err := c.Http.R().
		SetContext(ctx).
		Get(rewardsPath)
	if err != nil {
		span.SetStatus(codes.Error, "failed to fetch rewards page")
		return "", &RequestError{Step: "get " + rewardsPath, Err: err}
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		span.SetStatus(codes.Error, "failed to parse rewards page html")
		return "", err
	}

	if bouncedToLogin(res, doc) {
		span.AddEvent("session expired, re-authenticating")

		freshToken, err := c.HomeToken(ctx)
		if err != nil {
			return "", err
		}
		err = c.Login(ctx, email, password, freshToken)
		if err != nil {
			return "", err
		}

		res, err = c.Http.R().
			SetContext(ctx).
			Get(rewardsPath)
		if err != nil {
			span.SetStatus(codes.Error, "failed to refetch rewards page")
			return "", &RequestError{Step: "get " + rewardsPath, Err: err}
		}
		doc, err = goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
		if err != nil {
			span.SetStatus(codes.Error, "failed to parse rewards page html")
			return "", err
		}
	}

	token := htmlutil.MetaContent(doc, "csrf-token")
	if token == "" {
		err := &CsrfNotFoundError{Page: rewardsPath}
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return token, nil
}

func bouncedToLogin(res *resty.Response, doc *goquery.Document) bool {
	if res.RawResponse != nil && res.RawResponse.Request != nil &&
		res.RawResponse.Request.URL.Path == homePath {
		return true
	}
	return doc.Find("form input[name='user[email]']").Length() > 0
}

// RedemptionOptions fetches the entitlement-offer page for the code
// and returns every redemption form matching the requested service,
// in document order, with its submission body prepared.
func (c *Client) RedemptionOptions(ctx context.Context, code, rewardsToken, service string) ([]RedemptionOption, error) {
	ctx, span := tracer.Start(ctx, "client:RedemptionOptions")
	defer span.End()
	span.SetAttributes(attribute.String("service", service))

	res, err := c.Http.R().
		SetContext(ctx).
		SetQueryParam("code", code).
		Get(offersPath)
	if err != nil {
		span.SetStatus(codes.Error, "failed to fetch offer page")
		return nil, &RequestError{Step: "get " + offersPath, Err: err}
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		span.SetStatus(codes.Error, "failed to parse offer page html")
		return nil, err
	}

	var options []RedemptionOption
	doc.Find("form").Each(func(_ int, form *goquery.Selection) {
		formService := htmlutil.HiddenInput(form, fieldService)
		if !strings.EqualFold(formService, service) {
			return
		}
		title := htmlutil.HiddenInput(form, fieldTitle)
		formCode := htmlutil.HiddenInput(form, fieldCode)

		body := url.Values{}
		body.Set("authenticity_token", rewardsToken)
		body.Set(fieldCode, formCode)
		body.Set(fieldService, formService)
		body.Set(fieldTitle, title)
		// rails marker field, the site rejects bodies without it
		body.Set("utf8", "✓")

		options = append(options, RedemptionOption{
			Service:     formService,
			Title:       title,
			DisplayName: htmlutil.SubmitLabel(form),
			FormBody:    body,
		})
	})

	if len(options) == 0 {
		err := &NoMatchingFormError{Service: service}
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("option_count", len(options)))
	return options, nil
}

// Redeem submits one prepared redemption form. The site returns no
// structured success payload at this layer, so a completed submission
// counts as success and only transport failures surface as errors.
func (c *Client) Redeem(ctx context.Context, option RedemptionOption) error {
	ctx, span := tracer.Start(ctx, "client:Redeem")
	defer span.End()
	span.SetAttributes(
		attribute.String("service", option.Service),
		attribute.String("title", option.Title),
	)

	_, err := c.Http.R().
		SetContext(ctx).
		SetHeader("content-type", "application/x-www-form-urlencoded").
		SetBody(option.FormBody.Encode()).
		Post(redemptionsPath)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to submit redemption form")
		return &RequestError{Step: "post " + redemptionsPath, Err: err}
	}
	return nil
}

// Close releases the session's private cookie and connection state.
func (c *Client) Close() {
	c.Http.SetCookieJar(nil)
	c.Http.GetClient().CloseIdleConnections()
}
