package shift

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"hobbyhub-backend/lib/telemetry"

	"github.com/stretchr/testify/require"
)

// fakeRewardsSite mimics the handful of pages the session touches.
type fakeRewardsSite struct {
	mux *http.ServeMux

	loggedIn    map[string]bool
	logins      []url.Values
	redemptions []url.Values

	// when true, /rewards bounces to /home unless the session
	// cookie from a login is present
	requireLogin bool
	// when true, pages render without the csrf meta tag
	omitCsrf bool
	// html body of the entitlement-offer page
	offerPage string
}

const sessionCookie = "archway_session"

func newFakeRewardsSite() *fakeRewardsSite {
	s := &fakeRewardsSite{
		mux:      http.NewServeMux(),
		loggedIn: map[string]bool{},
	}

	s.mux.HandleFunc("GET /home", func(w http.ResponseWriter, r *http.Request) {
		s.renderPage(w, "home-token-1", "<h1>SHiFT</h1>")
	})
	s.mux.HandleFunc("POST /sessions", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		s.logins = append(s.logins, r.PostForm)
		http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "granted"})
		http.Redirect(w, r, "/account", http.StatusFound)
	})
	s.mux.HandleFunc("GET /account", func(w http.ResponseWriter, r *http.Request) {
		s.renderPage(w, "account-token-1", "<p>account</p>")
	})
	s.mux.HandleFunc("GET /rewards", func(w http.ResponseWriter, r *http.Request) {
		if s.requireLogin {
			cookie, err := r.Cookie(sessionCookie)
			if err != nil || cookie.Value != "granted" {
				http.Redirect(w, r, "/home", http.StatusFound)
				return
			}
		}
		s.renderPage(w, "rewards-token-1", "<p>rewards</p>")
	})
	s.mux.HandleFunc("GET /entitlement_offer_codes", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "<html><body>%s</body></html>", s.offerPage)
	})
	s.mux.HandleFunc("POST /code_redemptions", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		s.redemptions = append(s.redemptions, r.PostForm)
		w.WriteHeader(http.StatusOK)
	})

	return s
}

func (s *fakeRewardsSite) renderPage(w http.ResponseWriter, token, body string) {
	meta := ""
	if !s.omitCsrf {
		meta = fmt.Sprintf(`<meta name="csrf-token" content=%q />`, token)
	}
	fmt.Fprintf(w, "<html><head>%s</head><body>%s</body></html>", meta, body)
}

func offerForm(service, title, code, label string) string {
	return fmt.Sprintf(`
		<form action="/code_redemptions" method="post">
			<input type="hidden" name="archway_code_redemption[service]" value=%q />
			<input type="hidden" name="archway_code_redemption[title]" value=%q />
			<input type="hidden" name="archway_code_redemption[code]" value=%q />
			<input type="submit" value=%q />
		</form>`, service, title, code, label)
}

func setup(t *testing.T) (*fakeRewardsSite, *Client) {
	cleanup := telemetry.SetupForTesting(t, "test:scrapers/shift")
	t.Cleanup(cleanup)

	site := newFakeRewardsSite()
	server := httptest.NewServer(site.mux)
	t.Cleanup(server.Close)

	client, err := NewClient(ClientOptions{BaseUrl: server.URL})
	require.NoError(t, err)
	t.Cleanup(client.Close)

	return site, client
}

func TestHomeToken(t *testing.T) {
	_, client := setup(t)

	token, err := client.HomeToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, "home-token-1", token)
}

func TestHomeTokenMissing(t *testing.T) {
	site, client := setup(t)
	site.omitCsrf = true

	_, err := client.HomeToken(context.Background())

	var csrfErr *CsrfNotFoundError
	require.ErrorAs(t, err, &csrfErr)
	require.Equal(t, "/home", csrfErr.Page)
	require.Equal(t, "CSRF token not found on /home.", err.Error())
}

func TestLoginSubmitsCredentialForm(t *testing.T) {
	site, client := setup(t)
	ctx := context.Background()

	token, err := client.HomeToken(ctx)
	require.NoError(t, err)
	err = client.Login(ctx, "gort@example.com", "hunter2", token)
	require.NoError(t, err)

	require.Len(t, site.logins, 1)
	form := site.logins[0]
	require.Equal(t, "home-token-1", form.Get("authenticity_token"))
	require.Equal(t, "gort@example.com", form.Get("user[email]"))
	require.Equal(t, "hunter2", form.Get("user[password]"))
}

func TestRewardsToken(t *testing.T) {
	_, client := setup(t)

	token, err := client.RewardsToken(context.Background(), "home-token-1", "gort@example.com", "hunter2")
	require.NoError(t, err)
	require.Equal(t, "rewards-token-1", token)
}

func TestRewardsTokenReauthenticates(t *testing.T) {
	site, client := setup(t)
	site.requireLogin = true

	// no prior login: the rewards page bounces back to /home and the
	// session must log in before retrying
	token, err := client.RewardsToken(context.Background(), "stale-token", "gort@example.com", "hunter2")
	require.NoError(t, err)
	require.Equal(t, "rewards-token-1", token)
	require.Len(t, site.logins, 1)
}

func TestRewardsTokenMissing(t *testing.T) {
	site, client := setup(t)
	site.omitCsrf = true

	_, err := client.RewardsToken(context.Background(), "home-token-1", "gort@example.com", "hunter2")

	var csrfErr *CsrfNotFoundError
	require.ErrorAs(t, err, &csrfErr)
	require.Equal(t, "/rewards", csrfErr.Page)
}

func TestRedemptionOptions(t *testing.T) {
	site, client := setup(t)
	site.offerPage = offerForm("psn", "Borderlands 3", "ABCDE-ABCDE-ABCDE-ABCDE-ABCDE", "Redeem for PSN") +
		offerForm("steam", "Borderlands 3", "ABCDE-ABCDE-ABCDE-ABCDE-ABCDE", "Redeem for Steam") +
		offerForm("PSN", "Borderlands 2", "ABCDE-ABCDE-ABCDE-ABCDE-ABCDE", "Redeem for PSN (BL2)")

	options, err := client.RedemptionOptions(context.Background(), "ABCDE-ABCDE-ABCDE-ABCDE-ABCDE", "rewards-token-1", "psn")
	require.NoError(t, err)
	require.Len(t, options, 2)

	// matching is case-insensitive and keeps document order
	require.Equal(t, "Borderlands 3", options[0].Title)
	require.Equal(t, "Borderlands 2", options[1].Title)
	require.Equal(t, "Redeem for PSN", options[0].DisplayName)

	body := options[0].FormBody
	require.Equal(t, "rewards-token-1", body.Get("authenticity_token"))
	require.Equal(t, "psn", body.Get("archway_code_redemption[service]"))
	require.Equal(t, "Borderlands 3", body.Get("archway_code_redemption[title]"))
	require.Equal(t, "ABCDE-ABCDE-ABCDE-ABCDE-ABCDE", body.Get("archway_code_redemption[code]"))
	require.Equal(t, "✓", body.Get("utf8"))
}

func TestRedemptionOptionsNoMatch(t *testing.T) {
	site, client := setup(t)
	site.offerPage = offerForm("steam", "Borderlands 3", "ABCDE-ABCDE-ABCDE-ABCDE-ABCDE", "Redeem for Steam")

	_, err := client.RedemptionOptions(context.Background(), "ABCDE-ABCDE-ABCDE-ABCDE-ABCDE", "rewards-token-1", "psn")

	var formErr *NoMatchingFormError
	require.ErrorAs(t, err, &formErr)
	require.Equal(t, "psn", formErr.Service)
	require.Equal(t, "No redemption form found for service 'psn'.", err.Error())
}

func TestRedeemSubmitsPreparedBody(t *testing.T) {
	site, client := setup(t)
	site.offerPage = offerForm("psn", "Borderlands 3", "ABCDE-ABCDE-ABCDE-ABCDE-ABCDE", "Redeem for PSN")

	options, err := client.RedemptionOptions(context.Background(), "ABCDE-ABCDE-ABCDE-ABCDE-ABCDE", "rewards-token-1", "psn")
	require.NoError(t, err)

	err = client.Redeem(context.Background(), options[0])
	require.NoError(t, err)

	require.Len(t, site.redemptions, 1)
	form := site.redemptions[0]
	require.Equal(t, "rewards-token-1", form.Get("authenticity_token"))
	require.Equal(t, "psn", form.Get("archway_code_redemption[service]"))
	require.Equal(t, "✓", form.Get("utf8"))
}

func TestTransportFailuresAreRequestErrors(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:scrapers/shift")
	t.Cleanup(cleanup)

	server := httptest.NewServer(http.NotFoundHandler())
	client, err := NewClient(ClientOptions{BaseUrl: server.URL})
	require.NoError(t, err)
	t.Cleanup(client.Close)

	// closed server: every step should surface a RequestError
	server.Close()

	_, err = client.HomeToken(context.Background())
	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)

	err = client.Login(context.Background(), "a@b.c", "pw", "token")
	require.ErrorAs(t, err, &reqErr)

	err = client.Redeem(context.Background(), RedemptionOption{FormBody: url.Values{}})
	require.ErrorAs(t, err, &reqErr)
}
