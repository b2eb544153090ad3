package ewus

import (
	"bytes"
	"context"
	"io/ioutil"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/patrickmn/go-cache"
)

const defaultTimeoutSeconds = 10

// App represents the eWUŚ client application. An instance holds at most one
// operator session; the surrounding application is expected to use one
// instance per in-flight request, restoring a saved session snapshot into a
// fresh instance. State-mutating operations must not be invoked concurrently
// on the same instance.
type App struct {
	Endpoint       Endpoint
	EndpointURL    string       // override base URL for the specified endpoint
	Cache          *cache.Cache // may be nil if not caching eligibility results
	Fake           bool         // use the deterministic simulation engine instead of the network
	TimeoutSeconds int          // bound on every outbound call; defaults to 10
	HTTPClient     *http.Client // defaults to http.DefaultClient

	fake    *Fake
	session *Session
}

// New creates a client for the given endpoint
func New(endpoint Endpoint) *App {
	return &App{Endpoint: endpoint}
}

func (app *App) httpClient() *http.Client {
	if app.HTTPClient != nil {
		return app.HTTPClient
	}
	return http.DefaultClient
}

func (app *App) timeout() time.Duration {
	seconds := app.TimeoutSeconds
	if seconds <= 0 {
		seconds = defaultTimeoutSeconds
	}
	return time.Duration(seconds) * time.Second
}

func (app *App) baseURL() string {
	if app.EndpointURL != "" {
		return app.EndpointURL
	}
	return app.Endpoint.BaseURL()
}

func (app *App) authURL() string {
	return app.baseURL() + authServicePath
}

func (app *App) brokerURL() string {
	return app.baseURL() + brokerServicePath
}

func (app *App) fakeEngine() *Fake {
	if app.fake == nil {
		app.fake = NewFake()
	}
	return app.fake
}

// Login authenticates the operator and establishes a new session, replacing
// any previous session unconditionally. Required-field validation happens
// before any network I/O.
func (app *App) Login(ctx context.Context, c Credentials) (*LoginOutcome, error) {
	if _, err := loginItems(c); err != nil {
		return nil, err
	}
	if app.Fake {
		session, status, err := app.fakeEngine().Login(c, time.Now())
		if err != nil {
			return nil, err
		}
		app.session = session
		return &LoginOutcome{Session: session, Status: status}, nil
	}
	data, err := NewLoginRequest(c)
	if err != nil {
		return nil, err
	}
	body, err := app.post(ctx, app.authURL(), soapActionLogin, data)
	if err != nil {
		return nil, err
	}
	session, status, err := parseLoginResponse(body, c.Domain, time.Now())
	if err != nil {
		return nil, err
	}
	app.session = session
	log.Printf("ewus: operator %s logged in to domain %s, session expires %s",
		session.OperatorID, session.Domain, session.ExpiresAt.Format(time.RFC3339))
	return &LoginOutcome{Session: session, Status: status}, nil
}

// CheckEligibility queries the insurance status of the patient with the
// given PESEL number. Requires an active session.
func (app *App) CheckEligibility(ctx context.Context, pesel string) (*EligibilityResult, error) {
	if !app.IsLoggedIn() {
		return nil, newError(KindSession, "no active session, log in first")
	}
	if !ValidatePESEL(pesel) {
		return nil, newError(KindMissingInput, "invalid PESEL number: %s", pesel)
	}
	start := time.Now()
	key := app.session.Domain + "/" + pesel
	if result, found := app.getCache(key); found {
		log.Printf("ewus: serving eligibility check for %s from cache in %s", pesel, time.Since(start))
		return result, nil
	}
	if app.Fake {
		result, err := app.fakeEngine().CheckEligibility(app.session, pesel, time.Now())
		if err != nil {
			return nil, err
		}
		app.setCache(key, result)
		return result, nil
	}
	data, err := NewCheckRequest(app.session, pesel, time.Now())
	if err != nil {
		return nil, err
	}
	body, err := app.post(ctx, app.brokerURL(), soapActionExecute, data)
	if err != nil {
		return nil, err
	}
	result, err := parseCheckResponse(body, time.Now())
	if err != nil {
		return nil, err
	}
	log.Printf("ewus: eligibility check %s for %s: %s in %s",
		result.OperationID, pesel, result.Patient.InsuranceState, time.Since(start))
	app.setCache(key, result)
	return result, nil
}

// ChangePassword changes the operator's password. It does not require an
// active session: the credentials themselves authenticate the request.
func (app *App) ChangePassword(ctx context.Context, c Credentials, oldPassword string, newPassword string) (bool, error) {
	if _, err := loginItems(c); err != nil {
		return false, err
	}
	if app.Fake {
		if err := app.fakeEngine().ChangePassword(c, oldPassword, newPassword); err != nil {
			return false, err
		}
		return true, nil
	}
	data, err := NewChangePasswordRequest(c, oldPassword, newPassword)
	if err != nil {
		return false, err
	}
	body, err := app.post(ctx, app.authURL(), soapActionChangePassword, data)
	if err != nil {
		return false, err
	}
	if err := ParseFault(body); err != nil {
		return false, err
	}
	log.Printf("ewus: password changed for operator %s in domain %s", c.Login, c.Domain)
	return true, nil
}

// Logout ends the current session. It is best-effort and never fails the
// caller: local session state is cleared regardless of transport outcome, so
// the caller can always start over. Returns false when the server could not
// confirm the logout.
func (app *App) Logout(ctx context.Context) bool {
	session := app.session
	app.session = nil
	if session == nil || app.Fake {
		return true
	}
	data, err := NewLogoutRequest(session)
	if err != nil {
		log.Printf("ewus: could not build logout request: %s", err)
		return false
	}
	body, err := app.post(ctx, app.authURL(), soapActionLogout, data)
	if err != nil {
		log.Printf("ewus: logout failed, session cleared locally: %s", err)
		return false
	}
	if err := ParseFault(body); err != nil {
		log.Printf("ewus: logout rejected, session cleared locally: %s", err)
		return false
	}
	return true
}

// IsLoggedIn reports whether there is an active session. Detecting an
// expired session clears it as a side effect.
func (app *App) IsLoggedIn() bool {
	if app.session == nil {
		return false
	}
	if app.session.Expired(time.Now()) {
		log.Printf("ewus: session %s expired, clearing", app.session.ID)
		app.session = nil
		return false
	}
	return true
}

// Session returns the active session, or nil when there is none
func (app *App) Session() *Session {
	if !app.IsLoggedIn() {
		return nil
	}
	return app.session
}

// SaveSession serialises the active session into the flat record handed to
// the surrounding application's session store. Returns nil when there is no
// active session.
func (app *App) SaveSession() map[string]string {
	if !app.IsLoggedIn() {
		return nil
	}
	return app.session.Save()
}

// RestoreSession rebuilds the session from a saved record, discarding it
// when expired or malformed
func (app *App) RestoreSession(record map[string]string) bool {
	session, ok := restoreSession(record, time.Now())
	app.session = session
	return ok
}

func (app *App) getCache(key string) (*EligibilityResult, bool) {
	if app.Cache == nil {
		return nil, false
	}
	if o, found := app.Cache.Get(key); found {
		return o.(*EligibilityResult), true
	}
	return nil, false
}

func (app *App) setCache(key string, value *EligibilityResult) {
	if app.Cache == nil {
		return
	}
	app.Cache.Set(key, value, cache.DefaultExpiration)
}

// post sends a SOAP request and returns the response body. All calls share
// one bounded timeout; transport failures surface as service errors, and a
// 500 response is inspected for a fault block before being reported.
func (app *App) post(ctx context.Context, endpointURL string, soapAction string, data []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, app.timeout())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, "POST", endpointURL, bytes.NewReader(data))
	if err != nil {
		return nil, newError(KindUnknown, "could not build request: %s", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", soapAction)
	resp, err := app.httpClient().Do(req)
	if err != nil {
		if urlError, ok := err.(*url.Error); ok && urlError.Timeout() {
			return nil, newError(KindService, "eWUŚ did not respond within deadline (%d sec)", int(app.timeout().Seconds()))
		}
		return nil, newError(KindService, "could not reach eWUŚ: %s", err)
	}
	defer resp.Body.Close()
	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, newError(KindService, "could not read response: %s", err)
	}
	if resp.StatusCode != http.StatusOK {
		// faults are reported with a 500 status; anything else is unexpected
		if resp.StatusCode == http.StatusInternalServerError {
			if err := ParseFault(body); err != nil {
				return nil, err
			}
		}
		return nil, newError(KindUnknown, "unexpected HTTP status %d from eWUŚ", resp.StatusCode)
	}
	return body, nil
}
