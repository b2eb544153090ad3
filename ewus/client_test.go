package ewus

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/patrickmn/go-cache"
)

func TestLogin(t *testing.T) {
	var gotPath, gotAction, gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAction = r.Header.Get("SOAPAction")
		gotContentType = r.Header.Get("Content-Type")
		w.Write([]byte(loginResponse))
	}))
	defer srv.Close()

	app := New(TestingEndpoint)
	app.EndpointURL = srv.URL
	outcome, err := app.Login(context.Background(), testCredentials())
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if gotPath != "/services/Auth" {
		t.Errorf("got path %q", gotPath)
	}
	if gotAction != "http://xml.kamsoft.pl/ws/auth/Auth/loginRequest" {
		t.Errorf("got SOAPAction %q", gotAction)
	}
	if gotContentType != "text/xml; charset=utf-8" {
		t.Errorf("got content type %q", gotContentType)
	}
	if outcome.Status != LoginPasswordExpiresToday {
		t.Errorf("got status %s", outcome.Status)
	}
	if !app.IsLoggedIn() {
		t.Error("no active session after login")
	}
	if app.Session().OperatorID != "L12345" {
		t.Errorf("got operator %q", app.Session().OperatorID)
	}
}

func TestLoginValidatesBeforeNetwork(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	app := New(TestingEndpoint)
	app.EndpointURL = srv.URL
	_, err := app.Login(context.Background(), Credentials{Domain: "01", Login: "TEST1"})
	if KindOf(err) != KindMissingInput {
		t.Errorf("got kind %s, want %s", KindOf(err), KindMissingInput)
	}
	if called {
		t.Error("request sent despite invalid credentials")
	}
}

func TestLoginFault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(authFaultResponse))
	}))
	defer srv.Close()

	app := New(TestingEndpoint)
	app.EndpointURL = srv.URL
	_, err := app.Login(context.Background(), testCredentials())
	if KindOf(err) != KindAuthentication {
		t.Errorf("got kind %s, want %s", KindOf(err), KindAuthentication)
	}
	if app.IsLoggedIn() {
		t.Error("session established despite a fault")
	}
}

func TestCheckEligibility(t *testing.T) {
	var gotPath, gotAction string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAction = r.Header.Get("SOAPAction")
		w.Write([]byte(checkResponse))
	}))
	defer srv.Close()

	app := New(TestingEndpoint)
	app.EndpointURL = srv.URL
	app.session = &Session{
		ID: "SESS1", AuthToken: "TOK1", Domain: "15",
		LoginTime: time.Now(), ExpiresAt: time.Now().Add(SessionDuration),
	}
	result, err := app.CheckEligibility(context.Background(), "00092497177")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if gotPath != "/services/ServiceBroker" {
		t.Errorf("got path %q", gotPath)
	}
	if gotAction != "executeService" {
		t.Errorf("got SOAPAction %q", gotAction)
	}
	if result.Patient.InsuranceState != InsuranceActive || !result.Valid {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestCheckEligibilityRequiresSession(t *testing.T) {
	app := New(TestingEndpoint)
	_, err := app.CheckEligibility(context.Background(), "00092497177")
	if KindOf(err) != KindSession {
		t.Errorf("got kind %s, want %s", KindOf(err), KindSession)
	}
}

func TestCheckEligibilityValidatesIdentifier(t *testing.T) {
	app := New(TestingEndpoint)
	app.Fake = true
	if _, err := app.Login(context.Background(), testCredentials()); err != nil {
		t.Fatal(err)
	}
	_, err := app.CheckEligibility(context.Background(), "123")
	if KindOf(err) != KindMissingInput {
		t.Errorf("got kind %s, want %s", KindOf(err), KindMissingInput)
	}
}

func TestCheckEligibilityCache(t *testing.T) {
	app := New(TestingEndpoint)
	app.Fake = true
	app.Cache = cache.New(5*time.Minute, 10*time.Minute)
	if _, err := app.Login(context.Background(), testCredentials()); err != nil {
		t.Fatal(err)
	}
	first, err := app.CheckEligibility(context.Background(), FakePESELActive)
	if err != nil {
		t.Fatal(err)
	}
	second, err := app.CheckEligibility(context.Background(), FakePESELActive)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Error("repeat check not served from cache")
	}
}

func TestFakeModeRoundTrip(t *testing.T) {
	app := New(TestingEndpoint)
	app.Fake = true
	outcome, err := app.Login(context.Background(), testCredentials())
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if outcome.Session.OperatorID != "TEST123" {
		t.Errorf("got operator %q", outcome.Session.OperatorID)
	}
	result, err := app.CheckEligibility(context.Background(), FakePESELStale)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if result.Patient.InsuranceState != InsuranceIDStale {
		t.Errorf("got state %s", result.Patient.InsuranceState)
	}
	if !app.Logout(context.Background()) {
		t.Error("fake logout reported failure")
	}
	if app.IsLoggedIn() {
		t.Error("session survived logout")
	}
}

func TestLogoutClearsSessionOnTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse all connections

	app := New(TestingEndpoint)
	app.EndpointURL = srv.URL
	app.session = &Session{
		ID: "SESS1", AuthToken: "TOK1", Domain: "15",
		LoginTime: time.Now(), ExpiresAt: time.Now().Add(SessionDuration),
	}
	if app.Logout(context.Background()) {
		t.Error("logout confirmed despite an unreachable server")
	}
	if app.IsLoggedIn() {
		t.Error("session not cleared after failed logout")
	}
}

func TestChangePassword(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("SOAPAction") != "changePassword" {
			t.Errorf("got SOAPAction %q", r.Header.Get("SOAPAction"))
		}
		w.Write([]byte(`<?xml version="1.0"?>
<env:Envelope xmlns:env="http://schemas.xmlsoap.org/soap/envelope/">
   <env:Body>
      <ns3:changePasswordReturn xmlns:ns3="http://xml.kamsoft.pl/ws/kaas/login_types">Hasło zostało zmienione.</ns3:changePasswordReturn>
   </env:Body>
</env:Envelope>`))
	}))
	defer srv.Close()

	app := New(TestingEndpoint)
	app.EndpointURL = srv.URL
	changed, err := app.ChangePassword(context.Background(), testCredentials(), "qwerty!@#", "next!")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if !changed {
		t.Error("password change not confirmed")
	}
}

func TestUnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	app := New(TestingEndpoint)
	app.EndpointURL = srv.URL
	_, err := app.Login(context.Background(), testCredentials())
	if err == nil {
		t.Fatal("expected an error")
	}
	if KindOf(err) != KindUnknown {
		t.Errorf("got kind %s, want %s", KindOf(err), KindUnknown)
	}
}

func TestRestoreSessionIntoFreshClient(t *testing.T) {
	source := New(TestingEndpoint)
	source.Fake = true
	if _, err := source.Login(context.Background(), testCredentials()); err != nil {
		t.Fatal(err)
	}
	record := source.SaveSession()
	if record == nil {
		t.Fatal("no snapshot for an active session")
	}

	app := New(TestingEndpoint)
	app.Fake = true
	if !app.RestoreSession(record) {
		t.Fatal("could not restore the snapshot")
	}
	if !app.IsLoggedIn() {
		t.Error("restored client not logged in")
	}
	if _, err := app.CheckEligibility(context.Background(), FakePESELActive); err != nil {
		t.Errorf("check after restore failed: %s", err)
	}
}
