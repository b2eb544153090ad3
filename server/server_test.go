package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Zenodotos/nowezdrowie/ewus"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	sv, err := New(Options{
		Endpoint:     ewus.TestingEndpoint,
		Fake:         true,
		CacheMinutes: 5,
	})
	if err != nil {
		t.Fatal(err)
	}
	return sv
}

func login(t *testing.T, router http.Handler) string {
	t.Helper()
	body := `{"domain":"15","login":"TEST1","password":"qwerty!@#"}`
	req := httptest.NewRequest("POST", "/login", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("login: got status %d: %s", w.Code, w.Body.String())
	}
	var response struct {
		Token       string `json:"token"`
		OperatorID  string `json:"operatorId"`
		LoginStatus string `json:"loginStatus"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatal(err)
	}
	if response.Token == "" {
		t.Fatal("login: no token issued")
	}
	if response.OperatorID != "TEST123" {
		t.Errorf("login: got operator %q", response.OperatorID)
	}
	if response.LoginStatus != "success" {
		t.Errorf("login: got status %q", response.LoginStatus)
	}
	return response.Token
}

func TestLoginAndCheck(t *testing.T) {
	router := testServer(t).Router()
	token := login(t, router)

	req := httptest.NewRequest("GET", "/check/"+ewus.FakePESELActive, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("check: got status %d: %s", w.Code, w.Body.String())
	}
	var result ewus.EligibilityResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatal(err)
	}
	if !result.Valid {
		t.Error("check: active coverage not reported as valid")
	}
	if result.Patient.FirstName != "Jan" || result.Patient.LastName != "Kowalski" {
		t.Errorf("check: got patient %s %s", result.Patient.FirstName, result.Patient.LastName)
	}
}

func TestLoginRejected(t *testing.T) {
	router := testServer(t).Router()
	body := `{"domain":"15","login":"TEST1","password":"wrong"}`
	req := httptest.NewRequest("POST", "/login", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("got status %d, want %d", w.Code, http.StatusUnauthorized)
	}
	var response map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatal(err)
	}
	if response["kind"] != "authentication" {
		t.Errorf("got kind %q", response["kind"])
	}
}

func TestCheckRequiresToken(t *testing.T) {
	router := testServer(t).Router()
	req := httptest.NewRequest("GET", "/check/"+ewus.FakePESELActive, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("got status %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestCheckInvalidIdentifier(t *testing.T) {
	router := testServer(t).Router()
	token := login(t, router)

	req := httptest.NewRequest("GET", "/check/123", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("got status %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestStatus(t *testing.T) {
	router := testServer(t).Router()
	token := login(t, router)

	req := httptest.NewRequest("GET", "/status", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d: %s", w.Code, w.Body.String())
	}
	var response struct {
		Active  bool          `json:"active"`
		Session *ewus.Session `json:"session"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatal(err)
	}
	if !response.Active || response.Session == nil {
		t.Errorf("unexpected status response: %s", w.Body.String())
	}
}

func TestLogout(t *testing.T) {
	router := testServer(t).Router()
	token := login(t, router)

	req := httptest.NewRequest("POST", "/logout", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d: %s", w.Code, w.Body.String())
	}
	var response map[string]bool
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatal(err)
	}
	if !response["loggedOut"] {
		t.Error("logout not confirmed")
	}
}

func TestPasswordChange(t *testing.T) {
	router := testServer(t).Router()
	body := `{"domain":"15","login":"TEST1","oldPassword":"qwerty!@#","newPassword":"next!"}`
	req := httptest.NewRequest("POST", "/password", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d: %s", w.Code, w.Body.String())
	}
	var response map[string]bool
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatal(err)
	}
	if !response["changed"] {
		t.Error("password change not confirmed")
	}
}

func TestAccountLoginWithoutStore(t *testing.T) {
	router := testServer(t).Router()
	req := httptest.NewRequest("POST", "/accounts/jkowalski/login", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotImplemented {
		t.Errorf("got status %d, want %d", w.Code, http.StatusNotImplemented)
	}
}
