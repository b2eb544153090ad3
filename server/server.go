// Package server provides a REST facade in front of the eWUŚ client. Login
// issues a signed bearer token carrying the session snapshot; subsequent
// requests restore the snapshot into a fresh client, so the server itself
// holds no per-session state.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/patrickmn/go-cache"
	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"

	"github.com/Zenodotos/nowezdrowie/ewus"
)

// Options defines the options for a server
type Options struct {
	Port           int
	Endpoint       ewus.Endpoint
	EndpointURL    string // override base URL for the specified endpoint
	Fake           bool   // serve canned test-environment results
	TimeoutSeconds int
	CacheMinutes   int // eligibility result cache expiration, 0 switches the cache off
}

// Server represents the REST server
type Server struct {
	Options
	issuer   *TokenIssuer
	accounts *AccountStore
	cache    *cache.Cache
}

// New creates a new server with an ephemeral token signing key
func New(opts Options) (*Server, error) {
	issuer, err := NewTokenIssuerWithTemporaryKey()
	if err != nil {
		return nil, err
	}
	sv := &Server{Options: opts, issuer: issuer}
	if opts.CacheMinutes > 0 {
		expiration := time.Duration(opts.CacheMinutes) * time.Minute
		sv.cache = cache.New(expiration, 2*expiration)
	}
	return sv, nil
}

// RegisterTokenIssuer replaces the ephemeral signing key, so that tokens
// survive a server restart
func (sv *Server) RegisterTokenIssuer(issuer *TokenIssuer) {
	sv.issuer = issuer
	log.Printf("server: registered persistent token signing key")
}

// RegisterAccountStore turns on login by stored user account
func (sv *Server) RegisterAccountStore(st *AccountStore) {
	sv.accounts = st
	log.Printf("server: registered operator account store")
}

// newClient creates a fresh eWUŚ client for a single request. One instance
// per in-flight request keeps session mutation single-threaded; the
// eligibility cache is shared across requests.
func (sv *Server) newClient() *ewus.App {
	return &ewus.App{
		Endpoint:       sv.Endpoint,
		EndpointURL:    sv.EndpointURL,
		Cache:          sv.cache,
		Fake:           sv.Fake,
		TimeoutSeconds: sv.TimeoutSeconds,
	}
}

// Router returns the configured HTTP handler
func (sv *Server) Router() http.Handler {
	r := mux.NewRouter().StrictSlash(true)
	r.HandleFunc("/login", sv.handleLogin).Methods("POST")
	r.HandleFunc("/accounts/{username}/login", sv.handleAccountLogin).Methods("POST")
	r.HandleFunc("/check/{pesel}", sv.handleCheck).Methods("GET")
	r.HandleFunc("/status", sv.handleStatus).Methods("GET")
	r.HandleFunc("/logout", sv.handleLogout).Methods("POST")
	r.HandleFunc("/password", sv.handlePassword).Methods("POST")
	return cors.Default().Handler(r)
}

// RunServer runs the REST server until interrupted
func (sv *Server) RunServer() error {
	// listen for OS signals for logging and graceful shutdown
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", sv.Port),
		Handler:      sv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() error {
		log.Printf("server: http listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		select {
		case sig := <-sigs:
			log.Printf("server: received signal: %v", sig)
		case <-ctx.Done():
		}
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (sv *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var c ewus.Credentials
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	sv.login(w, r, c)
}

func (sv *Server) handleAccountLogin(w http.ResponseWriter, r *http.Request) {
	if sv.accounts == nil {
		http.Error(w, "no account store configured", http.StatusNotImplemented)
		return
	}
	username := mux.Vars(r)["username"]
	c, err := sv.accounts.Credentials(username)
	if err == ErrAccountNotFound {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		log.Printf("server: account lookup failed for %s: %s", username, err)
		http.Error(w, "account lookup failed", http.StatusInternalServerError)
		return
	}
	sv.login(w, r, c)
}

func (sv *Server) login(w http.ResponseWriter, r *http.Request, c ewus.Credentials) {
	client := sv.newClient()
	outcome, err := client.Login(r.Context(), c)
	if err != nil {
		writeError(w, err)
		return
	}
	token, err := sv.issuer.IssueToken(client.SaveSession(), outcome.Session.ExpiresAt)
	if err != nil {
		log.Printf("server: could not issue token: %s", err)
		http.Error(w, "could not issue token", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]interface{}{
		"token":       token,
		"operatorId":  outcome.Session.OperatorID,
		"domainCode":  outcome.Session.Domain,
		"expiresAt":   outcome.Session.ExpiresAt,
		"loginStatus": outcome.Status.String(),
	})
}

// restore rebuilds a client from the bearer token, writing a 401 and
// returning nil when the token or the session it carries is no longer usable
func (sv *Server) restore(w http.ResponseWriter, r *http.Request) *ewus.App {
	snapshot, err := sv.issuer.ParseToken(r.Header.Get("Authorization"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return nil
	}
	client := sv.newClient()
	if !client.RestoreSession(snapshot) {
		http.Error(w, "session expired, log in again", http.StatusUnauthorized)
		return nil
	}
	return client
}

func (sv *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	client := sv.restore(w, r)
	if client == nil {
		return
	}
	result, err := client.CheckEligibility(r.Context(), mux.Vars(r)["pesel"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, result)
}

func (sv *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snapshot, err := sv.issuer.ParseToken(r.Header.Get("Authorization"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	client := sv.newClient()
	active := client.RestoreSession(snapshot)
	writeJSON(w, map[string]interface{}{
		"active":  active,
		"session": client.Session(),
	})
}

func (sv *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	client := sv.restore(w, r)
	if client == nil {
		return
	}
	writeJSON(w, map[string]interface{}{
		"loggedOut": client.Logout(r.Context()),
	})
}

type passwordRequest struct {
	ewus.Credentials
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

func (sv *Server) handlePassword(w http.ResponseWriter, r *http.Request) {
	var pr passwordRequest
	if err := json.NewDecoder(r.Body).Decode(&pr); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	client := sv.newClient()
	changed, err := client.ChangePassword(r.Context(), pr.Credentials, pr.OldPassword, pr.NewPassword)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]interface{}{
		"changed": changed,
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("server: could not write response: %s", err)
	}
}

// writeError maps a typed client error to an HTTP status
func writeError(w http.ResponseWriter, err error) {
	kind := ewus.KindOf(err)
	status := http.StatusBadGateway
	switch kind {
	case ewus.KindAuthentication, ewus.KindSession, ewus.KindAuthToken:
		status = http.StatusUnauthorized
	case ewus.KindAuthorization, ewus.KindPasswordExpired:
		status = http.StatusForbidden
	case ewus.KindMissingInput:
		status = http.StatusBadRequest
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error": err.Error(),
		"kind":  kind.String(),
	})
}
