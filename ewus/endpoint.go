// Package ewus provides a lightweight client for the NFZ eWUŚ service, which
// verifies the insurance eligibility of patients identified by PESEL number.
package ewus

import "strings"

// Endpoint represents a specific eWUŚ broker server environment
type Endpoint int

// A list of endpoints
const (
	UnknownEndpoint    Endpoint = iota // unknown
	ProductionEndpoint                 // production server
	TestingEndpoint                    // test environment with canned operators
)

var endpointURLs = [...]string{
	"",
	"https://ewus.nfz.gov.pl/ws-broker-server-ewus",
	"https://ewus.nfz.gov.pl/ws-broker-server-ewus-auth-test",
}

var endpointNames = [...]string{
	"unknown",
	"production",
	"testing",
}

// LookupEndpoint returns an endpoint for (P)roduction or (T)esting
func LookupEndpoint(s string) Endpoint {
	s2 := strings.ToUpper(s)
	switch {
	case strings.HasPrefix(s2, "P"):
		return ProductionEndpoint
	case strings.HasPrefix(s2, "T"):
		return TestingEndpoint
	}
	return UnknownEndpoint
}

// BaseURL returns the default base URL of this endpoint
func (ep Endpoint) BaseURL() string {
	return endpointURLs[ep]
}

// Name returns the name of this endpoint
func (ep Endpoint) Name() string {
	return endpointNames[ep]
}

// the two services exposed by the broker server; login, logout and password
// changes go to the auth service, eligibility checks to the broker.
const (
	authServicePath   = "/services/Auth"
	brokerServicePath = "/services/ServiceBroker"
)
