package ewus

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Fixed namespace for deriving deterministic fake tokens and operation
// identifiers: the engine must be reproducible run to run, with no random
// elements, so it can seed conformance tests without network access.
var fakeNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

// The canned test identifiers recognised by the test environment
const (
	FakePESELActive      = "00092497177" // active insurance
	FakePESELVaccinated  = "00081314722" // has a vaccination certificate notice
	FakePESELQuarantined = "00032948271" // under quarantine notice
	FakePESELStale       = "02082642235" // PESEL cancelled
)

type fakeOperator struct {
	login    string
	password string
}

// Fake simulates the test environment: logins succeed only for the
// preconfigured test operators and eligibility checks return the canned
// scenario for each test identifier. Each engine owns its credential table,
// so concurrent test clients do not interfere.
type Fake struct {
	mu        sync.Mutex
	operators map[string]fakeOperator
}

// NewFake creates a simulation engine seeded with the test operators
func NewFake() *Fake {
	return &Fake{
		operators: map[string]fakeOperator{
			"15": {login: "TEST1", password: "qwerty!@#"},
			"01": {login: "TEST1", password: "qwerty!@#"},
		},
	}
}

func fakeToken(parts ...string) string {
	id := uuid.NewSHA1(fakeNamespace, []byte(strings.Join(parts, "|")))
	return strings.ReplaceAll(id.String(), "-", "")
}

// Login succeeds only when domain, login and password exactly match a test
// operator record
func (f *Fake) Login(c Credentials, now time.Time) (*Session, LoginStatus, error) {
	f.mu.Lock()
	op, ok := f.operators[c.Domain]
	f.mu.Unlock()
	if !ok || op.login != c.Login || op.password != c.Password {
		return nil, LoginSuccess, newError(KindAuthentication, "Nieprawidłowe dane logowania")
	}
	return &Session{
		ID:         fakeToken("session", c.Domain, c.Login),
		AuthToken:  fakeToken("token", c.Domain, c.Login),
		LoginTime:  now,
		OperatorID: "TEST123",
		Domain:     c.Domain,
		ExpiresAt:  now.Add(SessionDuration),
	}, LoginSuccess, nil
}

// CheckEligibility returns the canned result for the given identifier: the
// four test identifiers map to fixed scenarios, any other valid identifier is
// active when its last digit is even and inactive otherwise.
func (f *Fake) CheckEligibility(s *Session, pesel string, now time.Time) (*EligibilityResult, error) {
	if s == nil || s.Expired(now) {
		return nil, newError(KindSession, "no active session, log in first")
	}
	if !ValidatePESEL(pesel) {
		return nil, newError(KindMissingInput, "invalid PESEL number: %s", pesel)
	}

	patient := PatientRecord{PESEL: pesel}
	switch {
	case pesel == FakePESELActive:
		patient.InsuranceState = InsuranceActive
		patient.FirstName = "Jan"
		patient.LastName = "Kowalski"
		patient.StatusSymbol = "DN"
		patient.ConfirmationExpiry = now.AddDate(0, 0, 30)
	case pesel == FakePESELVaccinated:
		patient.InsuranceState = InsuranceActive
		patient.FirstName = "Anna"
		patient.LastName = "Nowak"
		patient.StatusSymbol = "DN"
		patient.ConfirmationExpiry = now.AddDate(0, 0, 30)
		patient.Notices = []Notice{{
			Code:  "ZASWIADCZENIE-COVID",
			Level: "I",
			Value: "Pacjent posiada zaświadczenie o szczepieniu COVID-19",
		}}
	case pesel == FakePESELQuarantined:
		patient.InsuranceState = InsuranceActive
		patient.FirstName = "Piotr"
		patient.LastName = "Wiśniewski"
		patient.StatusSymbol = "DN"
		patient.ConfirmationExpiry = now.AddDate(0, 0, 30)
		patient.Notices = []Notice{{
			Code:  "KWARANTANNA-COVID19",
			Level: "O",
			Value: "Pacjent objęty kwarantanną COVID-19",
		}}
	case pesel == FakePESELStale:
		patient.InsuranceState = InsuranceIDStale
	case (pesel[10]-'0')%2 == 0:
		// any other even identifier counts as actively insured
		patient.InsuranceState = InsuranceActive
		patient.FirstName = "Jan"
		patient.LastName = "Kowalski"
		patient.StatusSymbol = "DN"
		patient.ConfirmationExpiry = now.AddDate(0, 0, 30)
	default:
		patient.InsuranceState = InsuranceInactive
	}

	operationID := fakeToken("operation", pesel)
	if len(operationID) > 20 {
		operationID = operationID[:20]
	}
	return &EligibilityResult{
		OperationID:   operationID,
		OperationTime: now,
		Patient:       patient,
		OperatorID:    s.OperatorID,
		Domain:        s.Domain,
		Valid:         patient.InsuranceState == InsuranceActive,
		Notes:         resultNotes(patient.InsuranceState, patient.Notices),
	}, nil
}

// ChangePassword mutates the credential table when the old password matches
func (f *Fake) ChangePassword(c Credentials, oldPassword string, newPassword string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	op, ok := f.operators[c.Domain]
	if !ok || op.login != c.Login || op.password != oldPassword {
		return newError(KindAuthentication, "Nieprawidłowe stare hasło")
	}
	op.password = newPassword
	f.operators[c.Domain] = op
	return nil
}
