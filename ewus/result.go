package ewus

import (
	"strings"
	"time"
)

// LoginStatus is determined from the bracketed code in the server's login
// message; anything other than success warns that the password is expiring.
type LoginStatus int

// Login statuses, mapped from the four literal server codes
const (
	LoginSuccess                 LoginStatus = iota // [000]
	LoginPasswordExpiresSoon                        // [001]
	LoginPasswordExpiresTomorrow                    // [002]
	LoginPasswordExpiresToday                       // [003]
)

var loginStatusNames = [...]string{
	"success",
	"passwordExpiresSoon",
	"passwordExpiresTomorrow",
	"passwordExpiresToday",
}

func (s LoginStatus) String() string {
	if s < 0 || int(s) >= len(loginStatusNames) {
		return "success"
	}
	return loginStatusNames[s]
}

// LoginOutcome is the result of a successful login
type LoginOutcome struct {
	Session *Session    `json:"session"`
	Status  LoginStatus `json:"-"`
}

// InsuranceState is the patient's coverage state as reported by the service
type InsuranceState int

// Insurance states
const (
	InsuranceInactive InsuranceState = iota // no active coverage, or patient not found
	InsuranceActive                         // active coverage confirmed
	InsuranceIDStale                        // the PESEL number has been cancelled
)

var insuranceStateNames = [...]string{
	"INACTIVE",
	"ACTIVE",
	"ID_STALE",
}

func (s InsuranceState) String() string {
	if s < 0 || int(s) >= len(insuranceStateNames) {
		return "INACTIVE"
	}
	return insuranceStateNames[s]
}

// Notice is a coded supplementary record attached to an eligibility result,
// such as a vaccination certificate or quarantine flag
type Notice struct {
	Code  string `json:"code"`
	Level string `json:"level"`
	Value string `json:"value"`
}

// PatientRecord describes the patient as returned by an eligibility check
type PatientRecord struct {
	PESEL              string         `json:"pesel"`
	FirstName          string         `json:"firstName,omitempty"`
	LastName           string         `json:"lastName,omitempty"`
	InsuranceState     InsuranceState `json:"-"`
	StatusSymbol       string         `json:"statusSymbol,omitempty"`
	ConfirmationExpiry time.Time      `json:"confirmationExpiry,omitempty"`
	Notices            []Notice       `json:"notices,omitempty"`
}

// EligibilityResult is the outcome of a single eligibility check. It is
// derived entirely from parsing and never persisted by this package.
type EligibilityResult struct {
	OperationID   string        `json:"operationId"`
	OperationTime time.Time     `json:"operationTime"`
	Patient       PatientRecord `json:"patient"`
	OperatorID    string        `json:"operatorId"`
	Domain        string        `json:"domainCode"`
	ProviderID    string        `json:"providerId,omitempty"`
	Valid         bool          `json:"isValid"`
	Notes         []string      `json:"notes"`
}

// Human-readable notes attached to eligibility results. These literals are
// displayed to clinicians and must not be reworded.
const (
	noteActive         = "Pacjent ma aktywne ubezpieczenie"
	noteInactive       = "Brak aktywnego ubezpieczenia"
	noteStale          = "PESEL nieaktualny - anulowany przez MSW"
	noteVaccination    = "Posiada zaświadczenie o szczepieniu COVID-19"
	noteQuarantine     = "Objęty kwarantanną COVID-19"
	noteIsolation      = "Objęty izolacją domową"
	noteUkrEntitlement = "Uprawniony na podstawie ustawy o pomocy obywatelom Ukrainy"
)

// noticeNotes maps notice-code markers to the fixed note each one produces.
// The first matching marker wins for a given notice.
var noticeNotes = []struct {
	marker string
	note   string
}{
	{"SZCZEPIENIE", noteVaccination},
	{"ZASWIADCZENIE", noteVaccination},
	{"KWARANTANNA", noteQuarantine},
	{"IZOLACJA", noteIsolation},
	{"UKR", noteUkrEntitlement},
}

// resultNotes derives the human-readable notes for a result: one note for the
// coverage state followed by one for each recognised notice code.
func resultNotes(state InsuranceState, notices []Notice) []string {
	notes := make([]string, 0, 1+len(notices))
	switch state {
	case InsuranceActive:
		notes = append(notes, noteActive)
	case InsuranceIDStale:
		notes = append(notes, noteStale)
	default:
		notes = append(notes, noteInactive)
	}
	for _, n := range notices {
		for _, m := range noticeNotes {
			if strings.Contains(n.Code, m.marker) {
				notes = append(notes, m.note)
				break
			}
		}
	}
	return notes
}
