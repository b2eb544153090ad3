package ewus

// OperatorType identifies the kind of operator logging in to the service
type OperatorType string

// The two operator types recognised by the protocol
const (
	OperatorClinician OperatorType = "LEK" // a clinician (lekarz)
	OperatorProvider  OperatorType = "SWD" // a healthcare provider (świadczeniodawca)
)

// Credentials holds the login data for an operator.
// Domain is one of the 16 regional branch codes; for the extended domains the
// protocol additionally requires the operator type and the matching
// clinician or provider identifier.
type Credentials struct {
	Domain      string       `json:"domain"`
	Login       string       `json:"login"`
	Password    string       `json:"password,omitempty"`
	Type        OperatorType `json:"type,omitempty"`
	ClinicianID string       `json:"clinicianId,omitempty"`
	ProviderID  string       `json:"providerId,omitempty"`
}

// NewClinicianCredentials creates login credentials for a clinician
func NewClinicianCredentials(domain string, login string, password string, clinicianID string) Credentials {
	return Credentials{
		Domain:      domain,
		Login:       login,
		Password:    password,
		Type:        OperatorClinician,
		ClinicianID: clinicianID,
	}
}

// NewProviderCredentials creates login credentials for a healthcare provider
func NewProviderCredentials(domain string, login string, password string, providerID string) Credentials {
	return Credentials{
		Domain:      domain,
		Login:       login,
		Password:    password,
		Type:        OperatorProvider,
		ProviderID:  providerID,
	}
}

// domainNames maps the 16 regional branch codes to their names
var domainNames = map[string]string{
	"01": "dolnośląskie (Wrocław)",
	"02": "kujawsko-pomorskie (Bydgoszcz)",
	"03": "lubelskie (Lublin)",
	"04": "lubuskie (Zielona Góra)",
	"05": "łódzkie (Łódź)",
	"06": "małopolskie (Kraków)",
	"07": "mazowieckie (Warszawa)",
	"08": "opolskie (Opole)",
	"09": "podkarpackie (Rzeszów)",
	"10": "podlaskie (Białystok)",
	"11": "pomorskie (Gdańsk)",
	"12": "śląskie (Katowice)",
	"13": "świętokrzyskie (Kielce)",
	"14": "warmińsko-mazurskie (Olsztyn)",
	"15": "wielkopolskie (Poznań)",
	"16": "zachodniopomorskie (Szczecin)",
}

// extendedDomains are the branches whose login protocol requires the operator
// type together with the matching clinician or provider identifier.
var extendedDomains = map[string]bool{
	"01": true,
	"04": true,
	"05": true,
	"06": true,
	"08": true,
	"09": true,
	"11": true,
	"12": true,
}

// KnownDomain reports whether code identifies one of the 16 regional branches
func KnownDomain(code string) bool {
	_, ok := domainNames[code]
	return ok
}

// DomainName returns the name of the regional branch for the given code, or
// an empty string when the code is not recognised
func DomainName(code string) string {
	return domainNames[code]
}
