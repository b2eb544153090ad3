package ewus

import (
	"bytes"
	"text/template"
	"time"
)

// The namespace URIs and SOAPAction values below are part of the wire
// contract and must match the server exactly.
const (
	nsSoapEnv   = "http://schemas.xmlsoap.org/soap/envelope/"
	nsAuth      = "http://xml.kamsoft.pl/ws/kaas/login_types"
	nsCommon    = "http://xml.kamsoft.pl/ws/common"
	nsBroker    = "http://xml.kamsoft.pl/ws/broker"
	nsStatusCWU = "https://ewus.nfz.gov.pl/ws/broker/ewus/status_cwu/v5"

	soapActionLogin          = "http://xml.kamsoft.pl/ws/auth/Auth/loginRequest"
	soapActionExecute        = "executeService"
	soapActionLogout         = "logout"
	soapActionChangePassword = "changePassword"
)

// credentialItem is a single name/value pair in the login credentials block
type credentialItem struct {
	Name  string
	Value string
}

// loginItems assembles the credential items for the given operator,
// validating the protocol's required-field rule: domain and login always,
// plus operator type and the matching identifier for the extended domains.
func loginItems(c Credentials) ([]credentialItem, error) {
	if c.Domain == "" || c.Login == "" {
		return nil, newError(KindMissingInput, "login credentials require both domain and login")
	}
	if !KnownDomain(c.Domain) {
		return nil, newError(KindMissingInput, "unknown domain code: %s", c.Domain)
	}
	items := []credentialItem{
		{Name: "domain", Value: c.Domain},
		{Name: "login", Value: c.Login},
	}
	if extendedDomains[c.Domain] {
		switch c.Type {
		case OperatorClinician:
			if c.ClinicianID == "" {
				return nil, newError(KindMissingInput, "domain %s requires a clinician identifier (idntLek)", c.Domain)
			}
			items = append(items,
				credentialItem{Name: "type", Value: string(c.Type)},
				credentialItem{Name: "idntLek", Value: c.ClinicianID})
		case OperatorProvider:
			if c.ProviderID == "" {
				return nil, newError(KindMissingInput, "domain %s requires a provider identifier (idntSwd)", c.Domain)
			}
			items = append(items,
				credentialItem{Name: "type", Value: string(c.Type)},
				credentialItem{Name: "idntSwd", Value: c.ProviderID})
		default:
			return nil, newError(KindMissingInput, "domain %s requires an operator type, LEK or SWD", c.Domain)
		}
	}
	return items, nil
}

type loginRequest struct {
	Items    []credentialItem
	Password string
}

// NewLoginRequest returns the XML request to log in the specified operator.
// Fails with a missing-input error before any network I/O when a required
// credential field is absent.
func NewLoginRequest(c Credentials) ([]byte, error) {
	items, err := loginItems(c)
	if err != nil {
		return nil, err
	}
	return executeTemplate(loginTemplate, loginRequest{Items: items, Password: c.Password})
}

type checkRequest struct {
	SessionID  string
	AuthToken  string
	Date       string
	PESEL      string
	SystemName string
}

// NewCheckRequest returns the XML request to check the insurance eligibility
// of the patient with the given PESEL number, on behalf of an active session.
func NewCheckRequest(s *Session, pesel string, now time.Time) ([]byte, error) {
	if s == nil {
		return nil, newError(KindSession, "no active session, log in first")
	}
	return executeTemplate(checkTemplate, checkRequest{
		SessionID:  s.ID,
		AuthToken:  s.AuthToken,
		Date:       now.Format("2006-01-02T15:04:05"),
		PESEL:      pesel,
		SystemName: "nowezdrowie",
	})
}

// NewLogoutRequest returns the XML request ending the given session
func NewLogoutRequest(s *Session) ([]byte, error) {
	if s == nil {
		return nil, newError(KindSession, "no active session, log in first")
	}
	return executeTemplate(logoutTemplate, struct{ SessionID string }{SessionID: s.ID})
}

type changePasswordRequest struct {
	Items       []credentialItem
	OldPassword string
	NewPassword string
}

// NewChangePasswordRequest returns the XML request changing the operator's
// password. The credentials block follows the same required-field rule as
// login.
func NewChangePasswordRequest(c Credentials, oldPassword string, newPassword string) ([]byte, error) {
	items, err := loginItems(c)
	if err != nil {
		return nil, err
	}
	return executeTemplate(changePasswordTemplate, changePasswordRequest{
		Items:       items,
		OldPassword: oldPassword,
		NewPassword: newPassword,
	})
}

func executeTemplate(t *template.Template, data interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return nil, newError(KindUnknown, "could not build request: %s", err)
	}
	return buf.Bytes(), nil
}

// Values are embedded without additional escaping: the service's documented
// schema expects the literal strings and none of the fields carry markup.
var loginTemplate = template.Must(template.New("login-request").Parse(`<?xml version="1.0" encoding="UTF-8"?>
<soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/" xmlns:auth="http://xml.kamsoft.pl/ws/kaas/login_types">
   <soapenv:Header/>
   <soapenv:Body>
      <auth:login>
         <auth:credentials>{{range .Items}}
            <auth:item>
               <auth:name>{{.Name}}</auth:name>
               <auth:value>
                  <auth:stringValue>{{.Value}}</auth:stringValue>
               </auth:value>
            </auth:item>{{end}}
         </auth:credentials>
         <auth:password>{{.Password}}</auth:password>
      </auth:login>
   </soapenv:Body>
</soapenv:Envelope>
`))

var checkTemplate = template.Must(template.New("check-request").Parse(`<?xml version="1.0" encoding="UTF-8"?>
<soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/" xmlns:com="http://xml.kamsoft.pl/ws/common" xmlns:brok="http://xml.kamsoft.pl/ws/broker">
   <soapenv:Header>
      <com:session id="{{.SessionID}}" xmlns:ns1="http://xml.kamsoft.pl/ws/common"/>
      <com:authToken id="{{.AuthToken}}" xmlns:ns1="http://xml.kamsoft.pl/ws/common"/>
   </soapenv:Header>
   <soapenv:Body>
      <brok:executeService>
         <com:location>
            <com:namespace>nfz.gov.pl/ws/broker/cwu</com:namespace>
            <com:localname>checkCWU</com:localname>
            <com:version>5.0</com:version>
         </com:location>
         <brok:date>{{.Date}}</brok:date>
         <brok:payload>
            <brok:textload>
               <ewus:status_cwu_pyt xmlns:ewus="https://ewus.nfz.gov.pl/ws/broker/ewus/status_cwu/v5">
                  <ewus:numer_pesel>{{.PESEL}}</ewus:numer_pesel>
                  <ewus:system_swiad nazwa="{{.SystemName}}" wersja="1.0.0"/>
               </ewus:status_cwu_pyt>
            </brok:textload>
         </brok:payload>
      </brok:executeService>
   </soapenv:Body>
</soapenv:Envelope>
`))

var logoutTemplate = template.Must(template.New("logout-request").Parse(`<?xml version="1.0" encoding="UTF-8"?>
<soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/" xmlns:auth="http://xml.kamsoft.pl/ws/kaas/login_types" xmlns:com="http://xml.kamsoft.pl/ws/common">
   <soapenv:Header/>
   <soapenv:Body>
      <auth:logout>
         <com:session id="{{.SessionID}}" xmlns:ns1="http://xml.kamsoft.pl/ws/common"/>
      </auth:logout>
   </soapenv:Body>
</soapenv:Envelope>
`))

var changePasswordTemplate = template.Must(template.New("change-password-request").Parse(`<?xml version="1.0" encoding="UTF-8"?>
<soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/" xmlns:auth="http://xml.kamsoft.pl/ws/kaas/login_types">
   <soapenv:Header/>
   <soapenv:Body>
      <auth:changePassword>
         <auth:credentials>{{range .Items}}
            <auth:item>
               <auth:name>{{.Name}}</auth:name>
               <auth:value>
                  <auth:stringValue>{{.Value}}</auth:stringValue>
               </auth:value>
            </auth:item>{{end}}
         </auth:credentials>
         <auth:oldPassword>{{.OldPassword}}</auth:oldPassword>
         <auth:newPassword>{{.NewPassword}}</auth:newPassword>
         <auth:newPasswordRepeat>{{.NewPassword}}</auth:newPasswordRepeat>
      </auth:changePassword>
   </soapenv:Body>
</soapenv:Envelope>
`))
