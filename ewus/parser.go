package ewus

import (
	"bytes"
	"encoding/xml"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// element is a parsed XML element. Responses are walked through this generic
// tree rather than unmarshalled into rigid structs because the server's
// namespace prefixes are observed to vary between deployments.
type element struct {
	name     xml.Name
	attrs    []xml.Attr
	text     string
	children []*element
}

// parseDocument reads raw XML into an element tree
func parseDocument(data []byte) (*element, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var root *element
	var stack []*element
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			el := &element{name: t.Name, attrs: t.Attr}
			if len(stack) == 0 {
				if root != nil {
					return nil, io.ErrUnexpectedEOF
				}
				root = el
			} else {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, el)
			}
			stack = append(stack, el)
		case xml.EndElement:
			if len(stack) == 0 {
				return nil, io.ErrUnexpectedEOF
			}
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text += string(t)
			}
		}
	}
	if root == nil || len(stack) != 0 {
		return nil, io.ErrUnexpectedEOF
	}
	return root, nil
}

// find performs the two-stage lookup: a namespace-qualified search first,
// falling back to a case-insensitive scan by local tag name when no
// qualified match exists.
func (el *element) find(space string, local string) *element {
	if m := el.findQualified(space, local); m != nil {
		return m
	}
	return el.findLocal(local)
}

func (el *element) findQualified(space string, local string) *element {
	if el.name.Space == space && el.name.Local == local {
		return el
	}
	for _, child := range el.children {
		if m := child.findQualified(space, local); m != nil {
			return m
		}
	}
	return nil
}

func (el *element) findLocal(local string) *element {
	if strings.EqualFold(el.name.Local, local) {
		return el
	}
	for _, child := range el.children {
		if m := child.findLocal(local); m != nil {
			return m
		}
	}
	return nil
}

// findAllLocal collects every element matching the local tag name,
// case-insensitively, in document order
func (el *element) findAllLocal(local string, acc []*element) []*element {
	if strings.EqualFold(el.name.Local, local) {
		acc = append(acc, el)
	}
	for _, child := range el.children {
		acc = child.findAllLocal(local, acc)
	}
	return acc
}

func (el *element) attr(local string) string {
	for _, a := range el.attrs {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

func (el *element) trimmedText() string {
	return strings.TrimSpace(el.text)
}

// textOf is a nil-safe convenience for optional elements
func textOf(el *element) string {
	if el == nil {
		return ""
	}
	return el.trimmedText()
}

// ParseFault inspects a raw response for either of the two independent fault
// blocks: the service's own faultcode/faultstring pair in the common
// namespace, or a standard SOAP Fault. Returns a typed error when a fault is
// populated and nil otherwise. Malformed XML never fails this path: an
// unparsable document simply carries no detectable fault.
func ParseFault(body []byte) error {
	root, err := parseDocument(body)
	if err != nil {
		return nil
	}
	return parseFault(root)
}

func parseFault(root *element) error {
	if code := root.findQualified(nsCommon, "faultcode"); code != nil {
		msg := textOf(root.findQualified(nsCommon, "faultstring"))
		return classifyFault(code.trimmedText(), msg)
	}
	fault := root.findQualified(nsSoapEnv, "Fault")
	if fault == nil {
		fault = root.findLocal("Fault")
	}
	if fault != nil {
		code := textOf(fault.findLocal("faultcode"))
		msg := textOf(fault.findLocal("faultstring"))
		if code != "" || msg != "" {
			return classifyFault(code, msg)
		}
	}
	return nil
}

// login messages occasionally carry the operator identifier in parentheses,
// e.g. "[000] Zalogowano operatora (L12345)"
var rxOperatorID = regexp.MustCompile(`\(([A-Za-z]{0,3}\d{3,})\)`)

// the four literal status codes embedded in the login message
var loginStatusCodes = []struct {
	code   string
	status LoginStatus
}{
	{"[000]", LoginSuccess},
	{"[001]", LoginPasswordExpiresSoon},
	{"[002]", LoginPasswordExpiresTomorrow},
	{"[003]", LoginPasswordExpiresToday},
}

// parseLoginResponse extracts the session from a login response. The session
// and authToken identifiers are attributes on header elements; the login
// status comes from a bracketed code in the loginReturn message.
func parseLoginResponse(body []byte, domain string, now time.Time) (*Session, LoginStatus, error) {
	root, err := parseDocument(body)
	if err != nil {
		return nil, LoginSuccess, newError(KindUnknown, "could not parse login response: %s", err)
	}
	if err := parseFault(root); err != nil {
		return nil, LoginSuccess, err
	}
	var sessionID, authToken string
	if el := root.find(nsCommon, "session"); el != nil {
		sessionID = el.attr("id")
	}
	if el := root.find(nsCommon, "authToken"); el != nil {
		authToken = el.attr("id")
	}
	if sessionID == "" || authToken == "" {
		return nil, LoginSuccess, newError(KindService, "login response missing session or authToken identifier")
	}

	message := textOf(root.find(nsAuth, "loginReturn"))
	// the lenient default: an absent or unrecognised status marker counts as
	// success, preserving the wire behaviour of the original service client
	status := LoginSuccess
	for _, sc := range loginStatusCodes {
		if strings.Contains(message, sc.code) {
			status = sc.status
			break
		}
	}
	operatorID := ""
	if m := rxOperatorID.FindStringSubmatch(message); m != nil {
		operatorID = m[1]
	}
	if operatorID == "" {
		// documented fallback: a deterministic synthetic identifier derived
		// from the session id
		operatorID = sessionID
		if len(operatorID) > 8 {
			operatorID = operatorID[:8]
		}
	}
	return &Session{
		ID:         sessionID,
		AuthToken:  authToken,
		LoginTime:  now,
		OperatorID: operatorID,
		Domain:     domain,
		ExpiresAt:  now.Add(SessionDuration),
	}, status, nil
}

// timestampLayouts are tried in order when parsing server timestamps
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// status_cwu values: 1 means the patient was found, -1 means the PESEL number
// is stale (cancelled); anything else means not found.
const (
	statusFound = 1
	statusStale = -1
)

// parseCheckResponse extracts a structured eligibility result from a checkCWU
// response
func parseCheckResponse(body []byte, now time.Time) (*EligibilityResult, error) {
	root, err := parseDocument(body)
	if err != nil {
		return nil, newError(KindUnknown, "could not parse eligibility response: %s", err)
	}
	if err := parseFault(root); err != nil {
		return nil, err
	}
	payload := root.find(nsStatusCWU, "status_cwu_odp")
	if payload == nil {
		return nil, newError(KindUnknown, "eligibility response missing status_cwu_odp payload")
	}

	operationTime := now
	if t, ok := parseTimestamp(textOf(payload.find(nsStatusCWU, "data_czas_operacji"))); ok {
		operationTime = t
	}
	coarse, _ := strconv.Atoi(textOf(payload.find(nsStatusCWU, "status_cwu")))

	patient := PatientRecord{
		PESEL:     textOf(payload.find(nsStatusCWU, "numer_pesel")),
		FirstName: textOf(payload.find(nsStatusCWU, "imie")),
		LastName:  textOf(payload.find(nsStatusCWU, "nazwisko")),
	}
	switch coarse {
	case statusFound:
		if insured := payload.find(nsStatusCWU, "status_ubezp"); insured != nil {
			if flag, _ := strconv.Atoi(insured.trimmedText()); flag == 1 {
				patient.InsuranceState = InsuranceActive
			}
			patient.StatusSymbol = insured.attr("symbol")
		}
	case statusStale:
		patient.InsuranceState = InsuranceIDStale
	}
	if t, ok := parseTimestamp(textOf(payload.find(nsStatusCWU, "data_waznosci_potwierdzenia"))); ok {
		patient.ConfirmationExpiry = t
	}
	for _, el := range payload.findAllLocal("informacja_dodatkowa", nil) {
		n := Notice{
			Code:  el.attr("kod"),
			Level: el.attr("poziom"),
			Value: el.attr("wartosc"),
		}
		// some deployments report the notice fields as child elements rather
		// than attributes
		if n.Code == "" {
			n.Code = textOf(el.findLocal("kod"))
			n.Level = textOf(el.findLocal("poziom"))
			n.Value = textOf(el.findLocal("wartosc"))
		}
		if n.Code != "" || n.Value != "" {
			patient.Notices = append(patient.Notices, n)
		}
	}

	return &EligibilityResult{
		OperationID:   payload.attr("id_operacji"),
		OperationTime: operationTime,
		Patient:       patient,
		OperatorID:    textOf(payload.find(nsStatusCWU, "id_operatora")),
		Domain:        textOf(payload.find(nsStatusCWU, "id_ow")),
		ProviderID:    textOf(payload.find(nsStatusCWU, "id_swiad")),
		Valid:         patient.InsuranceState == InsuranceActive,
		Notes:         resultNotes(patient.InsuranceState, patient.Notices),
	}, nil
}
