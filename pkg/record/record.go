// Package record defines the typed shapes of a host scan record, both as it
// arrives from the scanner (raw) and as it is loaded into the warehouse
// (normalized).
//
// JSON field names follow the scanner's wire format, so a RawRecord
// round-trips the scanner output and a Record matches the warehouse schema
// built by package schema.
package record

// HostMetadata holds the per-host fields shared by raw and normalized records.
//
// The Alexa_* and DMOZ_* fields come from the metadata join and may be absent,
// hence the pointers. Scanner fields are always present.
type HostMetadata struct {
	AlexaRank       *int64   `json:"Alexa_rank"`
	AlexaDomain     *string  `json:"Alexa_domain"`
	DMOZTitle       *string  `json:"DMOZ_title"`
	DMOZDescription *string  `json:"DMOZ_description"`
	DMOZURL         *string  `json:"DMOZ_url"`
	DMOZTopic       []string `json:"DMOZ_topic"`

	Host          string `json:"Host"`
	FinalLocation string `json:"FinalLocation"`
	HTTPOk        bool   `json:"HTTPOk"`
	HTTPSOk       bool   `json:"HTTPSOk"`
	HTTPSOnly     bool   `json:"HTTPSOnly"`
	Error         string `json:"Error"`
}

// RawTLSInfo is the handshake summary as serialized by the scanner. Version
// and CipherSuite are the numeric registry codes.
type RawTLSInfo struct {
	HandshakeComplete  bool   `json:"HandshakeComplete"`
	NegotiatedProtocol string `json:"NegotiatedProtocol"`
	ServerName         string `json:"ServerName"`
	Version            int    `json:"Version"`
	CipherSuite        int    `json:"CipherSuite"`
}

// TLSInfo is the normalized handshake summary with codes resolved to names.
type TLSInfo struct {
	HandshakeComplete  bool   `json:"HandshakeComplete"`
	NegotiatedProtocol string `json:"NegotiatedProtocol"`
	ServerName         string `json:"ServerName"`
	Version            string `json:"Version"`
	CipherSuite        string `json:"CipherSuite"`
}

// HeaderEntry is one header name with all of its values, in received order.
type HeaderEntry struct {
	Name  string   `json:"Name"`
	Value []string `json:"Value"`
}

// RawResponse is one observed HTTP(S) response before normalization.
// A nil TLS means the response was not served over TLS.
type RawResponse struct {
	RequestURL string              `json:"RequestURL"`
	Status     int                 `json:"Status"`
	Protocol   string              `json:"Protocol"`
	Headers    map[string][]string `json:"Headers"`
	TLS        *RawTLSInfo         `json:"TLS"`
}

// Response is one observed HTTP(S) response after normalization.
type Response struct {
	RequestURL string        `json:"RequestURL"`
	Status     int           `json:"Status"`
	Protocol   string        `json:"Protocol"`
	Headers    []HeaderEntry `json:"Headers"`
	TLS        *TLSInfo      `json:"TLS"`
}

// RawRecord is one host scan result as produced by the scanner.
// A nil response list means the list was absent or null in the input.
type RawRecord struct {
	HostMetadata
	HTTPResponses  []RawResponse `json:"HTTPResponses"`
	HTTPSResponses []RawResponse `json:"HTTPSResponses"`
}

// ResponseCount returns the number of responses across both lists.
func (r RawRecord) ResponseCount() int {
	return len(r.HTTPResponses) + len(r.HTTPSResponses)
}

// Record is one normalized host scan result, ready for the warehouse.
type Record struct {
	HostMetadata
	HTTPResponses  []Response `json:"HTTPResponses"`
	HTTPSResponses []Response `json:"HTTPSResponses"`
}

// ResponseCount returns the number of responses across both lists.
func (r Record) ResponseCount() int {
	return len(r.HTTPResponses) + len(r.HTTPSResponses)
}

// Responses calls fn for every response of both lists, HTTP first.
func (r Record) Responses(fn func(list string, idx int, resp Response)) {
	for i, resp := range r.HTTPResponses {
		fn(FieldHTTPResponses, i, resp)
	}
	for i, resp := range r.HTTPSResponses {
		fn(FieldHTTPSResponses, i, resp)
	}
}

// Wire names of the two response lists.
const (
	FieldHTTPResponses  = "HTTPResponses"
	FieldHTTPSResponses = "HTTPSResponses"
)
