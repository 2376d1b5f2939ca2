package normalize

import (
	"slices"
	"sort"

	"github.com/hostscan/hostscan/pkg/record"
)

// NormalizeTLS resolves the version and cipher suite codes of a handshake
// summary. A nil input means the response had no TLS and yields nil.
func NormalizeTLS(raw *record.RawTLSInfo) *record.TLSInfo {
	if raw == nil {
		return nil
	}
	return &record.TLSInfo{
		HandshakeComplete:  raw.HandshakeComplete,
		NegotiatedProtocol: raw.NegotiatedProtocol,
		ServerName:         raw.ServerName,
		Version:            versions.Resolve(raw.Version),
		CipherSuite:        cipherSuites.Resolve(raw.CipherSuite),
	}
}

// NormalizeHeaders flattens a header map into one entry per name. Values keep
// their original order. Entries are sorted by name so output is stable across
// runs; callers should not rely on that order.
func NormalizeHeaders(headers map[string][]string) []record.HeaderEntry {
	entries := make([]record.HeaderEntry, 0, len(headers))
	for name, values := range headers {
		entries = append(entries, record.HeaderEntry{
			Name:  name,
			Value: slices.Clone(values),
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})
	return entries
}

// NormalizeResponse applies the header and TLS normalizers to one response.
func NormalizeResponse(raw record.RawResponse) record.Response {
	return record.Response{
		RequestURL: raw.RequestURL,
		Status:     raw.Status,
		Protocol:   raw.Protocol,
		Headers:    NormalizeHeaders(raw.Headers),
		TLS:        NormalizeTLS(raw.TLS),
	}
}

// Transform normalizes every response of a raw record and returns exactly one
// record. Absent response lists stay absent; an empty list stays empty.
func Transform(raw record.RawRecord) record.Record {
	return record.Record{
		HostMetadata:   raw.HostMetadata,
		HTTPResponses:  normalizeList(raw.HTTPResponses),
		HTTPSResponses: normalizeList(raw.HTTPSResponses),
	}
}

func normalizeList(raw []record.RawResponse) []record.Response {
	if raw == nil {
		return nil
	}
	out := make([]record.Response, len(raw))
	for i, resp := range raw {
		out[i] = NormalizeResponse(resp)
	}
	return out
}

// Stats describes what normalization produced for one record.
type Stats struct {
	Responses       int
	WithTLS         int
	Headers         int
	UnknownVersions int
	UnknownCiphers  int
}

// Add accumulates other into s.
func (s *Stats) Add(other Stats) {
	s.Responses += other.Responses
	s.WithTLS += other.WithTLS
	s.Headers += other.Headers
	s.UnknownVersions += other.UnknownVersions
	s.UnknownCiphers += other.UnknownCiphers
}

// Inspect counts responses, header entries and unresolved TLS codes in a
// normalized record.
func Inspect(rec record.Record) Stats {
	var st Stats
	rec.Responses(func(_ string, _ int, resp record.Response) {
		st.Responses++
		st.Headers += len(resp.Headers)
		if resp.TLS == nil {
			return
		}
		st.WithTLS++
		if resp.TLS.Version == Unknown {
			st.UnknownVersions++
		}
		if resp.TLS.CipherSuite == Unknown {
			st.UnknownCiphers++
		}
	})
	return st
}
