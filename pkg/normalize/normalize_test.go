package normalize

import (
	"encoding/json"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hostscan/hostscan/pkg/record"
)

func strPtr(s string) *string { return &s }

func TestResolve_KnownCodes(t *testing.T) {
	tests := []struct {
		name  string
		table Table
		code  int
		want  string
	}{
		{"ssl3", Versions(), 0x0300, "SSL 3.0"},
		{"tls10", Versions(), 0x0301, "TLS 1.0"},
		{"tls11", Versions(), 0x0302, "TLS 1.1"},
		{"tls12", Versions(), 0x0303, "TLS 1.2"},
		{"tls13", Versions(), 0x0304, "TLS 1.3"},
		{"rc4", CipherSuites(), 0x0005, "TLS_RSA_WITH_RC4_128_SHA"},
		{"ecdhe rsa gcm", CipherSuites(), 0xc02f, "TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256"},
		{"ecdhe ecdsa chacha", CipherSuites(), 0xcca9, "TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305"},
		{"tls13 aes", CipherSuites(), 0x1301, "TLS_AES_128_GCM_SHA256"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.table.Resolve(tt.code))
		})
	}
}

func TestResolve_UnknownCodes(t *testing.T) {
	codes := []int{0, -1, -0x0303, 0x0299, 0x0305, 0xffff, math.MaxInt32, math.MinInt32}
	for _, code := range codes {
		require.Equal(t, Unknown, VersionName(code), "version code %#x", code)
		require.Equal(t, Unknown, CipherSuiteName(code), "cipher code %#x", code)
	}
}

func TestResolve_EveryCatalogEntry(t *testing.T) {
	require.Equal(t, 5, Versions().Len())
	require.Equal(t, 25, CipherSuites().Len())

	for _, table := range []Table{Versions(), CipherSuites()} {
		table.Each(func(code int, name string) {
			require.NotEmpty(t, name)
			require.NotEqual(t, Unknown, name)
			require.Equal(t, name, table.Resolve(code))
		})
	}
}

func TestNormalizeTLS_Absent(t *testing.T) {
	require.Nil(t, NormalizeTLS(nil))

	raw := record.RawResponse{RequestURL: "http://example.com/", Status: 200, Protocol: "HTTP/1.1"}
	before, err := json.Marshal(raw)
	require.NoError(t, err)

	resp := NormalizeResponse(raw)
	require.Nil(t, resp.TLS)

	after, err := json.Marshal(raw)
	require.NoError(t, err)
	require.Equal(t, before, after, "input must not be mutated")
}

func TestNormalizeTLS_Present(t *testing.T) {
	got := NormalizeTLS(&record.RawTLSInfo{
		HandshakeComplete:  true,
		NegotiatedProtocol: "h2",
		ServerName:         "example.com",
		Version:            0x0303,
		CipherSuite:        0xc02f,
	})

	require.Equal(t, &record.TLSInfo{
		HandshakeComplete:  true,
		NegotiatedProtocol: "h2",
		ServerName:         "example.com",
		Version:            "TLS 1.2",
		CipherSuite:        "TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256",
	}, got)
}

func TestNormalizeTLS_UnknownCodesDegrade(t *testing.T) {
	got := NormalizeTLS(&record.RawTLSInfo{Version: 0x7f1c, CipherSuite: 0x1337})
	require.Equal(t, Unknown, got.Version)
	require.Equal(t, Unknown, got.CipherSuite)
	require.False(t, got.HandshakeComplete)
}

func TestNormalizeTLS_ExactlyFiveFields(t *testing.T) {
	data, err := json.Marshal(NormalizeTLS(&record.RawTLSInfo{Version: 0x0303}))
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	require.Len(t, fields, 5)
	for _, key := range []string{"HandshakeComplete", "NegotiatedProtocol", "ServerName", "Version", "CipherSuite"} {
		require.Contains(t, fields, key)
	}
}

func TestNormalizeHeaders(t *testing.T) {
	got := NormalizeHeaders(map[string][]string{
		"A": {"1", "2"},
		"B": {"3"},
	})

	require.ElementsMatch(t, []record.HeaderEntry{
		{Name: "A", Value: []string{"1", "2"}},
		{Name: "B", Value: []string{"3"}},
	}, got)
}

func TestNormalizeHeaders_PreservesValueOrderAndEmptyLists(t *testing.T) {
	got := NormalizeHeaders(map[string][]string{
		"Set-Cookie": {"z=1", "a=2", "m=3"},
		"X-Empty":    {},
	})

	require.Len(t, got, 2)
	byName := map[string][]string{}
	for _, e := range got {
		byName[e.Name] = e.Value
	}
	require.Equal(t, []string{"z=1", "a=2", "m=3"}, byName["Set-Cookie"])
	require.Equal(t, []string{}, byName["X-Empty"])
}

func TestNormalizeHeaders_Empty(t *testing.T) {
	for _, in := range []map[string][]string{nil, {}} {
		got := NormalizeHeaders(in)
		require.NotNil(t, got)
		require.Empty(t, got)
	}
}

func TestNormalizeHeaders_DoesNotAliasInput(t *testing.T) {
	in := map[string][]string{"Server": {"nginx"}}
	got := NormalizeHeaders(in)
	got[0].Value[0] = "changed"
	require.Equal(t, "nginx", in["Server"][0])
}

func TestTransform_NoResponseLists(t *testing.T) {
	raw := record.RawRecord{
		HostMetadata: record.HostMetadata{
			AlexaDomain: strPtr("example.com"),
			Host:        "example.com",
			Error:       "dial tcp: i/o timeout",
		},
	}

	got := Transform(raw)
	require.Equal(t, raw.HostMetadata, got.HostMetadata)
	require.Nil(t, got.HTTPResponses)
	require.Nil(t, got.HTTPSResponses)
}

func TestTransform_EmptyListStaysPresent(t *testing.T) {
	got := Transform(record.RawRecord{HTTPResponses: []record.RawResponse{}})
	require.NotNil(t, got.HTTPResponses)
	require.Empty(t, got.HTTPResponses)
	require.Nil(t, got.HTTPSResponses)
}

func TestTransform_NormalizesEveryEntry(t *testing.T) {
	raw := record.RawRecord{
		HostMetadata: record.HostMetadata{Host: "example.com", HTTPOk: true, HTTPSOk: true},
		HTTPResponses: []record.RawResponse{
			{RequestURL: "http://example.com", Status: 301, Protocol: "HTTP/1.1", Headers: map[string][]string{"Location": {"https://example.com/"}}},
		},
		HTTPSResponses: []record.RawResponse{
			{
				RequestURL: "https://example.com/",
				Status:     200,
				Protocol:   "HTTP/2.0",
				Headers:    map[string][]string{"Server": {"nginx"}, "Vary": {"Accept", "Cookie"}},
				TLS:        &record.RawTLSInfo{HandshakeComplete: true, NegotiatedProtocol: "h2", ServerName: "example.com", Version: 0x0303, CipherSuite: 0xc02f},
			},
			{
				RequestURL: "https://example.com/en",
				Status:     200,
				Protocol:   "HTTP/2.0",
				TLS:        &record.RawTLSInfo{Version: 0x9999, CipherSuite: 0xc030},
			},
		},
	}

	got := Transform(raw)
	require.Equal(t, raw.ResponseCount(), got.ResponseCount())
	require.Len(t, got.HTTPResponses, 1)
	require.Len(t, got.HTTPSResponses, 2)

	require.Nil(t, got.HTTPResponses[0].TLS)
	require.Equal(t, []record.HeaderEntry{{Name: "Location", Value: []string{"https://example.com/"}}}, got.HTTPResponses[0].Headers)

	first := got.HTTPSResponses[0]
	require.Equal(t, "TLS 1.2", first.TLS.Version)
	require.Equal(t, "TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256", first.TLS.CipherSuite)
	require.ElementsMatch(t, []record.HeaderEntry{
		{Name: "Server", Value: []string{"nginx"}},
		{Name: "Vary", Value: []string{"Accept", "Cookie"}},
	}, first.Headers)

	second := got.HTTPSResponses[1]
	require.Equal(t, Unknown, second.TLS.Version)
	require.Equal(t, "TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384", second.TLS.CipherSuite)
	require.NotNil(t, second.Headers)
	require.Empty(t, second.Headers)

	st := Inspect(got)
	require.Equal(t, Stats{Responses: 3, WithTLS: 2, Headers: 3, UnknownVersions: 1}, st)
}

func TestTransform_ConcurrentUse(t *testing.T) {
	raw := record.RawRecord{
		HTTPSResponses: []record.RawResponse{
			{Headers: map[string][]string{"A": {"1"}}, TLS: &record.RawTLSInfo{Version: 0x0304, CipherSuite: 0x1302}},
		},
	}

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				got := Transform(raw)
				if got.HTTPSResponses[0].TLS.CipherSuite != "TLS_AES_256_GCM_SHA384" {
					t.Error("unexpected cipher suite name")
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestStats_Add(t *testing.T) {
	var total Stats
	total.Add(Stats{Responses: 2, WithTLS: 1, Headers: 4})
	total.Add(Stats{Responses: 1, UnknownCiphers: 1, UnknownVersions: 1})
	require.Equal(t, Stats{Responses: 3, WithTLS: 1, Headers: 4, UnknownVersions: 1, UnknownCiphers: 1}, total)
}
