// Package normalize turns raw scanner records into their warehouse shape.
//
// Everything here is pure: the lookup tables are built at package init and
// never written again, and the normalizers allocate fresh output without
// touching their input. All functions are safe for concurrent use.
package normalize

// Unknown is returned for protocol version or cipher suite codes that are not
// in the catalog.
const Unknown = "unknown"

// Table maps a numeric registry code to its canonical name.
type Table struct {
	names map[int]string
}

// Resolve returns the catalog name for code, or Unknown.
func (t Table) Resolve(code int) string {
	if name, ok := t.names[code]; ok {
		return name
	}
	return Unknown
}

// Len returns the number of catalog entries.
func (t Table) Len() int {
	return len(t.names)
}

// Each calls fn for every catalog entry, in no particular order.
func (t Table) Each(fn func(code int, name string)) {
	for code, name := range t.names {
		fn(code, name)
	}
}

// TLS protocol versions, as in crypto/tls.
var versions = Table{names: map[int]string{
	0x0300: "SSL 3.0",
	0x0301: "TLS 1.0",
	0x0302: "TLS 1.1",
	0x0303: "TLS 1.2",
	0x0304: "TLS 1.3",
}}

// Cipher suites negotiated by the Go scanner, named as crypto/tls named them
// when the scan data was produced.
var cipherSuites = Table{names: map[int]string{
	0x0005: "TLS_RSA_WITH_RC4_128_SHA",
	0x000a: "TLS_RSA_WITH_3DES_EDE_CBC_SHA",
	0x002f: "TLS_RSA_WITH_AES_128_CBC_SHA",
	0x0035: "TLS_RSA_WITH_AES_256_CBC_SHA",
	0x003c: "TLS_RSA_WITH_AES_128_CBC_SHA256",
	0x009c: "TLS_RSA_WITH_AES_128_GCM_SHA256",
	0x009d: "TLS_RSA_WITH_AES_256_GCM_SHA384",
	0xc007: "TLS_ECDHE_ECDSA_WITH_RC4_128_SHA",
	0xc009: "TLS_ECDHE_ECDSA_WITH_AES_128_CBC_SHA",
	0xc00a: "TLS_ECDHE_ECDSA_WITH_AES_256_CBC_SHA",
	0xc011: "TLS_ECDHE_RSA_WITH_RC4_128_SHA",
	0xc012: "TLS_ECDHE_RSA_WITH_3DES_EDE_CBC_SHA",
	0xc013: "TLS_ECDHE_RSA_WITH_AES_128_CBC_SHA",
	0xc014: "TLS_ECDHE_RSA_WITH_AES_256_CBC_SHA",
	0xc023: "TLS_ECDHE_ECDSA_WITH_AES_128_CBC_SHA256",
	0xc027: "TLS_ECDHE_RSA_WITH_AES_128_CBC_SHA256",
	0xc02f: "TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256",
	0xc02b: "TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256",
	0xc030: "TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384",
	0xc02c: "TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384",
	0xcca8: "TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305",
	0xcca9: "TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305",

	// TLS 1.3
	0x1301: "TLS_AES_128_GCM_SHA256",
	0x1302: "TLS_AES_256_GCM_SHA384",
	0x1303: "TLS_CHACHA20_POLY1305_SHA256",
}}

// Versions returns the protocol version table.
func Versions() Table { return versions }

// CipherSuites returns the cipher suite table.
func CipherSuites() Table { return cipherSuites }

// VersionName resolves a protocol version code.
func VersionName(code int) string { return versions.Resolve(code) }

// CipherSuiteName resolves a cipher suite code.
func CipherSuiteName(code int) string { return cipherSuites.Resolve(code) }
