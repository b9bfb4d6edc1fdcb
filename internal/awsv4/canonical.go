package awsv4

import (
	"strings"
	"time"
)

const (
	// Algorithm is the literal SigV4 algorithm identifier.
	Algorithm = "AWS4-HMAC-SHA256"

	ymdFormat = "20060102"
	hmsFormat = "150405"
)

// Timestamp is the single instant a signing operation derives every
// date/time string from, so ymd, hms and AmzDate can never drift apart
// (spec.md §9's "a single time() call" concern).
type Timestamp struct {
	YMD string // YYYYMMDD
	HMS string // HHMMSS
}

// NewTimestamp captures t, converted to UTC, into a Timestamp.
func NewTimestamp(t time.Time) Timestamp {
	t = t.UTC()
	return Timestamp{YMD: t.Format(ymdFormat), HMS: t.Format(hmsFormat)}
}

// AmzDate returns the composed YYYYMMDDTHHMMSSZ form.
func (ts Timestamp) AmzDate() string {
	return ts.YMD + "T" + ts.HMS + "Z"
}

// CredentialScope returns "{ymd}/{region}/{service}/aws4_request".
func CredentialScope(ts Timestamp, region, service string) string {
	return ts.YMD + "/" + region + "/" + service + "/aws4_request"
}

// HeaderPair is one header name/value entry contributing to a canonical
// headers block. Name must already be lowercase.
type HeaderPair struct {
	Name  string
	Value string
}

// CanonicalHeaders renders headers (in the given order, which also
// determines SignedHeaders) as newline-terminated "name:value\n" lines,
// and returns the ';'-joined signed-headers list alongside it.
func CanonicalHeaders(headers []HeaderPair) (canonical string, signedHeaders string) {
	var sb strings.Builder
	names := make([]string, 0, len(headers))
	for _, h := range headers {
		sb.WriteString(h.Name)
		sb.WriteByte(':')
		sb.WriteString(strings.TrimSpace(h.Value))
		sb.WriteByte('\n')
		names = append(names, h.Name)
	}
	return sb.String(), strings.Join(names, ";")
}

// QueryParam is one key/value pair contributing to a canonical query
// string. The caller controls ordering; CanonicalQueryString does not
// sort (spec.md §4.B: ordering here is fixed by the producer per use
// site, not alphabetical).
type QueryParam struct {
	Key   string
	Value string
}

// CanonicalQueryString joins params as "key=uriEncode(value)" with '&',
// in the order given. Keys and the structural '&'/'=' are never encoded;
// only values are.
func CanonicalQueryString(params []QueryParam) string {
	parts := make([]string, 0, len(params))
	for _, p := range params {
		parts = append(parts, p.Key+"="+uriEncode(p.Value))
	}
	return strings.Join(parts, "&")
}

// CanonicalRequest builds the canonical request string. The canonical
// URI is always "/": this signing engine only ever signs requests to a
// bare-root path (STS's AssumeRole endpoint, and the synthetic SASL GET).
func CanonicalRequest(method, canonicalQueryString, canonicalHeaders, signedHeaders string, body []byte) string {
	return strings.Join([]string{
		method,
		"/",
		canonicalQueryString,
		canonicalHeaders,
		signedHeaders,
		sha256Hex(body),
	}, "\n")
}

// StringToSign builds the string-to-sign from an already-built canonical request.
func StringToSign(ts Timestamp, credentialScope, canonicalRequest string) string {
	return strings.Join([]string{
		Algorithm,
		ts.AmzDate(),
		credentialScope,
		sha256Hex([]byte(canonicalRequest)),
	}, "\n")
}
