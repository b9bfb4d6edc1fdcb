// Package saslpayload builds the signed JSON payload the broker expects
// for the AWS_MSK_IAM SASL mechanism (spec.md §4.E).
package saslpayload

import (
	"encoding/json"
	"time"

	"github.com/brightloop/mskiamauth/internal/awsv4"
)

const (
	service        = "kafka-cluster"
	version        = "2020_10_22"
	userAgent      = "librdkafka"
	action         = "kafka-cluster:Connect"
	signedHeaders  = "host"
	expiresSeconds = "900"
)

// Identity is the credential material needed to sign the payload; a
// minimal view of credstore.Credential so this package has no dependency
// on the store.
type Identity struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	SessionToken    string // empty unless STS-issued
}

// payload mirrors the exact field order spec.md §4.E specifies. Go's
// encoding/json marshals struct fields in declaration order, so this
// order is load-bearing.
type payload struct {
	Version          string `json:"version"`
	Host             string `json:"host"`
	UserAgent        string `json:"user-agent"`
	Action           string `json:"action"`
	Algorithm        string `json:"x-amz-algorithm"`
	Credential       string `json:"x-amz-credential"`
	Date             string `json:"x-amz-date"`
	SecurityToken    string `json:"x-amz-security-token,omitempty"`
	SignedHeaders    string `json:"x-amz-signedheaders"`
	Expires          string `json:"x-amz-expires"`
	Signature        string `json:"x-amz-signature"`
}

// Build signs a canonical GET request scoped to hostname and identity,
// then returns the marshaled JSON SASL payload, signed at the instant `at`.
func Build(identity Identity, hostname string, at time.Time) ([]byte, error) {
	ts := awsv4.NewTimestamp(at)
	credentialScope := awsv4.CredentialScope(ts, identity.Region, service)
	credential := identity.AccessKeyID + "/" + credentialScope

	params := []awsv4.QueryParam{
		{Key: "Action", Value: action},
		{Key: "X-Amz-Algorithm", Value: awsv4.Algorithm},
		{Key: "X-Amz-Credential", Value: credential},
		{Key: "X-Amz-Date", Value: ts.AmzDate()},
		{Key: "X-Amz-Expires", Value: expiresSeconds},
	}
	if identity.SessionToken != "" {
		params = append(params, awsv4.QueryParam{Key: "X-Amz-Security-Token", Value: identity.SessionToken})
	}
	params = append(params, awsv4.QueryParam{Key: "X-Amz-SignedHeaders", Value: signedHeaders})

	query := awsv4.CanonicalQueryString(params)
	canonicalHeaders, _ := awsv4.CanonicalHeaders([]awsv4.HeaderPair{{Name: "host", Value: hostname}})
	canonicalRequest := awsv4.CanonicalRequest("GET", query, canonicalHeaders, signedHeaders, nil)
	stringToSign := awsv4.StringToSign(ts, credentialScope, canonicalRequest)
	signature := awsv4.Sign(identity.SecretAccessKey, ts, identity.Region, service, stringToSign)

	p := payload{
		Version:       version,
		Host:          hostname,
		UserAgent:     userAgent,
		Action:        action,
		Algorithm:     awsv4.Algorithm,
		Credential:    credential,
		Date:          ts.AmzDate(),
		SecurityToken: identity.SessionToken, // raw, NOT uri-encoded (unlike the query string copy above)
		SignedHeaders: signedHeaders,
		Expires:       expiresSeconds,
		Signature:     signature,
	}

	return json.Marshal(p)
}
