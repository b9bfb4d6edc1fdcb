package sts

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/brightloop/mskiamauth/internal/awsv4"
)

const (
	stsService      = "sts"
	stsVersion      = "2011-06-15"
	stsAction       = "AssumeRole"
	contentType     = "application/x-www-form-urlencoded; charset=utf-8"
	userAgentHeader = "librdkafka"
)

// Config is the subset of aws.* options the STS client needs (spec.md §4.D).
type Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string

	RoleARN         string
	RoleSessionName string
	ExternalID      string // optional
	DurationSec     int

	// Endpoint overrides the STS host; defaults to "sts.amazonaws.com".
	Endpoint string
}

func (c Config) endpoint() string {
	if c.Endpoint != "" {
		return c.Endpoint
	}
	return "sts.amazonaws.com"
}

// buildBody composes the AssumeRole request body in the exact field
// order spec.md §4.D requires. RoleSessionName is intentionally NOT
// URI-encoded here, matching the documented (possibly buggy) source
// behavior spec.md §9 preserves for compatibility.
func buildBody(cfg Config) string {
	var sb strings.Builder
	sb.WriteString("Action=")
	sb.WriteString(stsAction)
	sb.WriteString("&DurationSeconds=")
	sb.WriteString(strconv.Itoa(cfg.DurationSec))
	sb.WriteString("&RoleArn=")
	sb.WriteString(awsv4.URIEncode(cfg.RoleARN))
	sb.WriteString("&RoleSessionName=")
	sb.WriteString(cfg.RoleSessionName)
	if cfg.ExternalID != "" {
		sb.WriteString("&ExternalId=")
		sb.WriteString(awsv4.URIEncode(cfg.ExternalID))
	}
	sb.WriteString("&Version=")
	sb.WriteString(stsVersion)
	return sb.String()
}

// signedRequest holds everything needed to place the AssumeRole request
// on the wire: the body, and every header (signed and unsigned).
type signedRequest struct {
	host    string
	body    string
	headers map[string]string
}

// buildSignedRequest performs the full B+C canonicalization/signing
// pipeline for the STS POST described in spec.md §4.D.
func buildSignedRequest(cfg Config, ts awsv4.Timestamp) signedRequest {
	host := cfg.endpoint()
	body := buildBody(cfg)
	amzDate := ts.AmzDate()

	canonicalHeaders, signedHeaders := awsv4.CanonicalHeaders([]awsv4.HeaderPair{
		{Name: "content-length", Value: strconv.Itoa(len(body))},
		{Name: "content-type", Value: contentType},
		{Name: "host", Value: host},
		{Name: "x-amz-date", Value: amzDate},
	})

	canonicalRequest := awsv4.CanonicalRequest("POST", "", canonicalHeaders, signedHeaders, []byte(body))
	credentialScope := awsv4.CredentialScope(ts, cfg.Region, stsService)
	stringToSign := awsv4.StringToSign(ts, credentialScope, canonicalRequest)
	signature := awsv4.Sign(cfg.SecretAccessKey, ts, cfg.Region, stsService, stringToSign)
	authHeader := awsv4.AuthorizationHeader(cfg.AccessKeyID, credentialScope, signedHeaders, signature)

	return signedRequest{
		host: host,
		body: body,
		headers: map[string]string{
			"Host":            host,
			"User-Agent":      userAgentHeader,
			"Content-Length":  strconv.Itoa(len(body)),
			"Content-Type":    contentType,
			"Authorization":   authHeader,
			"X-Amz-Date":      amzDate,
			"Accept-Encoding": "gzip",
		},
	}
}

// validate checks the subset of config rules the STS client itself
// depends on (duration must be positive, role identity required).
func (c Config) validate() error {
	if c.RoleARN == "" {
		return fmt.Errorf("sts: role_arn is required")
	}
	if c.RoleSessionName == "" {
		return fmt.Errorf("sts: role_session_name is required")
	}
	if c.DurationSec <= 0 {
		return fmt.Errorf("sts: duration_sec must be positive")
	}
	return nil
}
