package sts

import (
	"encoding/xml"
	"fmt"
	"sync"
	"time"

	"github.com/brightloop/mskiamauth/internal/apperrors"
)

// xmlParseMutex serializes access to the XML parser, modeling the
// non-reentrant-library constraint spec.md §4.D/§9 calls out: a single
// process-wide mutex initialized once, guarding every parse regardless
// of which goroutine (always the refresh scheduler's single goroutine
// in practice, but the guard is defensive) calls in.
var xmlParseMutex sync.Mutex

// errorResponse matches STS's <ErrorResponse><Error><Message>...
type errorResponse struct {
	XMLName xml.Name `xml:"ErrorResponse"`
	Error   struct {
		Message string `xml:"Message"`
	} `xml:"Error"`
}

// assumeRoleResponse matches the AssumeRole success document.
type assumeRoleResponse struct {
	XMLName xml.Name `xml:"AssumeRoleResponse"`
	Result  struct {
		Credentials struct {
			AccessKeyID     string `xml:"AccessKeyId"`
			SecretAccessKey string `xml:"SecretAccessKey"`
			SessionToken    string `xml:"SessionToken"`
			Expiration      string `xml:"Expiration"`
		} `xml:"Credentials"`
	} `xml:"AssumeRoleResult"`
}

// Result is the parsed, validated AssumeRole credential tuple.
type Result struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	ExpiresAtUnixMs int64
}

// expirationLayouts covers the ISO-8601 forms STS uses for Expiration,
// with and without fractional seconds.
var expirationLayouts = []string{
	"2006-01-02T15:04:05.999Z",
	"2006-01-02T15:04:05Z",
}

func parseExpiration(s string) (int64, error) {
	var firstErr error
	for _, layout := range expirationLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.UTC().UnixMilli(), nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return 0, fmt.Errorf("unparseable Expiration %q: %w", s, firstErr)
}

// parseResponse parses an AssumeRole HTTP response body. If the root
// element is ErrorResponse, it returns a wrapped ErrStsProtocol carrying
// Error/Message. Missing required fields never produce a partial Result
// (spec.md §4.D: "do NOT install a partial credential").
func parseResponse(body []byte) (*Result, error) {
	xmlParseMutex.Lock()
	defer xmlParseMutex.Unlock()

	var probe struct {
		XMLName xml.Name
	}
	if err := xml.Unmarshal(body, &probe); err != nil {
		return nil, fmt.Errorf("%w: malformed XML: %v", apperrors.ErrStsProtocol, err)
	}

	if probe.XMLName.Local == "ErrorResponse" {
		var errResp errorResponse
		if err := xml.Unmarshal(body, &errResp); err != nil {
			return nil, fmt.Errorf("%w: malformed ErrorResponse: %v", apperrors.ErrStsProtocol, err)
		}
		msg := errResp.Error.Message
		if msg == "" {
			msg = "STS returned an error response with no message"
		}
		return nil, fmt.Errorf("%w: %s", apperrors.ErrStsProtocol, msg)
	}

	var resp assumeRoleResponse
	if err := xml.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: malformed AssumeRoleResponse: %v", apperrors.ErrStsProtocol, err)
	}

	creds := resp.Result.Credentials
	if creds.AccessKeyID == "" || creds.SecretAccessKey == "" || creds.Expiration == "" {
		return nil, fmt.Errorf("%w: AssumeRoleResponse missing required credential fields", apperrors.ErrStsProtocol)
	}

	expiresAtMs, err := parseExpiration(creds.Expiration)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrStsProtocol, err)
	}

	return &Result{
		AccessKeyID:     creds.AccessKeyID,
		SecretAccessKey: creds.SecretAccessKey,
		SessionToken:    creds.SessionToken,
		ExpiresAtUnixMs: expiresAtMs,
	}, nil
}
