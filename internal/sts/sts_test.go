package sts

import (
	"errors"
	"testing"

	"github.com/brightloop/mskiamauth/internal/apperrors"
	"github.com/brightloop/mskiamauth/internal/awsv4"
)

// Scenario 5 (spec.md §8): AssumeRole request signature and Authorization header.
func TestBuildSignedRequest_Scenario(t *testing.T) {
	cfg := Config{
		AccessKeyID:     "TESTKEY",
		SecretAccessKey: "TESTSECRET",
		Region:          "us-east-1",
		RoleARN:         "arn:aws:iam::789750736714:role/Identity_Account_Access_Role",
		RoleSessionName: "librdkafka_session",
		DurationSec:     900,
	}
	ts := awsv4.Timestamp{YMD: "20210910", HMS: "190714"}

	signed := buildSignedRequest(cfg, ts)

	credentialScope := "20210910/us-east-1/sts/aws4_request"
	wantSignedHeaders := "content-length;content-type;host;x-amz-date"
	wantAuth := "AWS4-HMAC-SHA256 Credential=TESTKEY/" + credentialScope +
		", SignedHeaders=" + wantSignedHeaders +
		", Signature=a825a6136b83c3feb7993b9d2947f6e479901f805089b08f717c0f2a03cd98f0"

	if signed.headers["Authorization"] != wantAuth {
		t.Fatalf("Authorization = %q, want %q", signed.headers["Authorization"], wantAuth)
	}
}

func TestBuildBody_PreservesUnencodedRoleSessionName(t *testing.T) {
	cfg := Config{
		RoleARN:         "arn:aws:iam::123:role/name with space",
		RoleSessionName: "session with space",
		DurationSec:     900,
	}
	body := buildBody(cfg)

	if !containsUnencoded(body, "RoleSessionName=session with space") {
		t.Fatalf("body = %q, want unencoded RoleSessionName", body)
	}
	if !containsUnencoded(body, "RoleArn=arn%3Aaws%3Aiam%3A%3A123%3Arole%2Fname%20with%20space") {
		t.Fatalf("body = %q, want URI-encoded RoleArn", body)
	}
}

func containsUnencoded(haystack, needle string) bool {
	return len(haystack) >= len(needle) && indexOf(haystack, needle) >= 0
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}

func TestParseResponse_Success(t *testing.T) {
	body := []byte(`<AssumeRoleResponse>
  <AssumeRoleResult>
    <Credentials>
      <AccessKeyId>AKIDEXAMPLE</AccessKeyId>
      <SecretAccessKey>secret</SecretAccessKey>
      <SessionToken>token</SessionToken>
      <Expiration>2021-09-10T20:17:14Z</Expiration>
    </Credentials>
  </AssumeRoleResult>
</AssumeRoleResponse>`)

	result, err := parseResponse(body)
	if err != nil {
		t.Fatalf("parseResponse() error = %v", err)
	}
	if result.AccessKeyID != "AKIDEXAMPLE" || result.SecretAccessKey != "secret" || result.SessionToken != "token" {
		t.Fatalf("parseResponse() = %+v", result)
	}
	if result.ExpiresAtUnixMs <= 0 {
		t.Fatalf("ExpiresAtUnixMs = %d, want positive", result.ExpiresAtUnixMs)
	}
}

func TestParseResponse_ErrorResponse(t *testing.T) {
	body := []byte(`<ErrorResponse><Error><Message>Access denied</Message></Error></ErrorResponse>`)

	_, err := parseResponse(body)
	if !errors.Is(err, apperrors.ErrStsProtocol) {
		t.Fatalf("parseResponse() error = %v, want ErrStsProtocol", err)
	}
}

func TestParseResponse_MissingFieldsRejected(t *testing.T) {
	body := []byte(`<AssumeRoleResponse><AssumeRoleResult><Credentials>
    <AccessKeyId>AKIDEXAMPLE</AccessKeyId>
  </Credentials></AssumeRoleResult></AssumeRoleResponse>`)

	result, err := parseResponse(body)
	if err == nil {
		t.Fatalf("parseResponse() error = nil, want error for missing fields")
	}
	if result != nil {
		t.Fatalf("parseResponse() returned a partial result: %+v", result)
	}
}
