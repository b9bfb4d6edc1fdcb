// sigv4debug signs either an STS AssumeRole request or a SASL
// kafka-cluster:Connect payload from flags and prints the result to
// stderr without performing the network call: in sts mode the body,
// canonical request, string-to-sign, signature and Authorization header;
// in sasl mode only the signed JSON payload. Useful for comparing output against the literal
// scenarios in spec.md §8. Modeled on the teacher's cmd/s3curl.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/brightloop/mskiamauth/internal/awsv4"
	"github.com/brightloop/mskiamauth/internal/saslpayload"
)

func main() {
	mode := flag.String("mode", "sasl", "What to sign: sasl or sts")
	accessKey := flag.String("access-key", os.Getenv("AWS_ACCESS_KEY_ID"), "AWS access key ID")
	secretKey := flag.String("secret-key", os.Getenv("AWS_SECRET_ACCESS_KEY"), "AWS secret access key")
	sessionToken := flag.String("session-token", os.Getenv("AWS_SESSION_TOKEN"), "optional AWS session token")
	region := flag.String("region", "us-east-1", "AWS region")
	hostname := flag.String("hostname", "", "broker hostname to authenticate against (sasl mode)")
	roleARN := flag.String("role-arn", "", "role ARN to assume (sts mode)")
	sessionName := flag.String("session-name", "", "role session name (sts mode)")
	externalID := flag.String("external-id", "", "optional external ID (sts mode)")
	durationSec := flag.Int("duration-sec", 900, "requested credential duration in seconds (sts mode)")
	ts := flag.String("timestamp", "", "override signing instant as RFC3339 (default: now); use for reproducing spec.md §8 scenarios")
	flag.Parse()

	if *accessKey == "" || *secretKey == "" {
		fmt.Fprintln(os.Stderr, "Usage: sigv4debug -mode sasl|sts -access-key KEY -secret-key SECRET [flags]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	at := time.Now()
	if *ts != "" {
		parsed, err := time.Parse(time.RFC3339, *ts)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid -timestamp: %v\n", err)
			os.Exit(1)
		}
		at = parsed
	}

	switch *mode {
	case "sasl":
		if *hostname == "" {
			fmt.Fprintln(os.Stderr, "sasl mode requires -hostname")
			os.Exit(1)
		}
		identity := saslpayload.Identity{
			AccessKeyID:     *accessKey,
			SecretAccessKey: *secretKey,
			Region:          *region,
			SessionToken:    *sessionToken,
		}
		payload, err := saslpayload.Build(identity, *hostname, at)
		if err != nil {
			fmt.Fprintf(os.Stderr, "signing failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "SASL payload:\n%s\n", payload)

	case "sts":
		if *roleARN == "" || *sessionName == "" {
			fmt.Fprintln(os.Stderr, "sts mode requires -role-arn and -session-name")
			os.Exit(1)
		}
		printSTSDebug(*accessKey, *secretKey, *region, *roleARN, *sessionName, *externalID, *durationSec, at)

	default:
		fmt.Fprintf(os.Stderr, "unknown -mode %q (want sasl or sts)\n", *mode)
		os.Exit(1)
	}
}

// printSTSDebug recomputes the same canonicalization internal/sts/request.go
// performs, without its unexported helpers, so the debug CLI stays a
// thin diagnostic surface rather than a second implementation of §4.D.
func printSTSDebug(accessKey, secretKey, region, roleARN, sessionName, externalID string, durationSec int, at time.Time) {
	const (
		service     = "sts"
		action      = "AssumeRole"
		version     = "2011-06-15"
		contentType = "application/x-www-form-urlencoded; charset=utf-8"
	)

	ts := awsv4.NewTimestamp(at)

	body := "Action=" + action + "&DurationSeconds=" + strconv.Itoa(durationSec) +
		"&RoleArn=" + awsv4.URIEncode(roleARN) + "&RoleSessionName=" + sessionName
	if externalID != "" {
		body += "&ExternalId=" + awsv4.URIEncode(externalID)
	}
	body += "&Version=" + version

	canonicalHeaders, signedHeaders := awsv4.CanonicalHeaders([]awsv4.HeaderPair{
		{Name: "content-length", Value: strconv.Itoa(len(body))},
		{Name: "content-type", Value: contentType},
		{Name: "host", Value: "sts.amazonaws.com"},
		{Name: "x-amz-date", Value: ts.AmzDate()},
	})

	canonicalRequest := awsv4.CanonicalRequest("POST", "", canonicalHeaders, signedHeaders, []byte(body))
	credentialScope := awsv4.CredentialScope(ts, region, service)
	stringToSign := awsv4.StringToSign(ts, credentialScope, canonicalRequest)
	signature := awsv4.Sign(secretKey, ts, region, service, stringToSign)
	authHeader := awsv4.AuthorizationHeader(accessKey, credentialScope, signedHeaders, signature)

	fmt.Fprintf(os.Stderr, "Body:\n%s\n\n", body)
	fmt.Fprintf(os.Stderr, "Canonical request:\n%s\n\n", canonicalRequest)
	fmt.Fprintf(os.Stderr, "String to sign:\n%s\n\n", stringToSign)
	fmt.Fprintf(os.Stderr, "Signature: %s\n", signature)
	fmt.Fprintf(os.Stderr, "Authorization: %s\n", authHeader)
}
