package awsv4

import "encoding/hex"

// DeriveSigningKey walks the date -> region -> service -> "aws4_request"
// nested HMAC chain described in spec.md §4.C. secretAccessKey is raw
// (not hex); "AWS4" + secretAccessKey is a plain UTF-8 byte concatenation.
func DeriveSigningKey(secretAccessKey string, ts Timestamp, region, service string) []byte {
	kDate := hmacSHA256([]byte("AWS4"+secretAccessKey), []byte(ts.YMD))
	kRegion := hmacSHA256(kDate, []byte(region))
	kService := hmacSHA256(kRegion, []byte(service))
	return hmacSHA256(kService, []byte("aws4_request"))
}

// Signature signs stringToSign with the derived signing key, returning a
// 64-character lowercase hex signature.
func Signature(signingKey []byte, stringToSign string) string {
	sig := hmacSHA256(signingKey, []byte(stringToSign))
	return hex.EncodeToString(sig)
}

// Sign is the convenience composition of DeriveSigningKey + Signature for
// a one-shot signing operation; it derives the signing key afresh on
// every call.
func Sign(secretAccessKey string, ts Timestamp, region, service, stringToSign string) string {
	key := DeriveSigningKey(secretAccessKey, ts, region, service)
	return Signature(key, stringToSign)
}

// AuthorizationHeader builds the Authorization header value per spec.md §4.C.
func AuthorizationHeader(accessKeyID, credentialScope, signedHeaders, signature string) string {
	return Algorithm + " Credential=" + accessKeyID + "/" + credentialScope +
		", SignedHeaders=" + signedHeaders + ", Signature=" + signature
}
