package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Result is the outcome of a signature verification
type Result int

const (
	Invalid Result = iota
	Valid
	Malformed
)

func (r Result) String() string {
	switch r {
	case Valid:
		return "valid"
	case Malformed:
		return "malformed"
	default:
		return "invalid"
	}
}

const (
	keyTimestamp = "t"
	keyDigest    = "v1"

	// Timestamps above this are taken to be milliseconds
	millisecondThreshold = 1_000_000_000_000
)

// SignedPayload is the signature envelope carried in the signature header
type SignedPayload struct {
	Timestamp string
	Digests   []string
}

// ParseSignatureHeader parses a header of the form "t=<timestamp>,v1=<digest>".
// Both keys must be present and non-empty; unknown keys are ignored. The v1
// key may repeat while a secret is being rotated.
func ParseSignatureHeader(header string) (SignedPayload, error) {
	var payload SignedPayload

	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}

		switch strings.TrimSpace(key) {
		case keyTimestamp:
			payload.Timestamp = strings.TrimSpace(value)
		case keyDigest:
			if digest := strings.TrimSpace(value); digest != "" {
				payload.Digests = append(payload.Digests, digest)
			}
		}
	}

	if payload.Timestamp == "" || len(payload.Digests) == 0 {
		return SignedPayload{}, ErrMalformedSignature
	}

	return payload, nil
}

// ComputeSignature returns base64(HMAC-SHA256("<timestamp>.<body>", secret))
func ComputeSignature(timestamp string, body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks the signature header against the raw body. Any one
// matching v1 digest is enough.
func VerifySignature(body []byte, header, secret string) Result {
	payload, err := ParseSignatureHeader(header)
	if err != nil {
		return Malformed
	}

	expected := []byte(ComputeSignature(payload.Timestamp, body, secret))
	for _, digest := range payload.Digests {
		if hmac.Equal(expected, []byte(digest)) {
			return Valid
		}
	}

	return Invalid
}

// SignHeader builds a signature header for body, timestamped in milliseconds
func SignHeader(body []byte, secret string, at time.Time) string {
	timestamp := strconv.FormatInt(at.UnixMilli(), 10)
	return fmt.Sprintf("%s=%s,%s=%s", keyTimestamp, timestamp, keyDigest, ComputeSignature(timestamp, body, secret))
}

// ParseTimestamp interprets a signature timestamp as seconds or milliseconds
// since the epoch. Fractional seconds are accepted.
func ParseTimestamp(timestamp string) (time.Time, error) {
	if n, err := strconv.ParseInt(timestamp, 10, 64); err == nil {
		if n > millisecondThreshold {
			return time.UnixMilli(n), nil
		}
		return time.Unix(n, 0), nil
	}

	f, err := strconv.ParseFloat(timestamp, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid signature timestamp %q: %w", timestamp, err)
	}
	return time.UnixMilli(int64(f * 1000)), nil
}

// SignatureVerifier verifies signature headers with an optional timestamp tolerance
type SignatureVerifier struct {
	secret    string
	tolerance time.Duration
	now       func() time.Time
}

// NewSignatureVerifier creates a verifier. A zero tolerance disables the
// timestamp freshness check.
func NewSignatureVerifier(secret string, tolerance time.Duration) *SignatureVerifier {
	return &SignatureVerifier{
		secret:    secret,
		tolerance: tolerance,
		now:       time.Now,
	}
}

// Verify returns nil for a valid signature, otherwise one of
// ErrMissingCredentials, ErrMalformedSignature, ErrInvalidCredentials or
// ErrTimestampOutOfRange.
func (v *SignatureVerifier) Verify(body []byte, header string) error {
	if header == "" {
		return ErrMissingCredentials
	}

	switch VerifySignature(body, header, v.secret) {
	case Malformed:
		return ErrMalformedSignature
	case Invalid:
		return ErrInvalidCredentials
	}

	if v.tolerance <= 0 {
		return nil
	}

	// Parse cannot fail here, VerifySignature already accepted the header
	payload, _ := ParseSignatureHeader(header)
	signedAt, err := ParseTimestamp(payload.Timestamp)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedSignature, err)
	}

	age := v.now().Sub(signedAt)
	if age > v.tolerance || age < -v.tolerance {
		return ErrTimestampOutOfRange
	}

	return nil
}
