package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// referenceSignature is an independent HMAC-SHA256 over "<t>.<body>"
func referenceSignature(timestamp string, body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp + "." + string(body)))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestComputeSignature_MatchesReference(t *testing.T) {
	tests := []struct {
		name      string
		timestamp string
		body      []byte
		secret    string
	}{
		{name: "post event", timestamp: "1700000000000", body: []byte(`{"_type":"post"}`), secret: "s3cr3t"},
		{name: "empty body", timestamp: "1700000000", body: []byte{}, secret: "s3cr3t"},
		{name: "unicode body", timestamp: "1", body: []byte(`{"title":"héllo ✓"}`), secret: "k"},
		{name: "whitespace preserved", timestamp: "42", body: []byte("{ \"_type\" : \"post\" }\n"), secret: "another-secret"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeSignature(tt.timestamp, tt.body, tt.secret)
			want := referenceSignature(tt.timestamp, tt.body, tt.secret)
			if got != want {
				t.Errorf("ComputeSignature() = %s, want %s", got, want)
			}
		})
	}
}

func TestParseSignatureHeader(t *testing.T) {
	tests := []struct {
		name          string
		header        string
		wantTimestamp string
		wantDigests   []string
		wantErr       bool
	}{
		{
			name:          "canonical header",
			header:        "t=1700000000000,v1=abc123==",
			wantTimestamp: "1700000000000",
			wantDigests:   []string{"abc123=="},
		},
		{
			name:          "whitespace around pairs",
			header:        " t=1 , v1=xyz ",
			wantTimestamp: "1",
			wantDigests:   []string{"xyz"},
		},
		{
			name:          "unknown keys ignored",
			header:        "t=1,v0=old,v1=new",
			wantTimestamp: "1",
			wantDigests:   []string{"new"},
		},
		{
			name:          "repeated digest during rotation",
			header:        "t=1,v1=old,v1=new",
			wantTimestamp: "1",
			wantDigests:   []string{"old", "new"},
		},
		{
			name:          "empty digest alongside a set one",
			header:        "t=1,v1=,v1=new",
			wantTimestamp: "1",
			wantDigests:   []string{"new"},
		},
		{name: "missing timestamp", header: "v1=abc", wantErr: true},
		{name: "missing digest", header: "t=1700000000", wantErr: true},
		{name: "empty digest", header: "t=1,v1=", wantErr: true},
		{name: "empty header", header: "", wantErr: true},
		{name: "garbage", header: "not-a-signature", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSignatureHeader(tt.header)

			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSignatureHeader() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, ErrMalformedSignature) {
					t.Errorf("ParseSignatureHeader() error = %v, want ErrMalformedSignature", err)
				}
				return
			}

			if got.Timestamp != tt.wantTimestamp {
				t.Errorf("Timestamp = %s, want %s", got.Timestamp, tt.wantTimestamp)
			}
			if diff := cmp.Diff(tt.wantDigests, got.Digests); diff != "" {
				t.Errorf("Digests mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestVerifySignature(t *testing.T) {
	secret := "test-secret"
	body := []byte(`{"_type":"post","slug":{"current":"hello"}}`)
	timestamp := "1700000000000"
	digest := referenceSignature(timestamp, body, secret)

	tests := []struct {
		name   string
		body   []byte
		header string
		secret string
		want   Result
	}{
		{name: "valid", body: body, header: "t=" + timestamp + ",v1=" + digest, secret: secret, want: Valid},
		{name: "wrong secret", body: body, header: "t=" + timestamp + ",v1=" + digest, secret: "other", want: Invalid},
		{name: "tampered body", body: []byte(`{"_type":"settings"}`), header: "t=" + timestamp + ",v1=" + digest, secret: secret, want: Invalid},
		{name: "tampered timestamp", body: body, header: "t=1700000000001,v1=" + digest, secret: secret, want: Invalid},
		{name: "stale digest before current", body: body, header: "t=" + timestamp + ",v1=stale,v1=" + digest, secret: secret, want: Valid},
		{name: "current digest before stale", body: body, header: "t=" + timestamp + ",v1=" + digest + ",v1=stale", secret: secret, want: Valid},
		{name: "only stale digests", body: body, header: "t=" + timestamp + ",v1=stale,v1=older", secret: secret, want: Invalid},
		{name: "missing t", body: body, header: "v1=" + digest, secret: secret, want: Malformed},
		{name: "missing v1", body: body, header: "t=" + timestamp, secret: secret, want: Malformed},
		{name: "empty header", body: body, header: "", secret: secret, want: Malformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := VerifySignature(tt.body, tt.header, tt.secret); got != tt.want {
				t.Errorf("VerifySignature() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSignHeader_RoundTrip(t *testing.T) {
	body := []byte(`{"_type":"author"}`)
	at := time.UnixMilli(1700000000123)

	header := SignHeader(body, "secret", at)

	payload, err := ParseSignatureHeader(header)
	if err != nil {
		t.Fatalf("ParseSignatureHeader() failed: %v", err)
	}
	if payload.Timestamp != strconv.FormatInt(at.UnixMilli(), 10) {
		t.Errorf("Timestamp = %s, want %d", payload.Timestamp, at.UnixMilli())
	}
	if got := VerifySignature(body, header, "secret"); got != Valid {
		t.Errorf("VerifySignature() = %v, want valid", got)
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name      string
		timestamp string
		want      time.Time
		wantErr   bool
	}{
		{name: "seconds", timestamp: "1700000000", want: time.Unix(1700000000, 0)},
		{name: "milliseconds", timestamp: "1700000000123", want: time.UnixMilli(1700000000123)},
		{name: "fractional seconds", timestamp: "1700000000.5", want: time.UnixMilli(1700000000500)},
		{name: "not a number", timestamp: "yesterday", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimestamp(tt.timestamp)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseTimestamp() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && !got.Equal(tt.want) {
				t.Errorf("ParseTimestamp() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSignatureVerifier_Tolerance(t *testing.T) {
	secret := "secret"
	body := []byte(`{"_type":"post"}`)
	now := time.UnixMilli(1700000000000)

	verifier := NewSignatureVerifier(secret, 5*time.Minute)
	verifier.now = func() time.Time { return now }

	tests := []struct {
		name    string
		signed  time.Time
		wantErr error
	}{
		{name: "fresh", signed: now.Add(-time.Minute), wantErr: nil},
		{name: "too old", signed: now.Add(-10 * time.Minute), wantErr: ErrTimestampOutOfRange},
		{name: "from the future", signed: now.Add(10 * time.Minute), wantErr: ErrTimestampOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := verifier.Verify(body, SignHeader(body, secret, tt.signed))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Verify() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSignatureVerifier_Errors(t *testing.T) {
	verifier := NewSignatureVerifier("secret", 0)
	body := []byte(`{}`)

	tests := []struct {
		name    string
		header  string
		wantErr error
	}{
		{name: "valid without tolerance", header: SignHeader(body, "secret", time.Unix(1, 0)), wantErr: nil},
		{name: "missing", header: "", wantErr: ErrMissingCredentials},
		{name: "malformed", header: "v1=abc", wantErr: ErrMalformedSignature},
		{name: "mismatch", header: SignHeader(body, "wrong", time.Unix(1, 0)), wantErr: ErrInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := verifier.Verify(body, tt.header); !errors.Is(err, tt.wantErr) {
				t.Errorf("Verify() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
