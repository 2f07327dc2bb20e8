package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// DefaultEventTolerance bounds how far an event timestamp may drift from the
// receiver's clock before VerifyEvent rejects it as a replay.
const DefaultEventTolerance = 5 * time.Minute

// Event verification failures.
var (
	ErrEventSignature = errors.New("event signature mismatch")
	ErrEventStale     = errors.New("event timestamp outside tolerance")
)

// HMACSignatureService implements ports.SignatureService using HMAC-SHA256.
// Outbound ledger events are signed over EventSigningString.
type HMACSignatureService struct{}

// NewHMACSignatureService creates a new HMAC-SHA256 signature service.
func NewHMACSignatureService() *HMACSignatureService {
	return &HMACSignatureService{}
}

// Sign computes HMAC-SHA256 of payload using secretKey.
// Returns lowercase hex-encoded signature.
func (s *HMACSignatureService) Sign(secretKey string, payload string) string {
	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks if signature matches HMAC-SHA256(secretKey, payload) in
// constant time.
func (s *HMACSignatureService) Verify(secretKey string, payload string, signature string) bool {
	expected := s.Sign(secretKey, payload)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// VerifyEvent checks a delivered ledger event as a webhook receiver would:
// timestampHeader and signature are the X-Timestamp and X-Signature values,
// body is the raw request body. Timestamps further than tolerance from now
// are rejected with ErrEventStale.
func (s *HMACSignatureService) VerifyEvent(secretKey, timestampHeader string, body []byte, signature string, now time.Time, tolerance time.Duration) error {
	ts, err := strconv.ParseInt(timestampHeader, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad timestamp %q", ErrEventStale, timestampHeader)
	}
	if drift := now.Sub(time.Unix(ts, 0)).Abs(); drift > tolerance {
		return fmt.Errorf("%w: drift %s", ErrEventStale, drift)
	}
	if !s.Verify(secretKey, EventSigningString(ts, body), signature) {
		return ErrEventSignature
	}
	return nil
}

// EventSigningString is the payload signed for an outbound event.
// Format: TIMESTAMP.BODY
func EventSigningString(timestamp int64, body []byte) string {
	return strconv.FormatInt(timestamp, 10) + "." + string(body)
}
