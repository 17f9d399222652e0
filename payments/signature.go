package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidSignature is returned when a webhook signature header is missing,
// malformed, stale or does not match the payload.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// signatureTolerance bounds how old a signed timestamp may be, limiting
// replay of captured webhook deliveries.
const signatureTolerance = 5 * time.Minute

// VerifySignature checks a gateway webhook signature header of the form
// "t=<unix>,v1=<hex hmac>" where the HMAC-SHA256 is computed over
// "<unix>.<payload>" with the shared webhook secret.
func VerifySignature(secret string, payload []byte, header string) error {
	return verifySignatureAt(secret, payload, header, time.Now())
}

func verifySignatureAt(secret string, payload []byte, header string, now time.Time) error {
	if secret == "" || header == "" {
		return ErrInvalidSignature
	}

	var timestamp string
	var signature string
	for _, part := range strings.Split(header, ",") {
		k, v, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch k {
		case "t":
			timestamp = v
		case "v1":
			signature = v
		}
	}
	if timestamp == "" || signature == "" {
		return fmt.Errorf("%w: missing timestamp or signature", ErrInvalidSignature)
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad timestamp", ErrInvalidSignature)
	}
	age := now.Sub(time.Unix(ts, 0))
	if age > signatureTolerance || age < -signatureTolerance {
		return fmt.Errorf("%w: timestamp outside tolerance", ErrInvalidSignature)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}
