package gateway

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// signatureTolerance bounds the webhook timestamp skew accepted by the
// timestamped HMAC scheme (replay protection).
const signatureTolerance = 300 * time.Second

// VerifyTimestampedHMAC checks a header of the form
// "t=<unix-ts>,v1=<hex-hmac-sha256(secret, "<ts>.<body>")>".
// A missing secret fails closed.
func VerifyTimestampedHMAC(payload []byte, header, secret string, now time.Time) bool {
	if secret == "" || header == "" {
		return false
	}

	var ts int64
	var sig string
	for _, element := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(element), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			parsed, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return false
			}
			ts = parsed
		case "v1":
			sig = v
		}
	}
	if ts == 0 || sig == "" {
		return false
	}

	skew := now.Unix() - ts
	if skew < 0 {
		skew = -skew
	}
	if skew > int64(signatureTolerance/time.Second) {
		return false
	}

	signed := fmt.Sprintf("%d.%s", ts, payload)
	expected := computeHMACSHA256([]byte(signed), secret)
	return constantTimeEquals(sig, expected)
}

// VerifyPlainHMAC checks a bare hex-encoded HMAC-SHA256 of the payload.
func VerifyPlainHMAC(payload []byte, signature, secret string) bool {
	if secret == "" || signature == "" {
		return false
	}
	expected := computeHMACSHA256(payload, secret)
	return constantTimeEquals(signature, expected)
}

// VerifySharedSecretMD5 checks token == hex(md5(notificationCode + secret)).
func VerifySharedSecretMD5(notificationCode, token, secret string) bool {
	if secret == "" || token == "" || notificationCode == "" {
		return false
	}
	sum := md5.Sum([]byte(notificationCode + secret))
	return constantTimeEquals(token, hex.EncodeToString(sum[:]))
}

func computeHMACSHA256(data []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil))
}

func constantTimeEquals(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
