package okx

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"time"
)

const timestampLayout = "2006-01-02T15:04:05.000Z"

// Sign computes base64(HMAC-SHA256(secret, ts+method+requestPath+body)).
// requestPath includes the query string.
func Sign(secret, ts, method, requestPath, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts + method + requestPath + body))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Timestamp formats t the way the signature header expects.
func Timestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}
