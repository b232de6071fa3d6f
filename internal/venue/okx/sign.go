package okx

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"time"
)

// restTimestamp renders the ISO-8601 millisecond timestamp the REST
// signature covers.
func restTimestamp(now time.Time) string {
	return now.UTC().Format("2006-01-02T15:04:05.000Z")
}

// sign computes the request signature: Base64(HMAC-SHA256(secret,
// timestamp + method + path + body)).
func sign(secret, timestamp, method, path string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte(method))
	mac.Write([]byte(path))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// wsLoginSign covers the fixed websocket login phrase with a unix
// seconds timestamp.
func wsLoginSign(secret, timestamp string) string {
	return sign(secret, timestamp, "GET", "/users/self/verify", nil)
}
