package clob

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Credentials are the L2 API credentials derived for the signing address.
type Credentials struct {
	APIKey     string
	Secret     string
	Passphrase string
}

// Valid reports whether all credential parts are present.
func (c Credentials) Valid() bool {
	return c.APIKey != "" && c.Secret != "" && c.Passphrase != ""
}

// signL2 builds the POLY_* headers for an authenticated CLOB request.
// The secret is URL-safe base64 and the signature is encoded the same way.
func signL2(creds Credentials, address, method, path string, body []byte, now time.Time) (http.Header, error) {
	secret, err := base64.URLEncoding.DecodeString(creds.Secret)
	if err != nil {
		return nil, fmt.Errorf("decode secret: %w", err)
	}

	timestamp := strconv.FormatInt(now.Unix(), 10)

	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(timestamp + method + path + string(body)))
	signature := base64.URLEncoding.EncodeToString(mac.Sum(nil))

	headers := http.Header{}
	headers.Set("POLY_ADDRESS", address)
	headers.Set("POLY_API_KEY", creds.APIKey)
	headers.Set("POLY_PASSPHRASE", creds.Passphrase)
	headers.Set("POLY_SIGNATURE", signature)
	headers.Set("POLY_TIMESTAMP", timestamp)

	return headers, nil
}
