package nowpayments

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// SignatureHeader carries the hex HMAC-SHA512 of the canonical IPN body.
const SignatureHeader = "x-nowpayments-sig"

// VerifySignature reports whether signature is the HMAC-SHA512 of the
// canonical form of body under the IPN secret.
func (c *Client) VerifySignature(body []byte, signature string) bool {
	return verify(c.ipnSecret, body, signature)
}

func verify(secret, body []byte, signature string) bool {
	if len(secret) == 0 || signature == "" {
		return false
	}
	want, err := hex.DecodeString(strings.ToLower(strings.TrimSpace(signature)))
	if err != nil {
		return false
	}
	canon, err := Canonicalize(body)
	if err != nil {
		return false
	}
	return hmac.Equal(sign(secret, canon), want)
}

func sign(secret, msg []byte) []byte {
	m := hmac.New(sha512.New, secret)
	m.Write(msg)
	return m.Sum(nil)
}

// Sign returns the hex signature NOWPayments would send for body.
func Sign(secret string, body []byte) (string, error) {
	canon, err := Canonicalize(body)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(sign([]byte(secret), canon)), nil
}

// Canonicalize re-encodes a JSON document with object keys sorted at every
// depth, numbers kept in their original textual form and no HTML escaping.
func Canonicalize(body []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("decode payload: trailing data")
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
