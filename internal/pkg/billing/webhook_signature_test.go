package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func signPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyWebhookSignature(t *testing.T) {
	secret := "whsec_test"
	payload := []byte(`{"type":"payment.succeeded","data":{"id":"cs_1"}}`)
	valid := signPayload(payload, secret)

	tests := []struct {
		name      string
		payload   []byte
		signature string
		secret    string
		want      bool
	}{
		{"valid signature", payload, valid, secret, true},
		{"uppercase hex accepted", payload, strings.ToUpper(valid), secret, true},
		{"surrounding whitespace trimmed", payload, "  " + valid + "\n", secret, true},
		{"tampered payload", []byte(`{"type":"payment.succeeded","data":{"id":"cs_2"}}`), valid, secret, false},
		{"wrong secret", payload, valid, "whsec_other", false},
		{"empty signature", payload, "", secret, false},
		{"empty secret", payload, valid, "", false},
		{"both empty", payload, "", "", false},
		{"non-hex signature", payload, "not-a-signature", secret, false},
		{"truncated signature", payload, valid[:32], secret, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, VerifyWebhookSignature(tt.payload, tt.signature, tt.secret))
		})
	}
}

func TestVerifyWebhookSignatureUsesRawBytes(t *testing.T) {
	secret := "whsec_test"
	raw := []byte("{\"b\": 1, \"a\": 2}")
	reordered := []byte("{\"a\": 2, \"b\": 1}")

	sig := signPayload(raw, secret)
	assert.True(t, VerifyWebhookSignature(raw, sig, secret))
	assert.False(t, VerifyWebhookSignature(reordered, sig, secret), "re-serialized body must not verify")
}
