package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign computes the checkout signature the gateway attaches to a confirmed
// payment: HMAC-SHA256 over "orderID|paymentID", hex encoded.
func Sign(secret []byte, gatewayOrderID, gatewayPaymentID string) string {
	h := hmac.New(sha256.New, secret)
	h.Write([]byte(gatewayOrderID + "|" + gatewayPaymentID))
	return hex.EncodeToString(h.Sum(nil))
}

// VerifyHMAC checks a signature in constant time.
func VerifyHMAC(secret []byte, gatewayOrderID, gatewayPaymentID, signature string) bool {
	if len(secret) == 0 {
		return false
	}
	expected := Sign(secret, gatewayOrderID, gatewayPaymentID)
	return hmac.Equal([]byte(signature), []byte(expected))
}
