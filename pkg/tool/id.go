package tool

import (
	"strings"

	"github.com/google/uuid"
)

func GenerateUUIDV7() string {
	return uuid.Must(uuid.NewV7()).String()
}

// GenerateTransactionID builds the external transaction reference shared with
// payment gateways, e.g. TXN-9F86D081884C7D65.
func GenerateTransactionID() string {
	raw := strings.ReplaceAll(uuid.New().String(), "-", "")
	return "TXN-" + strings.ToUpper(raw[:16])
}
