package mask

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIdentifier(t *testing.T) {
	require.Equal(t, "****5678", Identifier("POL-12345678"))
	require.Equal(t, "****", Identifier("abc"))
	require.Equal(t, "****", Identifier(""))
}

func TestTransactionID(t *testing.T) {
	require.Equal(t, "TXN-A1B2...F0F0", TransactionID("TXN-A1B2C3D4E5F0F0"))
	require.Equal(t, "****3456", TransactionID("TXN-123456"))
}

func TestDocument(t *testing.T) {
	require.Equal(t, "*******8901", Document("123.456.789-01"))
	require.Equal(t, "***********", Document("42"))
}

func TestEmail(t *testing.T) {
	require.Equal(t, "m****@example.com", Email("maria@example.com"))
	require.Equal(t, "****", Email("not-an-email"))
}
