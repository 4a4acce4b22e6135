package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("refund payment abc: %w", InvalidAmount("refund amount exceeds remaining balance"))
	require.Equal(t, KindInvalidAmount, KindOf(err))
	require.Equal(t, http.StatusBadRequest, HTTPStatus(err))
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{NotFound("payment not found"), http.StatusNotFound},
		{InvalidState("payment already completed"), http.StatusBadRequest},
		{InvalidAmount("amount too large"), http.StatusBadRequest},
		{Authentication("bad signature"), http.StatusUnauthorized},
		{GatewayUnavailable(errors.New("timeout"), "pix gateway unreachable"), http.StatusBadGateway},
		{Processing(errors.New("boom"), "unexpected"), http.StatusInternalServerError},
		{errors.New("opaque"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, HTTPStatus(tc.err))
	}
}

func TestMessageHidesInternalDetail(t *testing.T) {
	require.Equal(t, "internal error", Message(Processing(errors.New("pq: duplicate key"), "insert failed")))
	require.Equal(t, "internal error", Message(errors.New("raw provider error")))
	require.Equal(t, "payment not found", Message(NotFound("payment not found")))
}

func TestIsMatchesByKind(t *testing.T) {
	require.True(t, errors.Is(InvalidAmount("a"), InvalidAmount("b")))
	require.False(t, errors.Is(InvalidAmount("a"), NotFound("b")))
}
