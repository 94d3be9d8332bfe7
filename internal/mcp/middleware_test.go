package mcp

import (
	"context"
	"net/http"
	"testing"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"

	"github.com/rpggio/phasetrack/internal/auth"
)

func requestWithHeader(h http.Header) *sdkmcp.CallToolRequest {
	return &sdkmcp.CallToolRequest{
		Params: &sdkmcp.CallToolParamsRaw{Name: "list_projects"},
		Extra:  &sdkmcp.RequestExtra{Header: h},
	}
}

func captureSubject(got *string) sdkmcp.MethodHandler {
	return func(ctx context.Context, _ string, _ sdkmcp.Request) (sdkmcp.Result, error) {
		*got = credential(ctx).Subject
		return &sdkmcp.CallToolResult{}, nil
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	token, err := auth.Sign("secret", "user-7", time.Hour)
	require.NoError(t, err)

	var subject string
	handler := authMiddleware(auth.NewVerifier("secret"))(captureSubject(&subject))

	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	_, err = handler(context.Background(), "tools/call", requestWithHeader(h))
	require.NoError(t, err)
	require.Equal(t, "user-7", subject)
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	var subject string
	handler := authMiddleware(auth.NewVerifier("secret"))(captureSubject(&subject))

	_, err := handler(context.Background(), "tools/call", requestWithHeader(http.Header{}))
	require.ErrorIs(t, err, auth.ErrUnauthenticated)

	h := http.Header{}
	h.Set("Authorization", "Bearer not-a-jwt")
	_, err = handler(context.Background(), "tools/call", requestWithHeader(h))
	require.ErrorIs(t, err, auth.ErrInvalidToken)
	require.Empty(t, subject)
}

func TestAuthMiddleware_SkipsProtocolMethods(t *testing.T) {
	var subject string
	handler := authMiddleware(auth.NewVerifier("secret"))(captureSubject(&subject))

	_, err := handler(context.Background(), "ping", requestWithHeader(nil))
	require.NoError(t, err)
}

func TestNoAuthMiddleware(t *testing.T) {
	var subject string
	handler := noAuthMiddleware("local")(captureSubject(&subject))

	_, err := handler(context.Background(), "tools/call", requestWithHeader(nil))
	require.NoError(t, err)
	require.Equal(t, "local", subject)
}
