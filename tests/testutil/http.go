package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/ledger/internal/infrastructure/auth"
	"github.com/erp/ledger/internal/infrastructure/config"
)

// TestJWTSecret signs tokens issued by TokenIssuer
const TestJWTSecret = "test-secret-key-with-at-least-32-characters"

// JSONResponse parses the response body as JSON.
func JSONResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var result map[string]any
	err := json.Unmarshal(w.Body.Bytes(), &result)
	require.NoError(t, err, "Failed to parse JSON response")
	return result
}

// JSONResponseAs parses the response body into the provided type.
func JSONResponseAs[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var result T
	err := json.Unmarshal(w.Body.Bytes(), &result)
	require.NoError(t, err, "Failed to parse JSON response")
	return result
}

// AssertSuccessResponse asserts the response is a successful API response.
func AssertSuccessResponse(t *testing.T, w *httptest.ResponseRecorder) {
	t.Helper()

	resp := JSONResponse(t, w)
	assert.Equal(t, true, resp["success"], "Expected success to be true")
	assert.Nil(t, resp["error"], "Expected no error")
}

// AssertErrorResponse asserts the response is an error API response with the given ERR_ code.
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedCode string) {
	t.Helper()

	resp := JSONResponse(t, w)
	assert.Equal(t, false, resp["success"], "Expected success to be false")

	errMap, ok := resp["error"].(map[string]any)
	require.True(t, ok, "Expected error object in response")
	assert.Equal(t, expectedCode, errMap["code"], "Unexpected error code")
}

// ToJSONReader converts a value to a JSON io.Reader.
func ToJSONReader(t *testing.T, v any) io.Reader {
	t.Helper()

	data, err := json.Marshal(v)
	require.NoError(t, err, "Failed to marshal to JSON")
	return bytes.NewReader(data)
}

// TokenIssuer mints bearer tokens for API tests
type TokenIssuer struct {
	jwt *auth.JWTService
}

// NewTokenIssuer creates a token issuer signing with TestJWTSecret
func NewTokenIssuer() *TokenIssuer {
	return &TokenIssuer{jwt: auth.NewJWTService(config.JWTConfig{
		Secret:                TestJWTSecret,
		AccessTokenExpiration: time.Hour,
		Issuer:                "ledger-test",
	})}
}

// Bearer returns an Authorization header value for the company and user
// holding the given permissions.
func (i *TokenIssuer) Bearer(t *testing.T, companyID, userID uuid.UUID, permissions ...string) string {
	t.Helper()

	token, _, err := i.jwt.GenerateToken(auth.GenerateTokenInput{
		CompanyID:   companyID,
		UserID:      userID,
		Username:    "tester",
		Permissions: permissions,
	})
	require.NoError(t, err, "Failed to issue test token")
	return "Bearer " + token
}

// Service returns the underlying JWT service
func (i *TokenIssuer) Service() *auth.JWTService {
	return i.jwt
}
