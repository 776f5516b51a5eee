package external

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kvsdoorbell/internal/types"
)

func newTestLWAClient(t *testing.T, tokenURL string) *LWAClient {
	t.Helper()
	return NewLWAClient(&http.Client{Timeout: 5 * time.Second}, LWAConfig{
		ClientID:     "amzn1.application-oa2-client.test",
		ClientSecret: types.SecretString("s3cret"),
		TokenURL:     tokenURL,
	})
}

func TestLWAClient_ExchangeGrant(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "ANUNsbVSuN", r.PostForm.Get("code"))
		assert.Equal(t, "amzn1.application-oa2-client.test", r.PostForm.Get("client_id"))
		assert.Equal(t, "s3cret", r.PostForm.Get("client_secret"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"Atza|abc","refresh_token":"Atzr|def","token_type":"bearer","expires_in":3600}`))
	}))
	defer server.Close()

	tok, err := newTestLWAClient(t, server.URL).ExchangeGrant(context.Background(), "ANUNsbVSuN")
	require.NoError(t, err)

	assert.Equal(t, &Token{
		AccessToken:  "Atza|abc",
		RefreshToken: "Atzr|def",
		TokenType:    "bearer",
		ExpiresIn:    3600,
	}, tok)
}

func TestLWAClient_ExchangeGrant_Rejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant","error_description":"The request has an invalid grant parameter : code"}`))
	}))
	defer server.Close()

	_, err := newTestLWAClient(t, server.URL).ExchangeGrant(context.Background(), "expired")
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeUpstreamFailure, appErr.Code)
	assert.Equal(t, "authorization_code", appErr.Details["grant_type"])
	assert.Equal(t, "The request has an invalid grant parameter : code", Describe(err, ""))
}

func TestLWAClient_ExchangeGrant_EmptyAccessToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"token_type":"bearer"}`))
	}))
	defer server.Close()

	_, err := newTestLWAClient(t, server.URL).ExchangeGrant(context.Background(), "code")
	assert.True(t, types.IsCode(err, types.ErrCodeAuthTokenInvalid))
}

func TestLWAClient_ExchangeGrant_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>`))
	}))
	defer server.Close()

	_, err := newTestLWAClient(t, server.URL).ExchangeGrant(context.Background(), "code")
	assert.True(t, types.IsCode(err, types.ErrCodeUpstreamFailure))
}

func TestLWAClient_RefreshToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "Atzr|old", r.PostForm.Get("refresh_token"))
		assert.Equal(t, "console-client", r.PostForm.Get("client_id"))
		assert.Equal(t, "console-secret", r.PostForm.Get("client_secret"))

		w.Write([]byte(`{"access_token":"Atza|new","refresh_token":"Atzr|old","token_type":"bearer","expires_in":3600}`))
	}))
	defer server.Close()

	tok, err := newTestLWAClient(t, server.URL).RefreshToken(context.Background(), RefreshRequest{
		RefreshToken: "Atzr|old",
		ClientID:     "console-client",
		ClientSecret: types.SecretString("console-secret"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Atza|new", tok.AccessToken)
}

func TestLWAClient_RefreshToken_MissingFields(t *testing.T) {
	var called bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	_, err := newTestLWAClient(t, server.URL).RefreshToken(context.Background(), RefreshRequest{RefreshToken: "Atzr|old"})

	assert.True(t, types.IsCode(err, types.ErrCodeValidationMissing))
	assert.False(t, called, "no request should be sent without credentials")
}

func TestNewLWAClient_DefaultTokenURL(t *testing.T) {
	c := NewLWAClient(nil, LWAConfig{ClientID: "id"})
	assert.Equal(t, DefaultLWATokenURL, c.tokenURL)
}
