package apns_test

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/pushrelay/pushrelay/pkg/apns"
	"github.com/pushrelay/pushrelay/pkg/kv"
)

func authKeyPEM(t *testing.T) (string, *ecdsa.PublicKey) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	der, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	return string(pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der})), &key.PublicKey
}

func TestHTTPClientSend(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var gotPath, gotPushType, gotCollapseID, gotTopic string
	var gotBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotPushType = r.Header.Get("apns-push-type")
		gotCollapseID = r.Header.Get("apns-collapse-id")
		gotTopic = r.Header.Get("apns-topic")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := apns.NewHTTPClient(apns.Config{URL: server.URL, Topic: "com.example.app"}, nil)

	payload := apns.Payload{APS: apns.APS{Alert: &apns.Alert{Body: "hi"}}}
	headers := map[string]string{
		apns.HeaderPushType:   apns.PushTypeAlert,
		apns.HeaderCollapseID: "msg-1",
	}

	resp, err := client.Send(ctx, "token123", headers, payload)
	require.NoError(t, err)
	require.True(t, resp.OK())

	require.Equal(t, "/3/device/token123", gotPath)
	require.Equal(t, "alert", gotPushType)
	require.Equal(t, "msg-1", gotCollapseID)
	require.Equal(t, "com.example.app", gotTopic)
	require.Contains(t, gotBody, "aps")
}

func TestHTTPClientSendFailureReason(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
		_, _ = w.Write([]byte(`{"reason":"Unregistered"}`))
	}))
	defer server.Close()

	client := apns.NewHTTPClient(apns.Config{URL: server.URL}, nil)

	resp, err := client.Send(ctx, "token123", nil, apns.Payload{})
	require.NoError(t, err)
	require.False(t, resp.OK())
	require.True(t, resp.TokenInvalid())
	require.Equal(t, "Unregistered", resp.Message)
}

func TestHTTPClientEmptyToken(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	client := apns.NewHTTPClient(apns.Config{URL: "http://localhost:0"}, nil)
	_, err := client.Send(ctx, "", nil, apns.Payload{})
	require.ErrorIs(t, err, apns.ErrEmptyDeviceToken)
}

func TestJWTSourceSignsValidToken(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	pemKey, publicKey := authKeyPEM(t)

	source, err := apns.NewJWTSource("KEY123", "TEAM456", pemKey)
	require.NoError(t, err)

	signed, err := source.Token(ctx)
	require.NoError(t, err)

	parsed, err := jwt.Parse(signed, func(token *jwt.Token) (any, error) {
		return publicKey, nil
	}, jwt.WithValidMethods([]string{"ES256"}))
	require.NoError(t, err)
	require.True(t, parsed.Valid)

	require.Equal(t, "KEY123", parsed.Header["kid"])
	claims := parsed.Claims.(jwt.MapClaims)
	require.Equal(t, "TEAM456", claims["iss"])
	require.NotZero(t, claims["iat"])
}

func TestJWTSourceCachesToken(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	pemKey, _ := authKeyPEM(t)
	store := kv.NewMemoryStore()

	source, err := apns.NewJWTSource("KEY123", "TEAM456", pemKey, apns.WithTokenCache(store))
	require.NoError(t, err)

	first, err := source.Token(ctx)
	require.NoError(t, err)

	second, err := source.Token(ctx)
	require.NoError(t, err)
	require.Equal(t, first, second)

	cached, err := store.Get(ctx, "authToken")
	require.NoError(t, err)
	require.Equal(t, first, string(cached))
}

func TestJWTSourceValidation(t *testing.T) {
	t.Parallel()

	_, err := apns.NewJWTSource("", "TEAM", "key")
	require.ErrorIs(t, err, apns.ErrMissingCredentials)

	_, err = apns.NewJWTSource("KEY", "TEAM", "not a pem key")
	require.ErrorIs(t, err, apns.ErrInvalidAuthKey)
}

func TestHTTPClientSendsBearerToken(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	pemKey, _ := authKeyPEM(t)

	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	source, err := apns.NewJWTSource("KEY123", "TEAM456", pemKey)
	require.NoError(t, err)

	client := apns.NewHTTPClient(apns.Config{URL: server.URL}, source)
	resp, err := client.Send(ctx, "token123", nil, apns.Payload{})
	require.NoError(t, err)
	require.True(t, resp.OK())
	require.Contains(t, gotAuth, "Bearer ")
}
