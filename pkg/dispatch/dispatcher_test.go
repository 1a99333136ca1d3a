package dispatch_test

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pushrelay/pushrelay/pkg/apns"
	"github.com/pushrelay/pushrelay/pkg/device"
	"github.com/pushrelay/pushrelay/pkg/dispatch"
	"github.com/pushrelay/pushrelay/pkg/hub"
	"github.com/pushrelay/pushrelay/pkg/kv"
	"github.com/pushrelay/pushrelay/pkg/spool"
)

type sentPush struct {
	token   string
	headers map[string]string
	payload any
}

type fakeAPNS struct {
	mu    sync.Mutex
	resp  *apns.Response
	err   error
	sends []sentPush
}

func (f *fakeAPNS) Send(_ context.Context, token string, headers map[string]string, payload any) (*apns.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, sentPush{token: token, headers: headers, payload: payload})
	if f.err != nil {
		return nil, f.err
	}
	if f.resp != nil {
		return f.resp, nil
	}
	return &apns.Response{Status: http.StatusOK}, nil
}

func (f *fakeAPNS) sent() []sentPush {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentPush(nil), f.sends...)
}

type fakeConn struct {
	mu     sync.Mutex
	frames []hub.Frame
	closed bool
}

func (c *fakeConn) Send(raw []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var frame hub.Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return err
	}
	c.frames = append(c.frames, frame)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) Open() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

func (c *fakeConn) received() []hub.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]hub.Frame(nil), c.frames...)
}

type fixture struct {
	store    kv.Store
	registry *device.Registry
	hub      *hub.Hub
	queue    *spool.Queue
	client   *fakeAPNS
}

func newFixture(t *testing.T, opts ...dispatch.DispatcherOption) (*dispatch.Dispatcher, *fixture) {
	t.Helper()
	store := kv.NewMemoryStore()
	f := &fixture{
		store:    store,
		registry: device.NewRegistry(store),
		queue:    spool.NewQueue(store),
		client:   &fakeAPNS{},
	}
	f.hub = hub.NewHub(f.queue)
	return dispatch.NewDispatcher(f.registry, f.hub, f.queue, f.client, opts...), f
}

func registerIOS(t *testing.T, f *fixture, token string) string {
	t.Helper()
	dev, err := f.registry.Register(context.Background(), device.RegisterParams{Token: token})
	require.NoError(t, err)
	return dev.DeviceKey
}

func registerAndroid(t *testing.T, f *fixture, publicKey string) string {
	t.Helper()
	dev, err := f.registry.Register(context.Background(), device.RegisterParams{PublicKey: publicKey})
	require.NoError(t, err)
	return dev.DeviceKey
}

func newRSAKeyPair(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	require.NoError(t, err)
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
	return privateKey, string(pemBytes)
}

func decryptEnvelope(t *testing.T, privateKey *rsa.PrivateKey, encoded string) []byte {
	t.Helper()
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	require.NoError(t, err)
	require.Greater(t, len(raw), 2)
	keyLen := int(binary.BigEndian.Uint16(raw))
	wrapped := raw[2 : 2+keyLen]
	nonce := raw[2+keyLen : 2+keyLen+12]
	ciphertext := raw[2+keyLen+12:]
	key, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, privateKey, wrapped, nil)
	require.NoError(t, err)
	block, err := aes.NewCipher(key)
	require.NoError(t, err)
	gcm, err := cipher.NewGCM(block)
	require.NoError(t, err)
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	require.NoError(t, err)
	return plaintext
}

func TestDispatch_EmptyDeviceKey(t *testing.T) {
	t.Parallel()

	d, _ := newFixture(t)
	_, err := d.Dispatch(context.Background(), &dispatch.Request{Body: "hello"})

	var dispatchErr *dispatch.Error
	require.ErrorAs(t, err, &dispatchErr)
	require.Equal(t, http.StatusBadRequest, dispatchErr.Code)
	require.Equal(t, "device key is empty", dispatchErr.Message)
}

func TestDispatch_UnknownDevice(t *testing.T) {
	t.Parallel()

	d, _ := newFixture(t)
	_, err := d.Dispatch(context.Background(), &dispatch.Request{DeviceKey: "missing"})

	var dispatchErr *dispatch.Error
	require.ErrorAs(t, err, &dispatchErr)
	require.Equal(t, http.StatusBadRequest, dispatchErr.Code)
	require.Contains(t, dispatchErr.Message, "failed to get [missing] from database")
}

func TestDispatch_IOS_Success(t *testing.T) {
	t.Parallel()

	d, f := newFixture(t)
	key := registerIOS(t, f, "token-1")

	resp, err := d.Dispatch(context.Background(), &dispatch.Request{
		DeviceKey: key,
		Title:     "greeting",
		Body:      "hello",
		ID:        "msg-1",
	})
	require.NoError(t, err)
	require.Equal(t, 200, resp.Code)

	sends := f.client.sent()
	require.Len(t, sends, 1)
	require.Equal(t, "token-1", sends[0].token)
	require.Equal(t, apns.PushTypeAlert, sends[0].headers[apns.HeaderPushType])
	require.Equal(t, "msg-1", sends[0].headers[apns.HeaderCollapseID])

	payload, ok := sends[0].payload.(*apns.Payload)
	require.True(t, ok)
	require.Equal(t, "greeting", payload.APS.Alert.Title)
	require.Equal(t, "hello", payload.APS.Alert.Body)
	require.Equal(t, "1107.caf", payload.APS.Sound)
	require.Equal(t, apns.Category, payload.APS.Category)
	require.Equal(t, 1, payload.APS.MutableContent)
}

func TestDispatch_IOS_EmptyAlertGetsPlaceholder(t *testing.T) {
	t.Parallel()

	d, f := newFixture(t)
	key := registerIOS(t, f, "token-1")

	_, err := d.Dispatch(context.Background(), &dispatch.Request{DeviceKey: key})
	require.NoError(t, err)

	payload := f.client.sent()[0].payload.(*apns.Payload)
	require.Equal(t, apns.EmptyBody, payload.APS.Alert.Body)
}

func TestDispatch_IOS_DeleteUsesBackgroundPush(t *testing.T) {
	t.Parallel()

	d, f := newFixture(t)
	key := registerIOS(t, f, "token-1")

	_, err := d.Dispatch(context.Background(), &dispatch.Request{
		DeviceKey: key,
		ID:        "msg-1",
		Delete:    true,
	})
	require.NoError(t, err)

	sends := f.client.sent()
	require.Equal(t, apns.PushTypeBackground, sends[0].headers[apns.HeaderPushType])
	payload := sends[0].payload.(*apns.Payload)
	require.Nil(t, payload.APS.Alert)
	require.Equal(t, 1, payload.APS.ContentAvailable)
	require.True(t, payload.Delete)
}

func TestDispatch_IOS_NoCollapseIDWithoutMessageID(t *testing.T) {
	t.Parallel()

	d, f := newFixture(t)
	key := registerIOS(t, f, "token-1")

	_, err := d.Dispatch(context.Background(), &dispatch.Request{DeviceKey: key, Body: "hi"})
	require.NoError(t, err)

	_, present := f.client.sent()[0].headers[apns.HeaderCollapseID]
	require.False(t, present)
}

func TestDispatch_IOS_MissingToken(t *testing.T) {
	t.Parallel()

	d, f := newFixture(t)
	key := registerIOS(t, f, "token-1")
	require.NoError(t, f.registry.InvalidateToken(context.Background(), key))

	_, err := d.Dispatch(context.Background(), &dispatch.Request{DeviceKey: key, Body: "hi"})

	var dispatchErr *dispatch.Error
	require.ErrorAs(t, err, &dispatchErr)
	require.Equal(t, http.StatusBadRequest, dispatchErr.Code)
	require.Equal(t, "device token not found", dispatchErr.Message)
	require.Empty(t, f.client.sent())
}

func TestDispatch_IOS_OversizedTokenRemovesDevice(t *testing.T) {
	t.Parallel()

	d, f := newFixture(t)
	key := registerIOS(t, f, "token-1")

	// Stored records predating registration-time validation may carry a
	// token longer than APNs accepts.
	record, err := json.Marshal(device.Device{
		DeviceKey:   key,
		DeviceType:  device.TypeIOS,
		DeviceToken: strings.Repeat("a", device.MaxTokenLength+1),
	})
	require.NoError(t, err)
	require.NoError(t, f.store.Put(context.Background(), "device_"+device.SanitizeKey(key), record, 0))

	_, err = d.Dispatch(context.Background(), &dispatch.Request{DeviceKey: key, Body: "hi"})

	var dispatchErr *dispatch.Error
	require.ErrorAs(t, err, &dispatchErr)
	require.Equal(t, "invalid device token, has been removed", dispatchErr.Message)
	require.Empty(t, f.client.sent())

	_, err = f.registry.Get(context.Background(), key)
	require.ErrorIs(t, err, device.ErrNotFound)
}

func TestDispatch_IOS_GoneInvalidatesTokenKeepsRecord(t *testing.T) {
	t.Parallel()

	d, f := newFixture(t)
	key := registerIOS(t, f, "token-1")
	f.client.resp = &apns.Response{Status: http.StatusGone, Message: "Unregistered"}

	_, err := d.Dispatch(context.Background(), &dispatch.Request{DeviceKey: key, Body: "hi"})

	var dispatchErr *dispatch.Error
	require.ErrorAs(t, err, &dispatchErr)
	require.Equal(t, http.StatusGone, dispatchErr.Code)
	require.Equal(t, "push failed: Unregistered", dispatchErr.Message)

	dev, err := f.registry.Get(context.Background(), key)
	require.NoError(t, err)
	require.Empty(t, dev.DeviceToken)
}

func TestDispatch_IOS_BadDeviceTokenInvalidates(t *testing.T) {
	t.Parallel()

	d, f := newFixture(t)
	key := registerIOS(t, f, "token-1")
	f.client.resp = &apns.Response{Status: http.StatusBadRequest, Message: "BadDeviceToken"}

	_, err := d.Dispatch(context.Background(), &dispatch.Request{DeviceKey: key, Body: "hi"})
	require.Error(t, err)

	dev, err := f.registry.Get(context.Background(), key)
	require.NoError(t, err)
	require.Empty(t, dev.DeviceToken)
}

func TestDispatch_IOS_OtherRejectionKeepsToken(t *testing.T) {
	t.Parallel()

	d, f := newFixture(t)
	key := registerIOS(t, f, "token-1")
	f.client.resp = &apns.Response{Status: http.StatusTooManyRequests, Message: "TooManyRequests"}

	_, err := d.Dispatch(context.Background(), &dispatch.Request{DeviceKey: key, Body: "hi"})

	var dispatchErr *dispatch.Error
	require.ErrorAs(t, err, &dispatchErr)
	require.Equal(t, http.StatusTooManyRequests, dispatchErr.Code)

	dev, err := f.registry.Get(context.Background(), key)
	require.NoError(t, err)
	require.Equal(t, "token-1", dev.DeviceToken)
}

func TestDispatch_Android_OnlineEncrypted(t *testing.T) {
	t.Parallel()

	privateKey, publicPEM := newRSAKeyPair(t)
	d, f := newFixture(t)
	key := registerAndroid(t, f, publicPEM)

	conn := &fakeConn{}
	_, err := f.hub.RegisterSession(context.Background(), key, conn)
	require.NoError(t, err)

	resp, err := d.Dispatch(context.Background(), &dispatch.Request{
		DeviceKey: key,
		Title:     "greeting",
		Body:      "hello",
		ID:        "msg-1",
	})
	require.NoError(t, err)
	require.Equal(t, "success", resp.Message)

	frames := conn.received()
	require.Len(t, frames, 1)
	require.Equal(t, hub.FrameMessage, frames[0].Type)
	require.Equal(t, "msg-1", frames[0].ID)

	data, ok := frames[0].Data.(map[string]any)
	require.True(t, ok)
	encrypted, ok := data["encrypted_content"].(string)
	require.True(t, ok)

	var message map[string]any
	require.NoError(t, json.Unmarshal(decryptEnvelope(t, privateKey, encrypted), &message))
	require.Equal(t, "greeting", message["title"])
	require.Equal(t, "hello", message["body"])
	require.NotContains(t, message, "volume")
}

func TestDispatch_Android_OfflineQueuesMessage(t *testing.T) {
	t.Parallel()

	_, publicPEM := newRSAKeyPair(t)
	d, f := newFixture(t)
	key := registerAndroid(t, f, publicPEM)

	resp, err := d.Dispatch(context.Background(), &dispatch.Request{
		DeviceKey: key,
		Body:      "hello",
		ID:        "msg-1",
	})
	require.NoError(t, err)
	require.Equal(t, "message saved for offline delivery", resp.Message)

	pending, err := f.queue.Drain(context.Background(), key)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "msg-1", pending[0].ID)
	require.NotEmpty(t, pending[0].Encrypted)
	require.Nil(t, pending[0].Data)
}

func TestDispatch_Android_OfflineThenReplayOnConnect(t *testing.T) {
	t.Parallel()

	privateKey, publicPEM := newRSAKeyPair(t)
	d, f := newFixture(t)
	key := registerAndroid(t, f, publicPEM)

	_, err := d.Dispatch(context.Background(), &dispatch.Request{DeviceKey: key, Body: "hello", ID: "msg-1"})
	require.NoError(t, err)

	conn := &fakeConn{}
	_, err = f.hub.RegisterSession(context.Background(), key, conn)
	require.NoError(t, err)

	frames := conn.received()
	require.Len(t, frames, 1)
	require.Equal(t, "msg-1", frames[0].ID)

	data := frames[0].Data.(map[string]any)
	plaintext := decryptEnvelope(t, privateKey, data["encrypted_content"].(string))
	var message map[string]any
	require.NoError(t, json.Unmarshal(plaintext, &message))
	require.Equal(t, "hello", message["body"])
}

func TestDispatch_Android_BadKeyFallsBackToPlaintext(t *testing.T) {
	t.Parallel()

	d, f := newFixture(t)
	key := registerAndroid(t, f, "-----BEGIN PUBLIC KEY-----\nnot a key\n-----END PUBLIC KEY-----")

	conn := &fakeConn{}
	_, err := f.hub.RegisterSession(context.Background(), key, conn)
	require.NoError(t, err)

	_, err = d.Dispatch(context.Background(), &dispatch.Request{DeviceKey: key, Body: "hello"})
	require.NoError(t, err)

	frames := conn.received()
	require.Len(t, frames, 1)
	data, ok := frames[0].Data.(map[string]any)
	require.True(t, ok)
	require.NotContains(t, data, "encrypted_content")
	require.Equal(t, "hello", data["body"])
}

func TestDispatch_BatchTooLarge(t *testing.T) {
	t.Parallel()

	d, f := newFixture(t, dispatch.WithMaxBatchSize(2))

	_, err := d.Dispatch(context.Background(), &dispatch.Request{
		DeviceKeys: []string{"a", "b", "c"},
		Body:       "hello",
	})

	var dispatchErr *dispatch.Error
	require.ErrorAs(t, err, &dispatchErr)
	require.Equal(t, http.StatusBadRequest, dispatchErr.Code)
	require.Equal(t, "batch push count exceeds the maximum limit: 2", dispatchErr.Message)
	require.Empty(t, f.client.sent())
}

func TestDispatch_BatchIsolatesFailures(t *testing.T) {
	t.Parallel()

	d, f := newFixture(t)
	good := registerIOS(t, f, "token-1")

	resp, err := d.Dispatch(context.Background(), &dispatch.Request{
		DeviceKeys: []string{good, "missing", good},
		Body:       "hello",
	})
	require.NoError(t, err)
	require.Equal(t, 200, resp.Code)

	results, ok := resp.Data.([]dispatch.BatchResult)
	require.True(t, ok)
	require.Len(t, results, 3)

	require.Equal(t, good, results[0].DeviceKey)
	require.Equal(t, 200, results[0].Code)
	require.Empty(t, results[0].Message)

	require.Equal(t, "missing", results[1].DeviceKey)
	require.Equal(t, http.StatusBadRequest, results[1].Code)
	require.Contains(t, results[1].Message, "failed to get [missing] from database")

	require.Equal(t, good, results[2].DeviceKey)
	require.Equal(t, 200, results[2].Code)

	require.Len(t, f.client.sent(), 2)
}

func TestDispatch_BatchMixedPlatforms(t *testing.T) {
	t.Parallel()

	_, publicPEM := newRSAKeyPair(t)
	d, f := newFixture(t)
	iosKey := registerIOS(t, f, "token-1")
	androidKey := registerAndroid(t, f, publicPEM)

	resp, err := d.Dispatch(context.Background(), &dispatch.Request{
		DeviceKeys: []string{iosKey, androidKey},
		Body:       "hello",
	})
	require.NoError(t, err)

	results := resp.Data.([]dispatch.BatchResult)
	require.Len(t, results, 2)
	require.Equal(t, 200, results[0].Code)
	require.Equal(t, 200, results[1].Code)

	require.Len(t, f.client.sent(), 1)
	pending, err := f.queue.Drain(context.Background(), androidKey)
	require.NoError(t, err)
	require.Len(t, pending, 1)
}
