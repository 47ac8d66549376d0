package session

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	codec, err := NewCodec(testSecret, false)
	require.NoError(t, err)
	return codec
}

func requestWithCookie(value string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	r.AddCookie(&http.Cookie{Name: CookieName, Value: value})
	return r
}

func TestNewCodecRequiresSecret(t *testing.T) {
	_, err := NewCodec("", false)
	assert.Error(t, err)

	_, err = NewCodec("   ", false)
	assert.Error(t, err)
}

func TestSessionRoundTrip(t *testing.T) {
	codec := newTestCodec(t)

	token, err := codec.Issue("user-123")
	require.NoError(t, err)

	userID, ok := codec.Read(requestWithCookie(token))
	assert.True(t, ok)
	assert.Equal(t, "user-123", userID)
}

func TestReadHasNoErrorOutcome(t *testing.T) {
	codec := newTestCodec(t)

	// No cookie at all.
	userID, ok := codec.Read(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.False(t, ok)
	assert.Empty(t, userID)

	// Empty value.
	_, ok = codec.Read(requestWithCookie(""))
	assert.False(t, ok)

	// Garbage value.
	_, ok = codec.Read(requestWithCookie("not-a-token"))
	assert.False(t, ok)

	// Valid shape, tampered payload.
	token, err := codec.Issue("user-123")
	require.NoError(t, err)
	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + ".eyJzdWIiOiJzb21lb25lLWVsc2UifQ." + parts[2]
	_, ok = codec.Read(requestWithCookie(tampered))
	assert.False(t, ok)
}

func TestReadRejectsForeignSecret(t *testing.T) {
	codec := newTestCodec(t)
	other, err := NewCodec("a-different-secret", false)
	require.NoError(t, err)

	token, err := other.Issue("user-123")
	require.NoError(t, err)

	_, ok := codec.Read(requestWithCookie(token))
	assert.False(t, ok)
}

func TestCookieAttributes(t *testing.T) {
	codec := newTestCodec(t)
	cookie := codec.Cookie("value")

	assert.Equal(t, CookieName, cookie.Name)
	assert.Equal(t, "/", cookie.Path)
	assert.True(t, cookie.HttpOnly)
	assert.False(t, cookie.Secure)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.Equal(t, int(30*24*time.Hour/time.Second), cookie.MaxAge)
}

func TestCookieSecureInProduction(t *testing.T) {
	codec, err := NewCodec(testSecret, true)
	require.NoError(t, err)

	assert.True(t, codec.Cookie("value").Secure)
	assert.True(t, codec.Destroy().Secure)
}

func TestDestroyExpiresCookie(t *testing.T) {
	codec := newTestCodec(t)

	token, err := codec.Issue("user-123")
	require.NoError(t, err)
	_, ok := codec.Read(requestWithCookie(token))
	require.True(t, ok)

	destroyed := codec.Destroy()
	assert.Equal(t, CookieName, destroyed.Name)
	assert.Negative(t, destroyed.MaxAge)
	assert.True(t, destroyed.Expires.Before(time.Now()))

	// A client honoring the destroy cookie presents its (empty) value.
	_, ok = codec.Read(requestWithCookie(destroyed.Value))
	assert.False(t, ok)
}
