package nostr

import (
	"encoding/base64"
	"encoding/json"
	"strconv"
	"strings"
	"testing"
	"time"

	n "github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip19"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedEvent(t *testing.T, sk string, kind int, tags n.Tags) n.Event {
	t.Helper()
	event := n.Event{
		CreatedAt: n.Timestamp(time.Now().Add(-time.Minute).Unix()),
		Kind:      kind,
		Tags:      tags,
		Content:   "radworklist access",
	}
	require.NoError(t, event.Sign(sk))
	return event
}

func header(t *testing.T, event n.Event) string {
	t.Helper()
	b, err := json.Marshal(event)
	require.NoError(t, err)
	return HeaderScheme + " " + base64.StdEncoding.EncodeToString(b)
}

func expiresIn(d time.Duration) n.Tag {
	return n.Tag{Expiration, strconv.FormatInt(time.Now().Add(d).Unix(), 10)}
}

func TestValidateAuthEvent(t *testing.T) {
	sk := n.GeneratePrivateKey()

	event := signedEvent(t, sk, AuthKind, n.Tags{{WorklistVerb, UPLOAD}, expiresIn(time.Hour)})
	parsed, err := ParseNostrHeader(header(t, event))
	require.NoError(t, err)
	assert.NoError(t, ValidateAuthEvent(parsed, UPLOAD, time.Now()))
	assert.ErrorIs(t, ValidateAuthEvent(parsed, DELETE, time.Now()), ErrActionNotGranted)
}

func TestValidateAuthEventRejects(t *testing.T) {
	sk := n.GeneratePrivateKey()

	wrongKind := signedEvent(t, sk, 1, n.Tags{{WorklistVerb, GET}, expiresIn(time.Hour)})
	assert.ErrorIs(t, ValidateAuthEvent(wrongKind, GET, time.Now()), ErrIncorrectKind)

	expired := signedEvent(t, sk, AuthKind, n.Tags{{WorklistVerb, GET}, expiresIn(-time.Hour)})
	assert.ErrorIs(t, ValidateAuthEvent(expired, GET, time.Now()), ErrEventExpired)

	noExpiration := signedEvent(t, sk, AuthKind, n.Tags{{WorklistVerb, GET}})
	assert.ErrorIs(t, ValidateAuthEvent(noExpiration, GET, time.Now()), ErrNoExpiration)

	tampered := signedEvent(t, sk, AuthKind, n.Tags{{WorklistVerb, GET}, expiresIn(time.Hour)})
	tampered.Content = "changed after signing"
	assert.Error(t, ValidateAuthEvent(tampered, GET, time.Now()))
}

func TestParseNostrHeaderMalformed(t *testing.T) {
	for _, h := range []string{"", "Bearer abc", "Nostr"} {
		_, err := ParseNostrHeader(h)
		assert.ErrorIs(t, err, ErrMissingHeader, h)
	}

	_, err := ParseNostrHeader("Nostr !!!notbase64")
	assert.Error(t, err)
}

func TestPubkeyAuthorized(t *testing.T) {
	assert.True(t, PubkeyAuthorized("abc", nil))
	assert.True(t, PubkeyAuthorized("ABC", []string{"def", "abc"}))
	assert.False(t, PubkeyAuthorized("abc", []string{"def"}))
}

func TestDecodePubkeys(t *testing.T) {
	sk := n.GeneratePrivateKey()
	pk, err := n.GetPublicKey(sk)
	require.NoError(t, err)
	npub, err := nip19.EncodePublicKey(pk)
	require.NoError(t, err)

	keys, err := DecodePubkeys(npub + ", " + strings.ToUpper(pk) + ",,")
	require.NoError(t, err)
	assert.Equal(t, []string{pk, pk}, keys)

	keys, err = DecodePubkeys("")
	require.NoError(t, err)
	assert.Empty(t, keys)

	_, err = DecodePubkeys("npub1notakey")
	assert.Error(t, err)

	_, err = DecodePubkeys("abcd")
	assert.Error(t, err)
}
