package nostr

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	n "github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip19"
)

const HeaderScheme = "Nostr"

const (
	AuthKind     = 24242
	WorklistVerb = "t"
	Expiration   = "expiration"
)

// actions a signed auth event can grant
const (
	GET    = "get"
	UPLOAD = "upload"
	LIST   = "list"
	DELETE = "delete"
)

// Errors parsing event
var (
	ErrMissingHeader        = errors.New("Missing Nostr authorization header")
	ErrIncorrectKind        = errors.New("Incorrect event kind")
	ErrNoAction             = errors.New("No valid action")
	ErrActionNotGranted     = errors.New("Action not granted by event")
	ErrCreatedAtInTheFuture = errors.New("CreatedAt tag is in the future")
	ErrNoExpiration         = errors.New("No expiration tag")
	ErrEventExpired         = errors.New("Event expired")
	ErrInvalidSignature     = errors.New("Invalid Signature")
	ErrUnauthorizedPubkey   = errors.New("Pubkey not authorized")
)

func ExpirationTagIsValid(tags n.Tags, now int64) (bool, error) {
	tag := tags.GetFirst([]string{Expiration, ""})
	if tag == nil || tag.Value() == "" {
		return false, ErrNoExpiration
	}
	exp, err := strconv.ParseInt(tag.Value(), 10, 64)
	if err != nil {
		return false, fmt.Errorf("strconv.ParseInt(tag, 10, 64 ). %w", err)
	}

	if exp < now {
		return false, nil
	}

	return true, nil
}

// ParseNostrHeader decodes "Nostr <base64 event json>".
func ParseNostrHeader(authHeader string) (n.Event, error) {
	var nostrEvent n.Event

	scheme, encoded, found := strings.Cut(strings.TrimSpace(authHeader), " ")
	if !found || !strings.EqualFold(scheme, HeaderScheme) {
		return nostrEvent, ErrMissingHeader
	}

	jsonBytes, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		jsonBytes, err = base64.URLEncoding.DecodeString(encoded)
		if err != nil {
			return nostrEvent, fmt.Errorf("base64.URLEncoding.DecodeString(encoded). %w", err)
		}
	}

	err = json.Unmarshal(jsonBytes, &nostrEvent)
	if err != nil {
		return nostrEvent, fmt.Errorf("json.Unmarshal(jsonBytes, &nostrEvent). %w", err)
	}
	return nostrEvent, nil
}

// ValidateAuthEvent checks signature, kind, timestamps and that the event
// grants action.
func ValidateAuthEvent(event n.Event, action string, now time.Time) error {
	valid, err := event.CheckSignature()
	if err != nil {
		return fmt.Errorf("event.CheckSignature(). %w", err)
	}

	if !valid {
		return ErrInvalidSignature
	}

	validExpiration, err := ExpirationTagIsValid(event.Tags, now.Unix())
	if err != nil {
		return fmt.Errorf("ExpirationTagIsValid(tags, ). %w", err)
	}

	switch {
	case event.Kind != AuthKind:
		return ErrIncorrectKind
	case !event.Tags.ContainsAny(WorklistVerb, []string{GET, UPLOAD, LIST, DELETE}):
		return ErrNoAction
	case !event.Tags.ContainsAny(WorklistVerb, []string{action}):
		return ErrActionNotGranted
	case event.CreatedAt.Time().Unix() > now.Unix():
		return ErrCreatedAtInTheFuture
	case !validExpiration:
		return ErrEventExpired
	}

	return nil
}

// PubkeyAuthorized reports whether pubkey is in the allow list. An empty list
// allows any key.
func PubkeyAuthorized(pubkey string, authorizedKeys []string) bool {
	if len(authorizedKeys) == 0 {
		return true
	}
	for _, k := range authorizedKeys {
		if strings.EqualFold(k, pubkey) {
			return true
		}
	}
	return false
}

// DecodePubkeys parses a comma separated list of npub or hex public keys into
// hex keys.
func DecodePubkeys(list string) ([]string, error) {
	keys := []string{}
	for _, entry := range strings.Split(list, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		if strings.HasPrefix(entry, "npub") {
			prefix, pubkey, err := nip19.Decode(entry)
			if err != nil {
				return nil, fmt.Errorf("nip19.Decode(%s). %w", entry, err)
			}
			if prefix != "npub" {
				return nil, fmt.Errorf("%s is not an npub", entry)
			}
			keys = append(keys, pubkey.(string))
			continue
		}

		raw, err := hex.DecodeString(entry)
		if err != nil || len(raw) != 32 {
			return nil, fmt.Errorf("%s is not a valid public key", entry)
		}
		keys = append(keys, strings.ToLower(entry))
	}
	return keys, nil
}
