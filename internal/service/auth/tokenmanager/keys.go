package tokenmanager

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownKey = errors.New("unknown signing key")

// HMAC secret with identifier written to token 'kid' header
type Key struct {
	ID     string
	Secret []byte
}

// Source of signing keys
// Only one key signs new tokens, but tokens signed by any known key are accepted
// so the active key may be rotated without logging everybody out
type KeySource interface {
	SigningKey() (Key, error)

	// Has to return ErrUnknownKey if there is no key with that id
	VerificationKey(kid string) ([]byte, error)
}

type StaticKeys struct {
	active Key
	keys   map[string][]byte
}

func NewStaticKeys(active Key, retired ...Key) (*StaticKeys, error) {
	s := &StaticKeys{
		active: active,
		keys:   make(map[string][]byte, len(retired)+1),
	}

	for _, k := range append([]Key{active}, retired...) {
		switch {
		case k.ID == "":
			return nil, errors.New("key id must not be empty")
		case len(k.Secret) == 0:
			return nil, fmt.Errorf("key %q secret must not be empty", k.ID)
		}

		if _, ok := s.keys[k.ID]; ok {
			return nil, fmt.Errorf("key %q is set twice", k.ID)
		}
		s.keys[k.ID] = k.Secret
	}

	return s, nil
}

func (s *StaticKeys) SigningKey() (Key, error) {
	return s.active, nil
}

func (s *StaticKeys) VerificationKey(kid string) ([]byte, error) {
	secret, ok := s.keys[kid]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKey, kid)
	}
	return secret, nil
}

// Parse keys from 'kid1=secret1,kid2=secret2'
// Empty string is parsed to no keys
func ParseKeys(value string) ([]Key, error) {
	var keys []Key

	for pair := range strings.SplitSeq(value, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		id, secret, ok := strings.Cut(pair, "=")
		if !ok || id == "" || secret == "" {
			return nil, fmt.Errorf("invalid key %q, expected kid=secret", pair)
		}

		keys = append(keys, Key{ID: strings.TrimSpace(id), Secret: []byte(strings.TrimSpace(secret))})
	}

	return keys, nil
}
