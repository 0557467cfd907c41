package secrets

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

// KeyringService groups the app's secrets in the OS keychain.
const KeyringService = "applycrew"

var ErrNotFound = errors.New("secret not found")

func account(provider string) string {
	return fmt.Sprintf("applycrew:llm:%s", strings.ToLower(strings.TrimSpace(provider)))
}

// APIKey returns fromEnv when set, otherwise the key stored in the keychain
// for provider.
func APIKey(provider, fromEnv string) (string, error) {
	if strings.TrimSpace(fromEnv) != "" {
		return fromEnv, nil
	}
	key, err := keyring.Get(KeyringService, account(provider))
	if err == nil && strings.TrimSpace(key) != "" {
		return key, nil
	}
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return "", fmt.Errorf("keychain lookup for %s: %w", provider, err)
	}
	return "", fmt.Errorf("%w: no API key for %s", ErrNotFound, provider)
}

func SetAPIKey(provider, key string) error {
	if strings.TrimSpace(provider) == "" {
		return errors.New("provider name is empty")
	}
	if strings.TrimSpace(key) == "" {
		return errors.New("API key is empty")
	}
	return keyring.Set(KeyringService, account(provider), key)
}

func DeleteAPIKey(provider string) error {
	if strings.TrimSpace(provider) == "" {
		return errors.New("provider name is empty")
	}
	if err := keyring.Delete(KeyringService, account(provider)); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("%w: no API key for %s", ErrNotFound, provider)
		}
		return err
	}
	return nil
}
