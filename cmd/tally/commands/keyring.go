package commands

import (
	"fmt"
	"sync"

	"github.com/spf13/viper"

	"github.com/tallyhq-io/tally-client/internal/store"
)

const keyringSection = "credentials."

// ViperKeyring implements tally.Keyring on top of the CLI's viper-backed
// config file. Tokens survive between invocations the same way the rest
// of the CLI configuration does.
type ViperKeyring struct {
	mutex sync.Mutex
}

// NewViperKeyring creates a keyring persisting into the CLI config file.
func NewViperKeyring() *ViperKeyring {
	return &ViperKeyring{}
}

// Get implements tally.Keyring.Get.
func (k *ViperKeyring) Get(key string) (string, error) {
	k.mutex.Lock()
	defer k.mutex.Unlock()

	value := viper.GetString(keyringSection + key)
	if value == "" {
		return "", fmt.Errorf("%q: %w", key, store.ErrKeyringKeyNotFound)
	}

	return value, nil
}

// Set implements tally.Keyring.Set.
func (k *ViperKeyring) Set(key, value string) error {
	k.mutex.Lock()
	defer k.mutex.Unlock()

	viper.Set(keyringSection+key, value)

	return saveConfig()
}

// Delete implements tally.Keyring.Delete.
func (k *ViperKeyring) Delete(key string) error {
	k.mutex.Lock()
	defer k.mutex.Unlock()

	viper.Set(keyringSection+key, "")

	return saveConfig()
}

// saveConfig writes the current viper state to the config file, creating
// it on first use.
func saveConfig() error {
	err := viper.WriteConfig()
	if err == nil {
		return nil
	}

	err = viper.SafeWriteConfig()
	if err != nil {
		return fmt.Errorf("saving config file: %w", err)
	}

	return nil
}
