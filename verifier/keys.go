package verifier

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"

	"github.com/limitlxx/kirito-sdk-sub003/logging"
)

// VkeyExtension is the file extension verification keys are stored under.
// The file stem becomes the verification-key id.
const VkeyExtension = ".vkey"

func LoadVerifyingKey(path string) (groth16.VerifyingKey, error) {
	logging.Logger().Info().
		Str("filepath", path).
		Msg("reading verification key")

	vk := groth16.NewVerifyingKey(ecc.BN254)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening verification key file: %w", err)
	}
	defer f.Close()

	n, err := vk.ReadFrom(f)
	if err != nil {
		return nil, fmt.Errorf("error reading verification key: %w", err)
	}

	logging.Logger().Info().
		Str("filepath", path).
		Int64("bytesRead", n).
		Msg("verification key loaded")
	return vk, nil
}

// LoadKeys loads every *.vkey file in dir, keyed by file stem. A missing or
// empty directory yields an empty map; deployments without keys run fail
// closed.
func LoadKeys(dir string) (map[string]groth16.VerifyingKey, error) {
	keys := make(map[string]groth16.VerifyingKey)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			logging.Logger().Warn().Str("dir", dir).Msg("verification key directory does not exist")
			return keys, nil
		}
		return nil, fmt.Errorf("error reading key directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), VkeyExtension) {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), VkeyExtension)
		vk, err := LoadVerifyingKey(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", id, err)
		}
		keys[id] = vk
	}

	logging.Logger().Info().Int("count", len(keys)).Str("dir", dir).Msg("verification keys loaded")
	return keys, nil
}

// LoadFromDir is the common construction path: read every key under dir and
// wrap them in a verifier.
func LoadFromDir(dir string) (*GnarkVerifier, error) {
	keys, err := LoadKeys(dir)
	if err != nil {
		return nil, err
	}
	return NewGnarkVerifier(keys), nil
}
