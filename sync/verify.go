package sync

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"strings"

	"modsync/registry"
)

func computeDigest(algorithm string, data []byte) (string, error) {
	switch strings.ToLower(algorithm) {
	case "sha1":
		sum := sha1.Sum(data)
		return hex.EncodeToString(sum[:]), nil
	case "sha512":
		sum := sha512.Sum512(data)
		return hex.EncodeToString(sum[:]), nil
	case "md5":
		sum := md5.Sum(data)
		return hex.EncodeToString(sum[:]), nil
	default:
		return "", fmt.Errorf("unsupported checksum algorithm %q", algorithm)
	}
}

// verifyIntegrity recomputes the descriptor's integrity pairs over the
// fetched bytes. VerifyAll requires every pair to match; VerifyAny
// accepts the first match. Descriptors without checksums pass.
func verifyIntegrity(modName string, data []byte, desc *registry.Descriptor) error {
	if len(desc.Checksums) == 0 {
		return nil
	}

	var firstMismatch *registry.IntegrityMismatchError
	for _, checksum := range desc.Checksums {
		actual, err := computeDigest(checksum.Algorithm, data)
		if err != nil {
			return err
		}
		if strings.EqualFold(actual, checksum.Value) {
			if desc.Verify == registry.VerifyAny {
				return nil
			}
			continue
		}

		mismatch := &registry.IntegrityMismatchError{
			Mod:       modName,
			Algorithm: checksum.Algorithm,
			Expected:  checksum.Value,
			Actual:    actual,
		}
		if desc.Verify == registry.VerifyAll {
			return mismatch
		}
		if firstMismatch == nil {
			firstMismatch = mismatch
		}
	}

	if desc.Verify == registry.VerifyAny && firstMismatch != nil {
		return firstMismatch
	}
	return nil
}
