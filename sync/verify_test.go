package sync

import (
	"errors"
	"testing"

	"modsync/registry"
)

func TestVerifyIntegrity(t *testing.T) {
	data := []byte("jar bytes")
	sha1Digest, _ := computeDigest("sha1", data)
	sha512Digest, _ := computeDigest("sha512", data)
	md5Digest, _ := computeDigest("md5", data)

	t.Run("verify-all passes when every pair matches", func(t *testing.T) {
		desc := &registry.Descriptor{
			Checksums: []registry.Checksum{
				{Algorithm: "sha1", Value: sha1Digest},
				{Algorithm: "sha512", Value: sha512Digest},
			},
			Verify: registry.VerifyAll,
		}
		if err := verifyIntegrity("Sodium", data, desc); err != nil {
			t.Errorf("Unexpected error: %v", err)
		}
	})

	t.Run("verify-all fails on one mismatch", func(t *testing.T) {
		desc := &registry.Descriptor{
			Checksums: []registry.Checksum{
				{Algorithm: "sha1", Value: sha1Digest},
				{Algorithm: "sha512", Value: "bad"},
			},
			Verify: registry.VerifyAll,
		}
		var mismatch *registry.IntegrityMismatchError
		if err := verifyIntegrity("Sodium", data, desc); !errors.As(err, &mismatch) {
			t.Fatalf("Expected IntegrityMismatchError, got %v", err)
		}
		if mismatch.Algorithm != "sha512" {
			t.Errorf("Expected the sha512 pair to be reported, got %s", mismatch.Algorithm)
		}
	})

	t.Run("verify-any passes on a single match", func(t *testing.T) {
		desc := &registry.Descriptor{
			Checksums: []registry.Checksum{
				{Algorithm: "md5", Value: "bad"},
				{Algorithm: "md5", Value: md5Digest},
			},
			Verify: registry.VerifyAny,
		}
		if err := verifyIntegrity("JEI", data, desc); err != nil {
			t.Errorf("Unexpected error: %v", err)
		}
	})

	t.Run("verify-any fails when nothing matches", func(t *testing.T) {
		desc := &registry.Descriptor{
			Checksums: []registry.Checksum{{Algorithm: "md5", Value: "bad"}},
			Verify:    registry.VerifyAny,
		}
		var mismatch *registry.IntegrityMismatchError
		if err := verifyIntegrity("JEI", data, desc); !errors.As(err, &mismatch) {
			t.Fatalf("Expected IntegrityMismatchError, got %v", err)
		}
	})

	t.Run("no checksums pass", func(t *testing.T) {
		desc := &registry.Descriptor{Verify: registry.VerifyAll}
		if err := verifyIntegrity("Sodium", data, desc); err != nil {
			t.Errorf("Unexpected error: %v", err)
		}
	})

	t.Run("unknown algorithm", func(t *testing.T) {
		desc := &registry.Descriptor{
			Checksums: []registry.Checksum{{Algorithm: "crc32", Value: "x"}},
			Verify:    registry.VerifyAll,
		}
		if err := verifyIntegrity("Sodium", data, desc); err == nil {
			t.Error("Expected error for unsupported algorithm")
		}
	})
}

func TestOutcomeOK(t *testing.T) {
	if !(Outcome{Status: StatusCommitted}).OK() || !(Outcome{Status: StatusUpToDate}).OK() {
		t.Error("Committed and up-to-date outcomes are OK")
	}
	for _, status := range []Status{StatusNoCompatibleVersion, StatusManualDownloadRequired, StatusHashMismatch, StatusFatal} {
		if (Outcome{Status: status}).OK() {
			t.Errorf("Status %s must not be OK", status)
		}
	}
}
