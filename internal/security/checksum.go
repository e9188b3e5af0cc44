package security

import (
	"crypto/md5"  //nolint:gosec // offered for compatibility with published checksums
	"crypto/sha1" //nolint:gosec // offered for compatibility with published checksums
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"strings"

	"github.com/spf13/afero"
	"lukechampine.com/blake3"
)

// ChecksumAlgorithm names a supported digest
type ChecksumAlgorithm string

const (
	SHA256 ChecksumAlgorithm = "sha256"
	SHA512 ChecksumAlgorithm = "sha512"
	SHA1   ChecksumAlgorithm = "sha1"
	MD5    ChecksumAlgorithm = "md5"
	BLAKE3 ChecksumAlgorithm = "blake3"
)

// SupportedAlgorithms lists the accepted checksum algorithms
var SupportedAlgorithms = []ChecksumAlgorithm{SHA256, SHA512, SHA1, MD5, BLAKE3}

// ParseAlgorithm validates an algorithm name
func ParseAlgorithm(name string) (ChecksumAlgorithm, error) {
	algo := ChecksumAlgorithm(strings.ToLower(strings.TrimSpace(name)))
	for _, a := range SupportedAlgorithms {
		if a == algo {
			return algo, nil
		}
	}
	return "", fmt.Errorf("unsupported checksum algorithm: %q", name)
}

func newHash(algo ChecksumAlgorithm) (hash.Hash, error) {
	switch algo {
	case SHA256:
		return sha256.New(), nil
	case SHA512:
		return sha512.New(), nil
	case SHA1:
		return sha1.New(), nil //nolint:gosec
	case MD5:
		return md5.New(), nil //nolint:gosec
	case BLAKE3:
		return blake3.New(32, nil), nil
	default:
		return nil, fmt.Errorf("unsupported checksum algorithm: %q", algo)
	}
}

// FileChecksum computes the hex digest of a file
func FileChecksum(fs afero.Fs, path string, algo ChecksumAlgorithm) (string, error) {
	h, err := newHash(algo)
	if err != nil {
		return "", err
	}

	f, err := fs.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash file: %w", err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// ExpectedChecksum is a user-supplied digest to verify against
type ExpectedChecksum struct {
	Algorithm ChecksumAlgorithm
	Hex       string
}

// String renders the checksum as algo:hex
func (c ExpectedChecksum) String() string {
	return string(c.Algorithm) + ":" + c.Hex
}

// ParseExpectedChecksum parses "algo:hex" or a bare hex digest.
// A bare digest uses defaultAlgo.
func ParseExpectedChecksum(value string, defaultAlgo ChecksumAlgorithm) (*ExpectedChecksum, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}

	algo := defaultAlgo
	digest := value
	if idx := strings.Index(value, ":"); idx >= 0 {
		parsed, err := ParseAlgorithm(value[:idx])
		if err != nil {
			return nil, err
		}
		algo = parsed
		digest = value[idx+1:]
	}
	if algo == "" {
		algo = SHA256
	}

	digest = strings.ToLower(strings.TrimSpace(digest))
	if _, err := hex.DecodeString(digest); err != nil || digest == "" {
		return nil, fmt.Errorf("invalid %s digest: %q", algo, digest)
	}

	return &ExpectedChecksum{Algorithm: algo, Hex: digest}, nil
}

// VerifyChecksum computes the file digest and compares it in constant time.
// It returns the actual digest alongside any mismatch error.
func VerifyChecksum(fs afero.Fs, path string, expected ExpectedChecksum) (string, error) {
	actual, err := FileChecksum(fs, path, expected.Algorithm)
	if err != nil {
		return "", err
	}
	if subtle.ConstantTimeCompare([]byte(actual), []byte(expected.Hex)) != 1 {
		return actual, fmt.Errorf("%s mismatch", expected.Algorithm)
	}
	return actual, nil
}
