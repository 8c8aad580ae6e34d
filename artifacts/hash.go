package artifacts

import (
	"context"
	"encoding/hex"
	"fmt"
	"hash"
	"io"

	"github.com/zeebo/blake3"

	"github.com/BaSui01/distiset/storage"
)

// Digest is a hex encoded BLAKE3-256 digest.
type Digest string

// HashFile returns the BLAKE3 digest of the file at p.
func HashFile(ctx context.Context, p storage.Path) (Digest, error) {
	r, err := p.Open(ctx)
	if err != nil {
		return "", err
	}
	defer r.Close()

	h := blake3.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("hash %s: %w", p, err)
	}
	return digestOf(h), nil
}

func digestOf(h hash.Hash) Digest {
	return Digest(hex.EncodeToString(h.Sum(nil)))
}
