package download

import (
	"encoding/hex"
	"fmt"
	"hash"
	"strings"
)

// digest hashes the saved bytes as they pass through. want is a hex
// digest compared without regard to case.
type digest struct {
	hash.Hash
	want string
}

// check reports ErrChecksumMismatch when the bytes seen so far do not
// hash to want. A nil digest always passes.
func (d *digest) check() error {
	if d == nil {
		return nil
	}

	got := hex.EncodeToString(d.Sum(nil))
	if strings.EqualFold(got, d.want) {
		return nil
	}

	return &Error{Err: ErrChecksumMismatch, Detail: fmt.Sprintf("expected %s, got %s", d.want, got)}
}
