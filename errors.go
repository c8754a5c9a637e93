package pathoram

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced to callers, per the taxonomy in the design
// doc: KeyNotFound is recoverable, the rest leave the client unusable.
var (
	ErrKeyNotFound   = errors.New("pathoram: key not found in stash")
	ErrStashOverflow = errors.New("pathoram: stash overflow")
	ErrCryptoFailure = errors.New("pathoram: crypto failure")
)

// errChannelFailure wraps an error returned by the underlying Channel so
// that callers can still errors.Is against the original cause.
func errChannelFailure(op string, err error) error {
	return fmt.Errorf("pathoram: channel %s failed: %w", op, err)
}
