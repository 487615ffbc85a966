package xid

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const (
	// MaxPartLength is the maximum length in bytes of the global transaction id and the branch qualifier
	MaxPartLength = 64

	separator = ":"
)

// ErrMalformed is returned (wrapped) for every string that is not a valid transaction id
var ErrMalformed = errors.New("malformed transaction id")

// XID identifies a two-phase transaction.
// The text form is "<formatId>:<gtrid as hex>:<bqual as hex>", e.g. "1:0a0b:ff".
type XID struct {
	FormatID            int32
	GlobalTransactionID []byte
	BranchQualifier     []byte
}

// New creates a transaction id with a random global transaction id and an empty branch qualifier
func New(formatID int32) XID {
	gtrid := uuid.New()
	return XID{
		FormatID:            formatID,
		GlobalTransactionID: gtrid[:],
	}
}

// String returns the canonical text form, Parse(x.String()) always equals x
func (x XID) String() string {
	return strconv.FormatInt(int64(x.FormatID), 10) + separator +
		hex.EncodeToString(x.GlobalTransactionID) + separator +
		hex.EncodeToString(x.BranchQualifier)
}

// Equal reports whether both ids identify the same transaction
func (x XID) Equal(other XID) bool {
	return x.FormatID == other.FormatID &&
		bytes.Equal(x.GlobalTransactionID, other.GlobalTransactionID) &&
		bytes.Equal(x.BranchQualifier, other.BranchQualifier)
}

// Validate checks the length limits of the id
func (x XID) Validate() error {
	if len(x.GlobalTransactionID) == 0 || len(x.GlobalTransactionID) > MaxPartLength {
		return fmt.Errorf("%w: global transaction id must be 1-%d bytes, got %d", ErrMalformed, MaxPartLength, len(x.GlobalTransactionID))
	}
	if len(x.BranchQualifier) > MaxPartLength {
		return fmt.Errorf("%w: branch qualifier must be at most %d bytes, got %d", ErrMalformed, MaxPartLength, len(x.BranchQualifier))
	}
	return nil
}

// Parse reads a transaction id from its canonical text form, the one String
// produces. Non-canonical spellings of the same id are rejected.
// Every input is checked against its bounds before it is decoded, malformed input
// yields an error wrapping ErrMalformed and never a panic.
func Parse(s string) (XID, error) {
	// 11 digits for the format id, two separators, two hex encoded parts
	if len(s) > 11+2*len(separator)+4*MaxPartLength {
		return XID{}, fmt.Errorf("%w: input too long (%d characters)", ErrMalformed, len(s))
	}

	formatPart, rest, ok := strings.Cut(s, separator)
	if !ok {
		return XID{}, fmt.Errorf("%w: missing separator in %q", ErrMalformed, s)
	}
	gtridPart, bqualPart, ok := strings.Cut(rest, separator)
	if !ok {
		return XID{}, fmt.Errorf("%w: missing branch qualifier in %q", ErrMalformed, s)
	}
	if strings.Contains(bqualPart, separator) {
		return XID{}, fmt.Errorf("%w: too many parts in %q", ErrMalformed, s)
	}

	formatID, err := strconv.ParseInt(formatPart, 10, 32)
	if err != nil {
		return XID{}, fmt.Errorf("%w: invalid format id %q", ErrMalformed, formatPart)
	}
	// signs other than "-", leading zeros and "-0" are not produced by String
	if strconv.FormatInt(formatID, 10) != formatPart {
		return XID{}, fmt.Errorf("%w: format id %q is not in canonical form", ErrMalformed, formatPart)
	}
	gtrid, err := decodePart(gtridPart, "global transaction id")
	if err != nil {
		return XID{}, err
	}
	bqual, err := decodePart(bqualPart, "branch qualifier")
	if err != nil {
		return XID{}, err
	}

	x := XID{
		FormatID:            int32(formatID),
		GlobalTransactionID: gtrid,
		BranchQualifier:     bqual,
	}
	return x, x.Validate()
}

// decodePart decodes a hex encoded part of the id
func decodePart(part, name string) ([]byte, error) {
	if len(part) > 2*MaxPartLength {
		return nil, fmt.Errorf("%w: %s longer than %d bytes", ErrMalformed, name, MaxPartLength)
	}
	if len(part)%2 != 0 {
		return nil, fmt.Errorf("%w: %s has an odd number of hex digits", ErrMalformed, name)
	}
	if len(part) == 0 {
		return nil, nil
	}
	b, err := hex.DecodeString(part)
	if err != nil {
		return nil, fmt.Errorf("%w: %s is not hex encoded", ErrMalformed, name)
	}
	if strings.ToLower(part) != part {
		return nil, fmt.Errorf("%w: %s must use lower case hex digits", ErrMalformed, name)
	}
	return b, nil
}
