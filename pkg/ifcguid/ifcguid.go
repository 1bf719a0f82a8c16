// Package ifcguid implements the 22-character compressed GlobalId encoding
// used by IFC for every rooted entity.
//
// A 128-bit UUID is written as one character carrying the top 2 bits
// followed by 21 characters of 6 bits each, over the alphabet
// 0-9 A-Z a-z _ $.
package ifcguid

import (
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
)

// Length is the length of a compressed GlobalId.
const Length = 22

const alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz_$"

// Decoding errors.
var (
	ErrInvalidLength = errors.New("compressed GlobalId must be 22 characters")
	ErrInvalidChar   = errors.New("invalid character in compressed GlobalId")
	ErrOverflow      = errors.New("compressed GlobalId exceeds 128 bits")
)

var decodeTable = func() [256]int8 {
	var t [256]int8
	for i := range t {
		t[i] = -1
	}
	for i := 0; i < len(alphabet); i++ {
		t[alphabet[i]] = int8(i)
	}
	return t
}()

// Compress encodes a UUID as a 22-character GlobalId.
func Compress(id uuid.UUID) string {
	var out [Length]byte

	// Leading byte: 2 bits.
	out[0] = alphabet[id[0]>>6]

	// The remaining 126 bits form 21 groups of 6 bits. Walk them as a bit
	// stream starting after the first 2 bits.
	bit := 2
	for i := 1; i < Length; i++ {
		var v byte
		for j := 0; j < 6; j++ {
			b := (id[bit/8] >> (7 - bit%8)) & 1
			v = v<<1 | b
			bit++
		}
		out[i] = alphabet[v]
	}
	return string(out[:])
}

// Expand decodes a compressed GlobalId back into its UUID.
func Expand(s string) (uuid.UUID, error) {
	var id uuid.UUID
	if len(s) != Length {
		return id, fmt.Errorf("%w: got %d", ErrInvalidLength, len(s))
	}

	first := decodeTable[s[0]]
	if first < 0 {
		return id, fmt.Errorf("%w: %q", ErrInvalidChar, s[0])
	}
	if first > 3 {
		return id, fmt.Errorf("%w: leading %q", ErrOverflow, s[0])
	}
	id[0] = byte(first) << 6

	bit := 2
	for i := 1; i < Length; i++ {
		v := decodeTable[s[i]]
		if v < 0 {
			return id, fmt.Errorf("%w: %q at %d", ErrInvalidChar, s[i], i)
		}
		for j := 5; j >= 0; j-- {
			if (v>>j)&1 == 1 {
				id[bit/8] |= 1 << (7 - bit%8)
			}
			bit++
		}
	}
	return id, nil
}

// Valid reports whether s is a well-formed compressed GlobalId.
func Valid(s string) bool {
	_, err := Expand(s)
	return err == nil
}

// New returns a fresh GlobalId from a random (version 4) UUID.
func New() string {
	return Compress(uuid.New())
}

// Generator issues GlobalIds.
type Generator interface {
	Next() string
}

// RandomGenerator issues GlobalIds from random UUIDs. The zero value is ready to use.
type RandomGenerator struct{}

// Next returns a fresh GlobalId.
func (RandomGenerator) Next() string {
	return New()
}

// TimeGenerator issues GlobalIds from time-based (version 1) UUIDs, falling
// back to random ones if the clock sequence cannot be read.
type TimeGenerator struct{}

// Next returns a fresh GlobalId.
func (TimeGenerator) Next() string {
	id, err := uuid.NewUUID()
	if err != nil {
		return New()
	}
	return Compress(id)
}

// SequenceGenerator issues name-based (version 5) UUIDs for the counter
// values 1, 2, 3... under Namespace, so the same export run twice yields
// the same GlobalIds. It is safe for concurrent use.
type SequenceGenerator struct {
	Namespace uuid.UUID
	n         atomic.Uint64
}

// NewSequenceGenerator returns a generator seeded by seed.
func NewSequenceGenerator(seed string) *SequenceGenerator {
	return &SequenceGenerator{Namespace: uuid.NewSHA1(uuid.NameSpaceOID, []byte(seed))}
}

// Next returns the GlobalId for the next counter value.
func (g *SequenceGenerator) Next() string {
	n := g.n.Add(1)
	return Compress(uuid.NewSHA1(g.Namespace, []byte(strconv.FormatUint(n, 10))))
}
