package presence

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Signature is the two leading bytes of a manufacturer-specific data field,
// in the order they appear on the air (company identifier, little-endian).
type Signature [2]byte

// Known manufacturer signatures.
var (
	// SignatureApple is Apple's company identifier 0x004C. Find-My-class
	// tags (AirTag and compatible accessories) advertise with it.
	SignatureApple = Signature{0x4C, 0x00}

	// SignatureSamsung is Samsung's company identifier 0x0075, used by
	// SmartTag-class trackers.
	SignatureSamsung = Signature{0x75, 0x00}
)

// minManufacturerDataLen is the shortest manufacturer payload that is
// considered: the two signature bytes plus at least one byte of content.
const minManufacturerDataLen = 3

// Classifier decides whether an advertisement comes from a trackable beacon.
//
// The legacy signature set is a best-effort heuristic; the space of legacy
// tracker identifiers is not exhaustively known, so any configured signature
// match is accepted.
//
// A Classifier is immutable after construction and safe for concurrent use.
type Classifier struct {
	legacy []Signature
}

// NewClassifier creates a Classifier that recognises Apple Find-My beacons
// plus the given legacy tracker signatures.
func NewClassifier(legacy ...Signature) *Classifier {
	sigs := make([]Signature, 0, len(legacy))
	for _, s := range legacy {
		if s == SignatureApple {
			continue
		}
		sigs = append(sigs, s)
	}
	return &Classifier{legacy: sigs}
}

// DefaultClassifier returns a Classifier with the built-in legacy signatures.
func DefaultClassifier() *Classifier {
	return NewClassifier(SignatureSamsung)
}

// Classify returns the beacon family of adv and true when it is trackable,
// or TagUnknown and false when it should be ignored. Rejection is not an
// error. Classify does not allocate.
func (c *Classifier) Classify(adv Advertisement) (ManufacturerTag, bool) {
	data := adv.ManufacturerData
	if len(data) < minManufacturerDataLen {
		return TagUnknown, false
	}

	lead := Signature{data[0], data[1]}
	if lead == SignatureApple {
		return TagAppleFindMy, true
	}
	for _, s := range c.legacy {
		if lead == s {
			return TagLegacyTracker, true
		}
	}
	return TagUnknown, false
}

// LegacySignatures returns a copy of the configured legacy signatures.
func (c *Classifier) LegacySignatures() []Signature {
	out := make([]Signature, len(c.legacy))
	copy(out, c.legacy)
	return out
}

// ParseSignature parses a signature written as four hex digits in on-air
// byte order, optionally prefixed with "0x" ("7500", "0x7500").
func ParseSignature(s string) (Signature, error) {
	trimmed := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
	if len(trimmed) != 2*len(Signature{}) {
		return Signature{}, fmt.Errorf("%w: %q", ErrInvalidSignature, s)
	}

	var sig Signature
	if _, err := hex.Decode(sig[:], []byte(trimmed)); err != nil {
		return Signature{}, fmt.Errorf("%w: %q: %w", ErrInvalidSignature, s, err)
	}
	return sig, nil
}

// String returns the signature as four lower-case hex digits.
func (s Signature) String() string {
	return hex.EncodeToString(s[:])
}
