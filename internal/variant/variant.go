package variant

import (
	"errors"
	"fmt"

	"github.com/park285/Cheese-Tournament/internal/movecodec"
)

// ErrUnknownVariant matches every *UnknownVariantError.
var ErrUnknownVariant = errors.New("unknown variant")

type UnknownVariantError struct {
	Key string
}

func (e *UnknownVariantError) Error() string {
	return fmt.Sprintf("unknown variant %q", e.Key)
}

func (e *UnknownVariantError) Is(target error) bool { return target == ErrUnknownVariant }

// Descriptor is an immutable catalog entry.
type Descriptor struct {
	Code        string
	ID          string
	DisplayName string
	Icon        string
	Shuffle     bool
	Bughouse    bool
	Byoyomi     bool
	Grand       bool
	Retired     bool
	Family      movecodec.Family
}

// ServerName is the lookup key: the id, suffixed with "960" for shuffled starts.
func (d Descriptor) ServerName() string {
	if d.Shuffle {
		return d.ID + "960"
	}
	return d.ID
}

func (d Descriptor) EncodeMove(move string) (string, error) {
	return movecodec.Encode(d.Family, move)
}

func (d Descriptor) DecodeMove(code string) (string, error) {
	return movecodec.Decode(d.Family, code)
}

// ByShortCode returns the base (non-shuffled) descriptor for a short code.
func ByShortCode(code string) (Descriptor, error) {
	d, ok := byCode[code]
	if !ok {
		return Descriptor{}, &UnknownVariantError{Key: code}
	}
	return d, nil
}

// ByCanonicalID looks a descriptor up by id and shuffle flag. Retired
// variants are still found so archived games keep decoding.
func ByCanonicalID(id string, shuffle bool) (Descriptor, error) {
	key := id
	if shuffle {
		key += "960"
	}
	d, ok := byServerName[key]
	if !ok {
		return Descriptor{}, &UnknownVariantError{Key: key}
	}
	return d, nil
}

// Lookup resolves the (short code, shuffle) pair stored on tournament records.
func Lookup(code string, shuffle bool) (Descriptor, error) {
	base, err := ByShortCode(code)
	if err != nil {
		return Descriptor{}, err
	}
	return ByCanonicalID(base.ID, shuffle)
}

// Offered lists variants open for new tournaments in registration order.
// Bughouse variants are withheld in production.
func Offered(prod bool) []Descriptor {
	out := make([]Descriptor, 0, len(catalog))
	for _, d := range catalog {
		if d.Retired || (prod && d.Bughouse) {
			continue
		}
		out = append(out, d)
	}
	return out
}

// All lists every descriptor, retired ones included.
func All() []Descriptor {
	out := make([]Descriptor, len(catalog))
	copy(out, catalog)
	return out
}

// ShortCodeToID maps every short code, retired ones included, to its id.
func ShortCodeToID() map[string]string {
	out := make(map[string]string, len(byCode))
	for c, d := range byCode {
		out[c] = d.ID
	}
	return out
}
