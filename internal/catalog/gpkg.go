package catalog

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
)

var (
	errNotGeoPackage   = errors.New("not a GeoPackage geometry blob")
	errExtendedGeom    = errors.New("extended GeoPackage geometry types are not supported")
	errInvalidEnvelope = errors.New("invalid GeoPackage envelope indicator")
)

// GeoPackage binary header flags (GeoPackage 1.3, section 2.1.3).
const (
	flagEmpty    = 0x10
	flagExtended = 0x20
)

// envelopeSize maps the 3-bit envelope indicator to its byte length.
var envelopeSize = [...]int{0, 32, 48, 48, 64}

// decodeGeometry decodes a GeoPackage geometry blob. Empty geometries return
// a nil geometry and no error.
func decodeGeometry(b []byte) (orb.Geometry, error) {
	if len(b) < 8 || b[0] != 'G' || b[1] != 'P' {
		return nil, errNotGeoPackage
	}
	flags := b[3]
	if flags&flagExtended != 0 {
		return nil, errExtendedGeom
	}

	indicator := int(flags>>1) & 0x07
	if indicator >= len(envelopeSize) {
		return nil, errInvalidEnvelope
	}
	if flags&flagEmpty != 0 {
		return nil, nil
	}

	start := 8 + envelopeSize[indicator]
	if len(b) <= start {
		return nil, fmt.Errorf("geometry blob truncated at %d bytes", len(b))
	}

	g, err := wkb.Unmarshal(b[start:])
	if err != nil {
		return nil, fmt.Errorf("decoding wkb: %w", err)
	}
	return g, nil
}
