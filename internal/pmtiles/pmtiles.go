// Package pmtiles writes single-directory PMTiles v3 archives.
//
// Format: https://github.com/protomaps/PMTiles/blob/main/spec/v3/spec.md
package pmtiles

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/paulmach/orb"
)

// Compression is the compression algorithm applied to directories, metadata
// and tiles.
type Compression uint8

const (
	UnknownCompression Compression = 0
	NoCompression      Compression = 1
	Gzip               Compression = 2
)

// TileType is the format of individual tile contents.
type TileType uint8

const (
	UnknownTileType TileType = 0
	Mvt             TileType = 1
)

// HeaderV3LenBytes is the fixed-size binary header.
const HeaderV3LenBytes = 127

const magic = "PMTiles"

// HeaderV3 is the binary header of a PMTiles v3 archive.
type HeaderV3 struct {
	SpecVersion         uint8
	RootOffset          uint64
	RootLength          uint64
	MetadataOffset      uint64
	MetadataLength      uint64
	LeafDirectoryOffset uint64
	LeafDirectoryLength uint64
	TileDataOffset      uint64
	TileDataLength      uint64
	AddressedTilesCount uint64
	TileEntriesCount    uint64
	TileContentsCount   uint64
	Clustered           bool
	InternalCompression Compression
	TileCompression     Compression
	TileType            TileType
	MinZoom             uint8
	MaxZoom             uint8
	MinLonE7            int32
	MinLatE7            int32
	MaxLonE7            int32
	MaxLatE7            int32
	CenterZoom          uint8
	CenterLonE7         int32
	CenterLatE7         int32
}

// EntryV3 is a directory entry.
type EntryV3 struct {
	TileID    uint64
	Offset    uint64
	Length    uint32
	RunLength uint32
}

// ZxyToID converts tile coordinates to a Hilbert curve tile ID.
func ZxyToID(z uint8, x, y uint32) uint64 {
	id := (uint64(1)<<(2*uint(z)) - 1) / 3
	for shift := int(z) - 1; shift >= 0; shift-- {
		s := uint32(1) << uint(shift)
		rx, ry := x&s, y&s
		id += uint64((3*rx)^ry) << uint(shift)
		if ry == 0 {
			if rx != 0 {
				x, y = s-1-x, s-1-y
			}
			x, y = y, x
		}
	}
	return id
}

// the uint64 header fields in their on-disk order, starting at byte 8
func (h *HeaderV3) words() []*uint64 {
	return []*uint64{
		&h.RootOffset, &h.RootLength, &h.MetadataOffset, &h.MetadataLength,
		&h.LeafDirectoryOffset, &h.LeafDirectoryLength, &h.TileDataOffset, &h.TileDataLength,
		&h.AddressedTilesCount, &h.TileEntriesCount, &h.TileContentsCount,
	}
}

// the int32 position fields with their byte offsets
func (h *HeaderV3) positions() map[int]*int32 {
	return map[int]*int32{
		102: &h.MinLonE7, 106: &h.MinLatE7, 110: &h.MaxLonE7, 114: &h.MaxLatE7,
		119: &h.CenterLonE7, 123: &h.CenterLatE7,
	}
}

// SerializeHeader encodes h.
func SerializeHeader(h HeaderV3) []byte {
	b := make([]byte, HeaderV3LenBytes)
	copy(b, magic)
	b[7] = 3
	for i, w := range h.words() {
		binary.LittleEndian.PutUint64(b[8+8*i:], *w)
	}
	if h.Clustered {
		b[96] = 1
	}
	b[97], b[98], b[99] = byte(h.InternalCompression), byte(h.TileCompression), byte(h.TileType)
	b[100], b[101], b[118] = h.MinZoom, h.MaxZoom, h.CenterZoom
	for off, v := range h.positions() {
		binary.LittleEndian.PutUint32(b[off:], uint32(*v))
	}
	return b
}

// DeserializeHeader decodes a header.
func DeserializeHeader(d []byte) (HeaderV3, error) {
	var h HeaderV3
	if len(d) < HeaderV3LenBytes {
		return h, errors.New("pmtiles: header too short")
	}
	if string(d[:len(magic)]) != magic {
		return h, errors.New("pmtiles: magic number not detected")
	}
	h.SpecVersion = d[7]
	for i, w := range h.words() {
		*w = binary.LittleEndian.Uint64(d[8+8*i:])
	}
	h.Clustered = d[96] == 1
	h.InternalCompression, h.TileCompression, h.TileType = Compression(d[97]), Compression(d[98]), TileType(d[99])
	h.MinZoom, h.MaxZoom, h.CenterZoom = d[100], d[101], d[118]
	for off, v := range h.positions() {
		*v = int32(binary.LittleEndian.Uint32(d[off:]))
	}
	return h, nil
}

func compress(data []byte, c Compression) ([]byte, error) {
	switch c {
	case NoCompression:
		return data, nil
	case Gzip:
		var b bytes.Buffer
		w, err := gzip.NewWriterLevel(&b, gzip.BestCompression)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return b.Bytes(), nil
	}
	return nil, fmt.Errorf("pmtiles: compression %d not supported", c)
}

// SerializeMetadata encodes the JSON metadata.
func SerializeMetadata(metadata map[string]any, c Compression) ([]byte, error) {
	data, err := json.Marshal(metadata)
	if err != nil {
		return nil, err
	}
	return compress(data, c)
}

// SerializeEntries encodes a directory: count, delta-coded IDs, run lengths,
// lengths, then offsets where 0 means "directly after the previous tile".
func SerializeEntries(entries []EntryV3, c Compression) ([]byte, error) {
	var b []byte
	b = binary.AppendUvarint(b, uint64(len(entries)))
	var last uint64
	for _, e := range entries {
		b = binary.AppendUvarint(b, e.TileID-last)
		last = e.TileID
	}
	for _, e := range entries {
		b = binary.AppendUvarint(b, uint64(e.RunLength))
	}
	for _, e := range entries {
		b = binary.AppendUvarint(b, uint64(e.Length))
	}
	for i, e := range entries {
		if i > 0 && e.Offset == entries[i-1].Offset+uint64(entries[i-1].Length) {
			b = binary.AppendUvarint(b, 0)
		} else {
			b = binary.AppendUvarint(b, e.Offset+1)
		}
	}
	return compress(b, c)
}

// Tile is one encoded tile, already compressed with the archive's tile
// compression.
type Tile struct {
	Z    uint8
	X, Y uint32
	Data []byte
}

// Archive describes the archive being written.
type Archive struct {
	MinZoom, MaxZoom uint8
	Bound            orb.Bound
	Compression      Compression
	Metadata         map[string]any
}

func e7(v float64) int32 { return int32(math.Round(v * 1e7)) }

// Write writes tiles as a clustered archive with a single root directory.
func Write(w io.Writer, tiles []Tile, a Archive) error {
	if len(tiles) == 0 {
		return errors.New("pmtiles: no tiles to write")
	}

	type keyed struct {
		id   uint64
		data []byte
	}
	sorted := make([]keyed, len(tiles))
	for i, t := range tiles {
		sorted[i] = keyed{ZxyToID(t.Z, t.X, t.Y), t.Data}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].id < sorted[j].id })

	entries := make([]EntryV3, len(sorted))
	var data bytes.Buffer
	for i, t := range sorted {
		entries[i] = EntryV3{TileID: t.id, Offset: uint64(data.Len()), Length: uint32(len(t.data)), RunLength: 1}
		data.Write(t.data)
	}

	root, err := SerializeEntries(entries, Gzip)
	if err != nil {
		return fmt.Errorf("serializing directory: %w", err)
	}
	meta, err := SerializeMetadata(a.Metadata, Gzip)
	if err != nil {
		return fmt.Errorf("serializing metadata: %w", err)
	}

	center := a.Bound.Center()
	h := HeaderV3{
		RootOffset:          HeaderV3LenBytes,
		RootLength:          uint64(len(root)),
		MetadataOffset:      HeaderV3LenBytes + uint64(len(root)),
		MetadataLength:      uint64(len(meta)),
		TileDataOffset:      HeaderV3LenBytes + uint64(len(root)) + uint64(len(meta)),
		TileDataLength:      uint64(data.Len()),
		AddressedTilesCount: uint64(len(entries)),
		TileEntriesCount:    uint64(len(entries)),
		TileContentsCount:   uint64(len(entries)),
		Clustered:           true,
		InternalCompression: Gzip,
		TileCompression:     a.Compression,
		TileType:            Mvt,
		MinZoom:             a.MinZoom,
		MaxZoom:             a.MaxZoom,
		MinLonE7:            e7(a.Bound.Min[0]),
		MinLatE7:            e7(a.Bound.Min[1]),
		MaxLonE7:            e7(a.Bound.Max[0]),
		MaxLatE7:            e7(a.Bound.Max[1]),
		CenterZoom:          a.MinZoom,
		CenterLonE7:         e7(center[0]),
		CenterLatE7:         e7(center[1]),
	}

	for _, part := range [][]byte{SerializeHeader(h), root, meta, data.Bytes()} {
		if _, err := w.Write(part); err != nil {
			return err
		}
	}
	return nil
}
