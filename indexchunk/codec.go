// This file is part of tuff
// SPDX-License-Identifier: GPL-3.0-only

// Package indexchunk implements the boot-time index-chunk codec and store:
// a small crash-safe metadata object recording volume identity and
// generation, validated on every boot.
package indexchunk

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// magic identifies a serialized index chunk. Chosen arbitrarily; it has no
// meaning beyond rejecting buffers that are obviously not ours.
var magic = [4]byte{'T', 'F', 'I', 'C'}

const formatVersion uint8 = 1

// Errors returned by Parse, Validate and the Build* constructors. These are
// sentinels so callers can use errors.Is instead of matching strings.
var (
	// ErrMalformed means the buffer is not a well-formed serialized record.
	ErrMalformed = errors.New("indexchunk: malformed buffer")

	// ErrInvalidArgument means a Build* constructor was called with an
	// argument that violates its precondition.
	ErrInvalidArgument = errors.New("indexchunk: invalid argument")

	// ErrClockSkew means the system clock reads before the Unix epoch.
	ErrClockSkew = errors.New("indexchunk: clock is before the epoch")

	// ErrBadGeneration means generation is 0 or 255.
	ErrBadGeneration = errors.New("indexchunk: generation out of range")

	// ErrUncommitted means wrote_flag is false (a torn write).
	ErrUncommitted = errors.New("indexchunk: chunk not committed")

	// ErrBadTimestamp means timestamp is not strictly positive.
	ErrBadTimestamp = errors.New("indexchunk: invalid timestamp")

	// ErrMissingVolumeName means the volume_name field is absent.
	ErrMissingVolumeName = errors.New("indexchunk: missing volume name")

	// ErrEmptyVolumeName means the volume_name field is present but empty.
	ErrEmptyVolumeName = errors.New("indexchunk: empty volume name")

	// ErrBadRedundancy means default_redundancy is zero.
	ErrBadRedundancy = errors.New("indexchunk: invalid default redundancy")
)

// IndexChunk is the decoded form of the boot-time metadata record described
// in the data model: generation, commit flag, timestamp, volume identity,
// default redundancy, an optional link to the previous generation's hash,
// and an ordered sequence of opaque entries.
type IndexChunk struct {
	Generation        uint8
	WroteFlag         bool
	Timestamp         int64
	VolumeName        string
	DefaultRedundancy uint8
	PrevChunkHash     []byte
	Entries           [][]byte
}

// nowUnix is overridden in tests to exercise ClockSkew without waiting for
// the Unix epoch to move.
var nowUnix = func() int64 { return time.Now().Unix() }

// Parse structurally decodes buf into an IndexChunk. It fails with
// ErrMalformed if buf is not a well-formed serialized record; it performs
// no semantic validation (see Validate for that).
func Parse(buf []byte) (*IndexChunk, error) {
	r := bytes.NewReader(buf)

	var gotMagic [4]byte
	if _, err := readFull(r, gotMagic[:]); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformed, err)
	}
	if gotMagic != magic {
		return nil, fmt.Errorf("%w: bad magic", ErrMalformed)
	}

	var version uint8
	if err := binary.Read(r, binary.BigEndian, &version); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformed, err)
	}
	if version != formatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrMalformed, version)
	}

	chunk := &IndexChunk{}

	if err := binary.Read(r, binary.BigEndian, &chunk.Generation); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformed, err)
	}

	var wroteFlag uint8
	if err := binary.Read(r, binary.BigEndian, &wroteFlag); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformed, err)
	}
	chunk.WroteFlag = wroteFlag != 0

	if err := binary.Read(r, binary.BigEndian, &chunk.Timestamp); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformed, err)
	}

	if err := binary.Read(r, binary.BigEndian, &chunk.DefaultRedundancy); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformed, err)
	}

	name, err := readLenPrefixed(r)
	if err != nil {
		return nil, fmt.Errorf("%w: volume name: %s", ErrMalformed, err)
	}
	chunk.VolumeName = string(name)

	prevHash, err := readLenPrefixed(r)
	if err != nil {
		return nil, fmt.Errorf("%w: prev chunk hash: %s", ErrMalformed, err)
	}
	if len(prevHash) > 0 {
		chunk.PrevChunkHash = prevHash
	}

	var entryCount uint32
	if err := binary.Read(r, binary.BigEndian, &entryCount); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformed, err)
	}
	chunk.Entries = make([][]byte, 0, entryCount)
	for i := uint32(0); i < entryCount; i++ {
		entry, err := readLenPrefixed(r)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d: %s", ErrMalformed, i, err)
		}
		chunk.Entries = append(chunk.Entries, entry)
	}

	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: trailing bytes", ErrMalformed)
	}

	return chunk, nil
}

// BuildPlaceholder constructs a minimal chunk with generation=1,
// wrote_flag=true, timestamp=now, empty entries, and no prev_chunk_hash.
// It fails with ErrInvalidArgument if volumeName is empty or
// defaultRedundancy is zero, and with ErrClockSkew if the system clock
// reads before the epoch.
func BuildPlaceholder(volumeName string, defaultRedundancy uint8) ([]byte, error) {
	if volumeName == "" {
		return nil, fmt.Errorf("%w: volume name is empty", ErrInvalidArgument)
	}
	if defaultRedundancy == 0 {
		return nil, fmt.Errorf("%w: default redundancy is zero", ErrInvalidArgument)
	}

	ts := nowUnix()
	if ts < 0 {
		return nil, ErrClockSkew
	}

	return encode(&IndexChunk{
		Generation:        1,
		WroteFlag:         true,
		Timestamp:         ts,
		VolumeName:        volumeName,
		DefaultRedundancy: defaultRedundancy,
		Entries:           [][]byte{},
	})
}

// BuildWithPrev constructs a committed chunk at the given generation,
// linking it to the previous generation via prevHash. BuildPlaceholder
// alone cannot express a non-initial generation or a prev_chunk_hash link.
// Neither the Store nor the boot driver calls it.
func BuildWithPrev(volumeName string, defaultRedundancy uint8, generation uint8, prevHash []byte) ([]byte, error) {
	if volumeName == "" {
		return nil, fmt.Errorf("%w: volume name is empty", ErrInvalidArgument)
	}
	if defaultRedundancy == 0 {
		return nil, fmt.Errorf("%w: default redundancy is zero", ErrInvalidArgument)
	}
	if generation == 0 || generation == 255 {
		return nil, fmt.Errorf("%w: generation %d reserved", ErrInvalidArgument, generation)
	}

	ts := nowUnix()
	if ts < 0 {
		return nil, ErrClockSkew
	}

	return encode(&IndexChunk{
		Generation:        generation,
		WroteFlag:         true,
		Timestamp:         ts,
		VolumeName:        volumeName,
		DefaultRedundancy: defaultRedundancy,
		PrevChunkHash:     prevHash,
		Entries:           [][]byte{},
	})
}

// Validate parses buf and checks every invariant in the data model. It
// returns the first violation encountered, as one of the Err* sentinels
// above (joined with ErrMalformed's wrapping for parse failures).
func Validate(buf []byte) error {
	chunk, err := Parse(buf)
	if err != nil {
		return err
	}

	if chunk.Generation == 0 || chunk.Generation == 255 {
		return fmt.Errorf("%w: %d", ErrBadGeneration, chunk.Generation)
	}
	if !chunk.WroteFlag {
		return ErrUncommitted
	}
	if chunk.Timestamp <= 0 {
		return fmt.Errorf("%w: %d", ErrBadTimestamp, chunk.Timestamp)
	}
	if chunk.VolumeName == "" {
		// Parse never distinguishes "absent" from "present but empty": the
		// wire format has no separate presence bit for volume_name. An
		// empty decoded string always means EmptyVolumeName.
		return ErrEmptyVolumeName
	}
	if chunk.DefaultRedundancy == 0 {
		return ErrBadRedundancy
	}

	return nil
}

func encode(chunk *IndexChunk) ([]byte, error) {
	var buf bytes.Buffer

	buf.Write(magic[:])
	if err := binary.Write(&buf, binary.BigEndian, formatVersion); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, chunk.Generation); err != nil {
		return nil, err
	}

	var wroteFlag uint8
	if chunk.WroteFlag {
		wroteFlag = 1
	}
	if err := binary.Write(&buf, binary.BigEndian, wroteFlag); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, chunk.Timestamp); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, chunk.DefaultRedundancy); err != nil {
		return nil, err
	}

	if err := writeLenPrefixed(&buf, []byte(chunk.VolumeName)); err != nil {
		return nil, err
	}
	if err := writeLenPrefixed(&buf, chunk.PrevChunkHash); err != nil {
		return nil, err
	}

	if err := binary.Write(&buf, binary.BigEndian, uint32(len(chunk.Entries))); err != nil {
		return nil, err
	}
	for _, entry := range chunk.Entries {
		if err := writeLenPrefixed(&buf, entry); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

func readFull(r *bytes.Reader, out []byte) (int, error) {
	n := 0
	for n < len(out) {
		m, err := r.Read(out[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

func readLenPrefixed(r *bytes.Reader) ([]byte, error) {
	var length uint16
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return nil, err
	}
	out := make([]byte, length)
	if length > 0 {
		if _, err := readFull(r, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func writeLenPrefixed(buf *bytes.Buffer, data []byte) error {
	if len(data) > 0xFFFF {
		return fmt.Errorf("%w: field too large (%d bytes)", ErrInvalidArgument, len(data))
	}
	if err := binary.Write(buf, binary.BigEndian, uint16(len(data))); err != nil {
		return err
	}
	buf.Write(data)
	return nil
}
