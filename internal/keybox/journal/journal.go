// Package journal is the durable, append-only record of access attempts.
// It backs the SQLite audit table with a crash-safe on-disk log: each
// record is length-prefixed, CBOR-encoded, and carried with a truncated
// BLAKE3 digest, so after a power cut a record is either fully readable or
// dropped at replay. It never rejects an attempt: a failed append is
// surfaced through Healthy and a log line, not to the decision path.
package journal

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/blake3"
)

// digestLen is how many bytes of the BLAKE3 digest follow each payload.
// Eight bytes is plenty for torn-write detection; this is not an
// authenticity mechanism.
const digestLen = 8

// maxRecordSize rejects absurd length prefixes during replay so a corrupt
// prefix cannot trigger a huge allocation.
const maxRecordSize = 1 << 16

var errTorn = errors.New("torn or corrupt journal record")

// encMode uses deterministic encoding: the same attempt always serializes
// to the same bytes, which keeps digests reproducible.
var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("journal: cbor encoder init: " + err.Error())
	}
}

// Journal appends records to a single file, fsyncing each write.
type Journal struct {
	mu      sync.Mutex
	f       *os.File
	path    string
	lastErr error
}

// Open creates or opens the journal file for appending. An existing file
// is first scanned and any torn tail left by a power cut mid-append is
// truncated, so new records always start at a clean frame boundary and
// stay reachable by Replay.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir journal dir: %w", err)
	}
	if err := recoverTail(path); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return &Journal{f: f, path: path}, nil
}

// recoverTail truncates the file at the first torn or corrupt record, if
// any. A missing file is fine.
func recoverTail(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read journal: %w", err)
	}

	offset := 0
	for offset < len(data) {
		_, next, err := readRecord(data[offset:])
		if err != nil {
			if terr := os.Truncate(path, int64(offset)); terr != nil {
				return fmt.Errorf("truncate torn journal tail: %w", terr)
			}
			return nil
		}
		offset += next
	}
	return nil
}

// Append encodes v and writes one framed record:
//
//	uvarint(len(payload)) | payload | blake3(payload)[:8]
//
// The write is fsynced before Append returns.
func (j *Journal) Append(v any) error {
	payload, err := encMode.Marshal(v)
	if err != nil {
		return j.note(fmt.Errorf("journal encode: %w", err))
	}

	frame := binary.AppendUvarint(nil, uint64(len(payload)))
	frame = append(frame, payload...)
	digest := blake3.Sum256(payload)
	frame = append(frame, digest[:digestLen]...)

	j.mu.Lock()
	defer j.mu.Unlock()

	if _, err := j.f.Write(frame); err != nil {
		return j.noteLocked(fmt.Errorf("journal write: %w", err))
	}
	if err := j.f.Sync(); err != nil {
		return j.noteLocked(fmt.Errorf("journal sync: %w", err))
	}
	j.lastErr = nil
	return nil
}

// Healthy reports whether the last append succeeded. Used by the health
// endpoint to surface a storage fault without ever blocking decisions.
func (j *Journal) Healthy() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.lastErr == nil
}

func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.f.Close()
}

func (j *Journal) note(err error) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.noteLocked(err)
}

func (j *Journal) noteLocked(err error) error {
	j.lastErr = err
	return err
}

// Replay reads every intact record from a journal file, invoking fn with
// the raw CBOR payload of each. A torn or corrupt tail (the result of a
// power cut mid-append) is truncated off the file; everything before it is
// kept. Returns the number of records delivered.
//
// Replay must not run concurrently with an open Journal on the same path.
func Replay(path string, fn func(payload []byte) error) (int, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read journal: %w", err)
	}

	count := 0
	offset := 0
	for offset < len(data) {
		payload, next, err := readRecord(data[offset:])
		if err != nil {
			// Drop the torn tail so the next append starts from a clean
			// record boundary.
			if terr := os.Truncate(path, int64(offset)); terr != nil {
				return count, fmt.Errorf("truncate torn journal tail: %w", terr)
			}
			return count, nil
		}
		if err := fn(payload); err != nil {
			return count, err
		}
		count++
		offset += next
	}
	return count, nil
}

// readRecord parses one framed record from the front of buf, returning the
// payload and the total frame length consumed.
func readRecord(buf []byte) ([]byte, int, error) {
	size, n := binary.Uvarint(buf)
	if n <= 0 || size > maxRecordSize {
		return nil, 0, errTorn
	}
	end := n + int(size) + digestLen
	if end > len(buf) {
		return nil, 0, errTorn
	}

	payload := buf[n : n+int(size)]
	digest := blake3.Sum256(payload)
	stored := buf[n+int(size) : end]
	for i := 0; i < digestLen; i++ {
		if digest[i] != stored[i] {
			return nil, 0, errTorn
		}
	}
	return payload, end, nil
}

// Decode unmarshals a replayed payload into v.
func Decode(payload []byte, v any) error {
	return cbor.Unmarshal(payload, v)
}
