package storage

import (
	"os"
	"sync"

	"github.com/edsrzf/mmap-go"
	"github.com/golang/snappy"

	"git.gammaspectra.live/P2Pool/monero-node-core/errs"
)

// tapeGrowStep is the memory-map resize policy: a new tape starts at this
// size and each resize adds this fixed increment, matching the teacher's
// general philosophy of cheap, infrequent growth rather than per-write exact
// sizing.
const tapeGrowStep = 64 << 20 // 64 MiB

// maxResizeRetries bounds how many times a single write retries after
// growing the map before the writer gives up and panics (§4.3 Failure
// semantics, §7 ResizeNeeded).
const maxResizeRetries = 3

// tape is an append-only, memory-mapped byte log used for the PrunedBlobs
// and PrunableBlobs tables (§4.3). Entries are snappy-compressed before
// being appended; offsets recorded in TxInfo are offsets into the
// compressed stream.
type tape struct {
	mu       sync.Mutex
	file     *os.File
	mapping  mmap.MMap
	size     int64 // logical file size
	writeOff int64 // next write offset
}

func openTape(path string) (*tape, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, errs.Iof(err, "open tape %s", path)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errs.Iof(err, "stat tape %s", path)
	}

	t := &tape{file: f, size: info.Size(), writeOff: info.Size()}
	if t.size == 0 {
		if err := t.grow(tapeGrowStep); err != nil {
			f.Close()
			return nil, err
		}
	} else if err := t.remap(); err != nil {
		f.Close()
		return nil, err
	}
	return t, nil
}

func (t *tape) remap() error {
	if t.mapping != nil {
		if err := t.mapping.Unmap(); err != nil {
			return errs.Iof(err, "unmap tape")
		}
	}
	m, err := mmap.Map(t.file, mmap.RDWR, 0)
	if err != nil {
		return errs.Iof(err, "mmap tape")
	}
	t.mapping = m
	return nil
}

func (t *tape) grow(by int64) error {
	newSize := t.size + by
	if err := t.file.Truncate(newSize); err != nil {
		return errs.Iof(err, "truncate tape to %d", newSize)
	}
	t.size = newSize
	return t.remap()
}

// Append writes a snappy-compressed copy of data and returns its (offset,
// compressedSize) within the tape. Retries internally on a resize-needed
// condition (insufficient mapped space) up to maxResizeRetries (§4.3).
func (t *tape) Append(data []byte) (offset, size uint64, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	compressed := snappy.Encode(nil, data)

	for attempt := 0; ; attempt++ {
		if t.writeOff+int64(len(compressed)) <= t.size {
			copy(t.mapping[t.writeOff:], compressed)
			off := t.writeOff
			t.writeOff += int64(len(compressed))
			return uint64(off), uint64(len(compressed)), nil
		}
		if attempt >= maxResizeRetries {
			panic(errs.ResizeNeededf("tape exhausted resize budget (%d attempts)", maxResizeRetries))
		}
		if err := t.grow(tapeGrowStep); err != nil {
			return 0, 0, err
		}
	}
}

// Read returns the decompressed bytes at (offset, size).
func (t *tape) Read(offset, size uint64) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if offset+size > uint64(t.size) {
		return nil, errs.NotFoundf("tape offset %d+%d beyond mapped size %d", offset, size, t.size)
	}
	compressed := t.mapping[offset : offset+size]
	out, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, errs.Structuralf("corrupt tape entry at offset %d: %v", offset, err)
	}
	return out, nil
}

// Truncate rewinds the logical write offset to off without reclaiming the
// space; the bytes beyond off remain mapped. No engine path calls it: a pop
// leaves the tapes as they are.
func (t *tape) Truncate(off uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writeOff = int64(off)
}

// WriteOffset reports the current append position, i.e. the tape's logical
// length (used by DatabaseSize).
func (t *tape) WriteOffset() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return uint64(t.writeOff)
}

// Sync flushes the mapped region to disk (msync), used after a commit when
// the engine's SyncMode requires it (§6 "sync mode is configurable").
func (t *tape) Sync() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.mapping == nil {
		return nil
	}
	if err := t.mapping.Flush(); err != nil {
		return errs.Iof(err, "msync tape")
	}
	return nil
}

func (t *tape) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.mapping != nil {
		if err := t.mapping.Unmap(); err != nil {
			return err
		}
	}
	return t.file.Close()
}
