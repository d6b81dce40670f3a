//go:build unix

package atomforge

import (
	"fmt"
	"os"
	"runtime"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// the OS manages memory in fixed-size chunks called "pages"
// mmap works in whole pages, so we grab the size once at startup
// and reuse it instead of asking the OS every time
var pageSize = os.Getpagesize()

// can be overridden for testing
var segmentFinalizerFunc = segmentFinalizer

// rounds n up to the nearest page boundary; if already aligned it stays the same
// n <= 0 gets clamped to one page <- cant map zero bytes
func pageAlign(n int) int {
	if n <= 0 {
		return pageSize
	}
	return ((n-1)/pageSize + 1) * pageSize
}

// alignUp rounds off up to the next multiple of align. align must be a
// power of two.
func alignUp(off, align int) int {
	return (off + align - 1) &^ (align - 1)
}

// Segment is a file-backed MAP_SHARED mapping that regions are carved out
// of. Every process that maps the same file sees the same physical pages,
// so an Atomic or Mutex bound through one process's Segment is the same
// object as one bound through another's.
//
// Exactly one process calls CreateSegment for a given path; everyone else
// calls OpenSegment. Creation uses O_EXCL, so the race between two would-be
// creators resolves in the kernel, and regions placed on a created segment
// carry the first-bind flag while regions on an opened one do not.
//
// Owns the underlying *os.File. Safe for concurrent use after creation.
type Segment struct {
	file    *os.File
	data    []byte
	created bool

	mu     sync.Mutex
	cursor int
}

// CreateSegment creates the file at path, sizes it to at least size bytes
// (page-aligned) and maps it shared. The kernel hands out zero pages for a
// fresh file, which is what makes the first-bind zero-initialization
// contract hold. Fails with ErrSegmentExists if the file is already there.
//
// Caller must call Close when done.
func CreateSegment(path string, size int) (*Segment, error) {
	if size <= 0 {
		return nil, fmt.Errorf("atomforge: create segment: invalid size %d", size)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o600)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("atomforge: create segment %s: %w", path, ErrSegmentExists)
		}
		return nil, fmt.Errorf("atomforge: create segment: %w", err)
	}

	aligned := pageAlign(size)
	if err := f.Truncate(int64(aligned)); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("atomforge: create segment truncate: %w", err)
	}

	s, err := mapSegment(f, aligned, true)
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	return s, nil
}

// OpenSegment maps an existing segment file shared. The mapping covers the
// whole file. Regions placed on it are re-binds: the creator already
// initialized them.
//
// Caller must call Close when done.
func OpenSegment(path string) (*Segment, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("atomforge: open segment: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("atomforge: open segment stat: %w", err)
	}
	if info.Size() == 0 {
		f.Close()
		return nil, fmt.Errorf("atomforge: open segment %s: empty file", path)
	}

	s, err := mapSegment(f, int(info.Size()), false)
	if err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

func mapSegment(f *os.File, size int, created bool) (*Segment, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, size,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("atomforge: mmap %d bytes: %w", size, err)
	}

	s := &Segment{file: f, data: data, created: created}
	runtime.SetFinalizer(s, segmentFinalizerFunc)
	return s, nil
}

// Base returns the current start address of the mapping. Implements Memory.
func (s *Segment) Base() unsafe.Pointer {
	if s.data == nil {
		return nil
	}
	return unsafe.Pointer(unsafe.SliceData(s.data))
}

// Size returns the mapped length in bytes. Implements Memory.
func (s *Segment) Size() int { return len(s.data) }

// Created reports whether this process created the segment file. Regions
// from a created segment are first binds.
func (s *Segment) Created() bool { return s.created }

// Path returns the segment file's path.
func (s *Segment) Path() string { return s.file.Name() }

// Place carves the next size bytes off the segment, aligned to align, and
// returns them as a Region. The cursor is process-local: cooperating
// processes get matching offsets by placing the same sizes in the same
// order. For explicit layouts use Region instead.
func (s *Segment) Place(size, align int) (Region, error) {
	if size <= 0 || align <= 0 || align&(align-1) != 0 {
		return Region{}, fmt.Errorf("atomforge: place: invalid size %d / align %d", size, align)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data == nil {
		return Region{}, fmt.Errorf("atomforge: place: %w", ErrClosed)
	}

	off := alignUp(s.cursor, align)
	r, err := NewRegion(s, off, size, s.created)
	if err != nil {
		return Region{}, err
	}
	s.cursor = off + size
	return r, nil
}

// Region binds [off, off+size) of the segment at an explicit offset,
// bypassing the Place cursor.
func (s *Segment) Region(off, size int) (Region, error) {
	if s.data == nil {
		return Region{}, fmt.Errorf("atomforge: region: %w", ErrClosed)
	}
	return NewRegion(s, off, size, s.created)
}

// Sync flushes dirty pages back to the file via msync. Not needed for
// cross-process visibility (the pages are shared, not copied); only for
// durability of the file itself.
func (s *Segment) Sync() error {
	if s.data == nil {
		return fmt.Errorf("atomforge: sync: %w", ErrClosed)
	}
	if err := unix.Msync(s.data, unix.MS_SYNC); err != nil {
		return fmt.Errorf("atomforge: sync: %w", err)
	}
	return nil
}

// Close unmaps the segment and closes the file descriptor. Idempotent.
// Any Region or primitive bound over this segment is invalid afterwards.
func (s *Segment) Close() error {
	runtime.SetFinalizer(s, nil)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data == nil {
		return nil
	}
	data := s.data
	s.data = nil

	unmapErr := unix.Munmap(data)
	closeErr := s.file.Close()
	if unmapErr != nil {
		return fmt.Errorf("atomforge: close: %w", unmapErr)
	}
	if closeErr != nil {
		return fmt.Errorf("atomforge: close: %w", closeErr)
	}
	return nil
}

// RemoveSegment deletes a segment file. The mapping of any process that
// still has it open stays valid until that process closes it.
func RemoveSegment(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("atomforge: remove segment: %w", err)
	}
	return nil
}

func segmentFinalizer(s *Segment) {
	if s.data != nil {
		_, _ = fmt.Fprintf(os.Stderr, "atomforge: Segment for %s was garbage collected without Close()\n", s.file.Name())
		_ = s.Close()
	}
}
