package atomforge

import "errors"

var (
	ErrTooSmall      = errors.New("atomforge: region too small")
	ErrUnaligned     = errors.New("atomforge: region not aligned")
	ErrOutOfBounds   = errors.New("atomforge: region out of bounds")
	ErrUnsupported   = errors.New("atomforge: not supported on this platform")
	ErrOverflow      = errors.New("atomforge: integer overflow")
	ErrNotOwner      = errors.New("atomforge: mutex not held by this process")
	ErrOwnerDied     = errors.New("atomforge: previous mutex owner died")
	ErrClosed        = errors.New("atomforge: segment is closed")
	ErrSegmentExists = errors.New("atomforge: segment already exists")
)
