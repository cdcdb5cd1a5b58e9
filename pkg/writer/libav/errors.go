package libav

import (
	"errors"
)

var (
	errCodecNotFound          = errors.New("libav: codec not found")
	errFailedToCreateCodecCtx = errors.New("libav: failed to allocate codec context")
	errFailedToOpenCodecCtx   = errors.New("libav: failed to open codec context")
	errFailedToCreateStream   = errors.New("libav: failed to create output stream")
	errFailedToAllocFrame     = errors.New("libav: failed to allocate frame")
	errFailedToAllocSwBuf     = errors.New("libav: failed to allocate software buffer")
	errFailedToAllocPacket    = errors.New("libav: failed to allocate packet")
)
