package tdms

import (
	"bufio"
	"io"

	"go.uber.org/zap"
)

// openOptions collects the configuration gathered from a caller's
// [OpenOption] values.
type openOptions struct {
	logger     *zap.SugaredLogger
	bufferSize int
}

// OpenOption configures [Open] or [New].
type OpenOption func(*openOptions)

// WithLogger attaches a structured logger to the [File]. By default a File
// logs nothing; passing a logger here causes the indexer to emit Debug
// messages for new-object-list resets and Warn messages when it recovers from
// an incomplete tail segment or encounters a DAQmx-scaled object.
func WithLogger(logger *zap.SugaredLogger) OpenOption {
	return func(opts *openOptions) {
		opts.logger = logger
	}
}

// WithBufferSize wraps the reader passed to [New] in a buffered reader of the
// given size. Useful when the underlying [io.ReadSeeker] does its own I/O per
// call (e.g. an unbuffered *os.File) and the caller expects many small reads,
// as the indexer performs while walking a segment's object table.
func WithBufferSize(size int) OpenOption {
	return func(opts *openOptions) {
		opts.bufferSize = size
	}
}

// bufferedReadSeeker adds read buffering on top of an io.ReadSeeker. Seeking
// discards the buffer, since bufio.Reader has no way to know how far a seek
// moved the underlying stream relative to what it has already buffered.
type bufferedReadSeeker struct {
	r   io.ReadSeeker
	buf *bufio.Reader
}

func newBufferedReadSeeker(r io.ReadSeeker, size int) *bufferedReadSeeker {
	return &bufferedReadSeeker{
		r:   r,
		buf: bufio.NewReaderSize(r, size),
	}
}

func (b *bufferedReadSeeker) Read(p []byte) (int, error) {
	return b.buf.Read(p)
}

func (b *bufferedReadSeeker) Seek(offset int64, whence int) (int64, error) {
	if whence == io.SeekCurrent {
		// The underlying reader is ahead of the caller by whatever is still
		// buffered.
		offset -= int64(b.buf.Buffered())
	}
	pos, err := b.r.Seek(offset, whence)
	if err != nil {
		return pos, err
	}
	b.buf.Reset(b.r)
	return pos, nil
}
