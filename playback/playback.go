package playback

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/cwbudde/algo-granular/graph"
)

const (
	// pullFrames is the render granularity of the stream path. The
	// engine chunks it further into its own block size.
	pullFrames = 1024

	bytesPerSample = 4
	channelCount   = 2
	bytesPerFrame  = bytesPerSample * channelCount
)

// ErrOutputClosed is returned by operations on a closed output.
var ErrOutputClosed = errors.New("playback output closed")

// Output is a render sink. Start begins draining the engine, Stop
// pauses draining without releasing the device, Close releases it for
// good.
type Output interface {
	Start() error
	Stop() error
	Close() error
}

// streamReader renders engine blocks on demand and serves them as
// interleaved little-endian float32 stereo bytes. Reads past the
// buffered block trigger the next render, so the engine advances
// exactly as fast as the sink consumes.
type streamReader struct {
	engine *graph.Engine
	left   []float64
	right  []float64
	buf    []byte
	pos    int
}

func newStreamReader(e *graph.Engine) *streamReader {
	return &streamReader{
		engine: e,
		left:   make([]float64, pullFrames),
		right:  make([]float64, pullFrames),
		buf:    make([]byte, 0, pullFrames*bytesPerFrame),
	}
}

func (r *streamReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.buf) {
		if err := r.fill(); err != nil {
			return 0, err
		}
	}

	n := copy(p, r.buf[r.pos:])
	r.pos += n

	return n, nil
}

func (r *streamReader) fill() error {
	if err := r.engine.RenderStereo(r.left, r.right); err != nil {
		return err
	}

	r.buf = r.buf[:0]
	for i := range r.left {
		r.buf = appendSample(r.buf, r.left[i])
		r.buf = appendSample(r.buf, r.right[i])
	}

	r.pos = 0

	return nil
}

func appendSample(dst []byte, v float64) []byte {
	return binary.LittleEndian.AppendUint32(dst, math.Float32bits(float32(v)))
}
