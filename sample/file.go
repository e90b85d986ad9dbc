package sample

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
)

// Load decodes a WAV or MP3 file into a buffer at the file's native
// sample rate. The format is chosen by file extension.
func Load(path string) (*Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sample file: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return DecodeWAV(f)
	case ".mp3":
		return DecodeMP3(f)
	default:
		return nil, fmt.Errorf("unsupported sample format: %s", filepath.Ext(path))
	}
}

// DecodeWAV decodes PCM WAV data from r.
func DecodeWAV(r io.ReadSeeker) (*Buffer, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, fmt.Errorf("invalid WAV data")
	}

	if err := d.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("seek PCM chunk: %w", err)
	}

	format := d.Format()
	bits := int(d.SampleBitDepth())

	if bits == 0 {
		return nil, fmt.Errorf("unknown WAV bit depth")
	}

	bytesPerSample := (bits-1)/8 + 1
	samples := int(d.PCMLen()) / bytesPerSample

	buf := &audio.IntBuffer{
		Format:         format,
		Data:           make([]int, samples),
		SourceBitDepth: bits,
	}

	n, err := d.PCMBuffer(buf)
	if err != nil {
		return nil, fmt.Errorf("decode WAV PCM: %w", err)
	}

	if n < samples {
		samples = n
	}

	channels := format.NumChannels
	frames := samples / channels
	if frames == 0 {
		return nil, fmt.Errorf("WAV data holds no complete frame")
	}

	scale := 1.0 / math.Pow(2, float64(bits-1))
	data := make([][]float64, channels)

	for ch := range data {
		data[ch] = make([]float64, frames)
	}

	for i := range frames {
		for ch := range channels {
			data[ch][i] = float64(buf.Data[i*channels+ch]) * scale
		}
	}

	return &Buffer{data: data, rate: float64(format.SampleRate)}, nil
}

// DecodeMP3 decodes MP3 data from r. The decoder always produces
// 16-bit little-endian stereo frames.
func DecodeMP3(r io.Reader) (*Buffer, error) {
	d, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("decode MP3 header: %w", err)
	}

	raw, err := io.ReadAll(d)
	if err != nil {
		return nil, fmt.Errorf("decode MP3 stream: %w", err)
	}

	frames := len(raw) / 4
	if frames == 0 {
		return nil, fmt.Errorf("MP3 data holds no complete frame")
	}

	left := make([]float64, frames)
	right := make([]float64, frames)

	for i := range frames {
		l := int16(binary.LittleEndian.Uint16(raw[i*4:]))
		r := int16(binary.LittleEndian.Uint16(raw[i*4+2:]))
		left[i] = float64(l) / 32768
		right[i] = float64(r) / 32768
	}

	return &Buffer{data: [][]float64{left, right}, rate: float64(d.SampleRate())}, nil
}

// WriteWAV writes a stereo pair of float64 signals to path as 16-bit
// PCM WAV. Samples are clamped to [-1, 1] before quantization.
func WriteWAV(path string, left, right []float64, sampleRate float64) error {
	if len(left) != len(right) {
		return fmt.Errorf("channel lengths must match: %d != %d", len(left), len(right))
	}

	if math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) || sampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive: %f", sampleRate)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create WAV file: %w", err)
	}

	enc := wav.NewEncoder(f, int(sampleRate), 16, 2, 1)

	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: 2,
			SampleRate:  int(sampleRate),
		},
		Data:           make([]int, 2*len(left)),
		SourceBitDepth: 16,
	}

	for i := range left {
		buf.Data[i*2] = quantize16(left[i])
		buf.Data[i*2+1] = quantize16(right[i])
	}

	if err := enc.Write(buf); err != nil {
		f.Close()
		return fmt.Errorf("write WAV data: %w", err)
	}

	if err := enc.Close(); err != nil {
		f.Close()
		return fmt.Errorf("finalize WAV file: %w", err)
	}

	return f.Close()
}

func quantize16(v float64) int {
	if v > 1 {
		v = 1
	} else if v < -1 {
		v = -1
	}

	return int(v * 32767)
}
