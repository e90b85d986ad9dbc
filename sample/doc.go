// Package sample provides immutable multi-channel sample buffers and
// WAV/MP3 file codecs for feeding the granular engine.
//
// A [Buffer] is borrowed, never owned, by the voices that read it: the
// engine only performs fractional-position reads and never mutates the
// data. Decoding keeps the file's native sample rate; rate conversion
// happens at read time inside the render engine.
package sample
