// Package audio decodes and normalizes recorded utterance audio. Clients
// upload audio as a base64 data URL (typically WAV captured in the browser),
// or stream raw Opus packets over a websocket; either way the pipeline wants
// 16 kHz mono little-endian int16 PCM, which is what [Normalize] produces.
package audio

// Format describes the sample rate and channel count of a PCM buffer.
type Format struct {
	SampleRate int
	Channels   int
}

// Clip is a decoded audio buffer: little-endian int16 PCM plus its format.
type Clip struct {
	PCM    []byte
	Format Format
}

// TargetFormat is the format speech recognition expects: 16 kHz mono.
var TargetFormat = Format{SampleRate: 16000, Channels: 1}

// Duration helpers operate on int16 PCM byte counts.

// SampleCount returns the number of samples per channel in the clip.
func (c Clip) SampleCount() int {
	if c.Format.Channels == 0 {
		return 0
	}
	return len(c.PCM) / 2 / c.Format.Channels
}
