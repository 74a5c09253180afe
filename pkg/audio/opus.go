package audio

import (
	"fmt"

	"layeh.com/gopus"
)

// Websocket clients stream 48 kHz mono Opus at 20 ms frame size.
const (
	opusSampleRate  = 48000
	opusChannels    = 1
	opusFrameSizeMs = 20
	// opusFrameSize is the number of samples per channel per 20 ms frame.
	opusFrameSize = opusSampleRate * opusFrameSizeMs / 1000 // 960
)

// OpusDecoder accumulates a stream of Opus packets into a single PCM clip.
// Each streaming connection gets its own decoder because decoder state
// carries across consecutive frames. Not safe for concurrent use.
type OpusDecoder struct {
	dec *gopus.Decoder
	pcm []byte
}

// NewOpusDecoder creates a decoder for 48 kHz mono streaming input.
func NewOpusDecoder() (*OpusDecoder, error) {
	dec, err := gopus.NewDecoder(opusSampleRate, opusChannels)
	if err != nil {
		return nil, fmt.Errorf("audio: create opus decoder: %w", err)
	}
	return &OpusDecoder{dec: dec}, nil
}

// Decode decodes one Opus packet and appends the PCM to the accumulated clip.
func (d *OpusDecoder) Decode(packet []byte) error {
	pcm, err := d.dec.Decode(packet, opusFrameSize, false)
	if err != nil {
		return fmt.Errorf("audio: opus decode: %w", err)
	}
	d.pcm = append(d.pcm, int16sToBytes(pcm)...)
	return nil
}

// Clip returns the accumulated audio normalized to [TargetFormat].
func (d *OpusDecoder) Clip() Clip {
	return Normalize(Clip{
		PCM:    d.pcm,
		Format: Format{SampleRate: opusSampleRate, Channels: opusChannels},
	}, TargetFormat)
}

// Reset discards accumulated audio so the decoder can start a new utterance.
func (d *OpusDecoder) Reset() {
	d.pcm = nil
}

// int16sToBytes converts a slice of int16 PCM samples to little-endian bytes.
func int16sToBytes(pcm []int16) []byte {
	b := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		b[i*2] = byte(s)
		b[i*2+1] = byte(s >> 8)
	}
	return b
}
