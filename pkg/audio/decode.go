package audio

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedFormat is returned when a WAV payload is not 16-bit PCM.
var ErrUnsupportedFormat = errors.New("audio: unsupported format")

// DecodeBase64 decodes a base64 audio payload. Browser recorders commonly
// send a data URL ("data:audio/wav;base64,...."); the prefix up to and
// including "base64," is stripped before decoding.
func DecodeBase64(payload string) ([]byte, error) {
	if idx := strings.Index(payload, "base64,"); idx >= 0 {
		payload = payload[idx+len("base64,"):]
	}
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, errors.New("audio: empty base64 payload")
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("audio: decode base64: %w", err)
	}
	return raw, nil
}

// ParseWAV extracts the PCM data and format from a RIFF/WAVE byte stream.
// Only uncompressed 16-bit PCM (format tag 1) is supported; anything else
// returns [ErrUnsupportedFormat]. Chunks other than "fmt " and "data" are
// skipped, so files with LIST or fact chunks parse fine.
func ParseWAV(raw []byte) (Clip, error) {
	if len(raw) < 12 || string(raw[0:4]) != "RIFF" || string(raw[8:12]) != "WAVE" {
		return Clip{}, errors.New("audio: not a RIFF/WAVE stream")
	}

	var (
		format    Format
		bitsPer   int
		data      []byte
		haveFmt   bool
		havePCM   bool
		formatTag uint16
	)

	pos := 12
	for pos+8 <= len(raw) {
		id := string(raw[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(raw[pos+4 : pos+8]))
		body := pos + 8
		if size < 0 || body+size > len(raw) {
			// Truncated chunk; take what is there for data, bail otherwise.
			if id == "data" && body < len(raw) {
				size = len(raw) - body
			} else {
				break
			}
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return Clip{}, errors.New("audio: fmt chunk too short")
			}
			formatTag = binary.LittleEndian.Uint16(raw[body : body+2])
			format.Channels = int(binary.LittleEndian.Uint16(raw[body+2 : body+4]))
			format.SampleRate = int(binary.LittleEndian.Uint32(raw[body+4 : body+8]))
			bitsPer = int(binary.LittleEndian.Uint16(raw[body+14 : body+16]))
			haveFmt = true
		case "data":
			data = raw[body : body+size]
			havePCM = true
		}

		// Chunks are word-aligned.
		pos = body + size
		if size%2 == 1 {
			pos++
		}
	}

	if !haveFmt || !havePCM {
		return Clip{}, errors.New("audio: missing fmt or data chunk")
	}
	if formatTag != 1 || bitsPer != 16 {
		return Clip{}, fmt.Errorf("%w: tag=%d bits=%d", ErrUnsupportedFormat, formatTag, bitsPer)
	}
	if format.Channels < 1 || format.Channels > 2 || format.SampleRate <= 0 {
		return Clip{}, fmt.Errorf("%w: %d channels at %d Hz", ErrUnsupportedFormat, format.Channels, format.SampleRate)
	}
	return Clip{PCM: data, Format: format}, nil
}

// DecodePayload decodes a base64 audio payload into a normalized 16 kHz mono
// clip. Raw payloads without a RIFF header are assumed to already be 16 kHz
// mono int16 PCM.
func DecodePayload(payload string) (Clip, error) {
	raw, err := DecodeBase64(payload)
	if err != nil {
		return Clip{}, err
	}
	if len(raw) >= 12 && string(raw[0:4]) == "RIFF" {
		clip, err := ParseWAV(raw)
		if err != nil {
			return Clip{}, err
		}
		return Normalize(clip, TargetFormat), nil
	}
	return Clip{PCM: raw, Format: TargetFormat}, nil
}
