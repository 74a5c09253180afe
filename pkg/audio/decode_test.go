package audio

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"testing"
)

// buildWAV assembles a minimal RIFF/WAVE byte stream around the given PCM.
func buildWAV(t *testing.T, pcm []byte, rate, channels, bits int, formatTag uint16) []byte {
	t.Helper()
	dataLen := len(pcm)
	buf := make([]byte, 44+dataLen)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataLen))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], formatTag)
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(rate))
	byteRate := rate * channels * bits / 8
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(channels*bits/8))
	binary.LittleEndian.PutUint16(buf[34:36], uint16(bits))
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataLen))
	copy(buf[44:], pcm)
	return buf
}

func TestDecodeBase64StripsDataURLPrefix(t *testing.T) {
	raw := []byte{0x01, 0x02, 0x03}
	payload := "data:audio/wav;base64," + base64.StdEncoding.EncodeToString(raw)

	got, err := DecodeBase64(payload)
	if err != nil {
		t.Fatalf("DecodeBase64() error = %v", err)
	}
	if len(got) != 3 || got[0] != 0x01 || got[2] != 0x03 {
		t.Errorf("DecodeBase64() = %v, want %v", got, raw)
	}
}

func TestDecodeBase64PlainPayload(t *testing.T) {
	raw := []byte("hello")
	got, err := DecodeBase64(base64.StdEncoding.EncodeToString(raw))
	if err != nil {
		t.Fatalf("DecodeBase64() error = %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("DecodeBase64() = %q, want %q", got, "hello")
	}
}

func TestDecodeBase64Invalid(t *testing.T) {
	if _, err := DecodeBase64("not base64!!!"); err == nil {
		t.Error("DecodeBase64() with invalid input should return an error")
	}
	if _, err := DecodeBase64(""); err == nil {
		t.Error("DecodeBase64() with empty input should return an error")
	}
}

func TestParseWAV(t *testing.T) {
	pcm := pcmFromSamples([]int16{100, -100, 300})
	wav := buildWAV(t, pcm, 16000, 1, 16, 1)

	clip, err := ParseWAV(wav)
	if err != nil {
		t.Fatalf("ParseWAV() error = %v", err)
	}
	if clip.Format.SampleRate != 16000 {
		t.Errorf("sample rate = %d, want 16000", clip.Format.SampleRate)
	}
	if clip.Format.Channels != 1 {
		t.Errorf("channels = %d, want 1", clip.Format.Channels)
	}
	if clip.SampleCount() != 3 {
		t.Errorf("sample count = %d, want 3", clip.SampleCount())
	}
}

func TestParseWAVRejectsNonPCM(t *testing.T) {
	// Format tag 3 is IEEE float.
	wav := buildWAV(t, make([]byte, 8), 16000, 1, 16, 3)
	_, err := ParseWAV(wav)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("ParseWAV() error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestParseWAVRejectsGarbage(t *testing.T) {
	if _, err := ParseWAV([]byte("definitely not audio")); err == nil {
		t.Error("ParseWAV() with garbage input should return an error")
	}
}

func TestDecodePayloadNormalizesWAV(t *testing.T) {
	// 48 kHz stereo WAV should come back as 16 kHz mono.
	pcm := make([]byte, 96*4)
	wav := buildWAV(t, pcm, 48000, 2, 16, 1)
	payload := "data:audio/wav;base64," + base64.StdEncoding.EncodeToString(wav)

	clip, err := DecodePayload(payload)
	if err != nil {
		t.Fatalf("DecodePayload() error = %v", err)
	}
	if clip.Format != TargetFormat {
		t.Errorf("format = %+v, want %+v", clip.Format, TargetFormat)
	}
}

func TestDecodePayloadRawPCMPassthrough(t *testing.T) {
	raw := pcmFromSamples([]int16{1, 2, 3, 4})
	clip, err := DecodePayload(base64.StdEncoding.EncodeToString(raw))
	if err != nil {
		t.Fatalf("DecodePayload() error = %v", err)
	}
	if clip.SampleCount() != 4 {
		t.Errorf("sample count = %d, want 4", clip.SampleCount())
	}
	if clip.Format != TargetFormat {
		t.Errorf("format = %+v, want %+v", clip.Format, TargetFormat)
	}
}
