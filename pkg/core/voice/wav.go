// Package voice holds audio framing helpers shared by speech rendering.
package voice

import "encoding/binary"

// Common output format for rendered speech.
const (
	SpeechSampleRate    = 48000
	SpeechBitsPerSample = 16
	SpeechChannels      = 1
)

// WAVStreamHeader returns a 44-byte RIFF/WAVE header describing a linear PCM
// stream. The RIFF and data chunk sizes are placeholders because the stream
// is unbounded; players treat the oversized values as "read until EOF".
func WAVStreamHeader(sampleRate, bitsPerSample, channels int) []byte {
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	header := make([]byte, 44)

	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], 0xFFFFFFFF) // placeholder: stream length unknown
	copy(header[8:12], "WAVE")

	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16) // sub-chunk size (PCM)
	binary.LittleEndian.PutUint16(header[20:22], 1)  // audio format (1 = PCM)
	binary.LittleEndian.PutUint16(header[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:36], uint16(bitsPerSample))

	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], 0xFFFFFFFF) // placeholder

	return header
}

// SpeechStreamHeader returns the header for the service's fixed speech
// output format: mono 16-bit 48kHz PCM.
func SpeechStreamHeader() []byte {
	return WAVStreamHeader(SpeechSampleRate, SpeechBitsPerSample, SpeechChannels)
}
