package generate

import "encoding/binary"

// Speech backends return raw 16-bit mono PCM at a fixed sample rate; the
// container below is what playback surfaces expect.
const (
	wavSampleRate    = 24000
	wavChannels      = 1
	wavBitsPerSample = 16
)

// EncodeWAV wraps raw PCM bytes in a minimal RIFF/WAVE container
// (format 1 = PCM, mono, 16-bit).
func EncodeWAV(pcm []byte) []byte {
	byteRate := wavSampleRate * wavChannels * wavBitsPerSample / 8
	blockAlign := wavChannels * wavBitsPerSample / 8

	buf := make([]byte, 44+len(pcm))
	le := binary.LittleEndian

	copy(buf[0:4], "RIFF")
	le.PutUint32(buf[4:8], uint32(36+len(pcm)))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	le.PutUint32(buf[16:20], 16) // fmt chunk size
	le.PutUint16(buf[20:22], 1)  // PCM
	le.PutUint16(buf[22:24], wavChannels)
	le.PutUint32(buf[24:28], wavSampleRate)
	le.PutUint32(buf[28:32], uint32(byteRate))
	le.PutUint16(buf[32:34], uint16(blockAlign))
	le.PutUint16(buf[34:36], wavBitsPerSample)

	copy(buf[36:40], "data")
	le.PutUint32(buf[40:44], uint32(len(pcm)))
	copy(buf[44:], pcm)

	return buf
}
