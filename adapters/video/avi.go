package video

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const (
	avifHasIndex   = 0x10
	aviifKeyframe  = 0x10
	avihSize       = 56
	strhSize       = 56
	bitmapInfoSize = 40
)

var le = binary.LittleEndian

// muxAVI writes JPEG frames as a single-stream MJPEG AVI.
func muxAVI(frames [][]byte, width, height int, fps float64) []byte {
	usPerFrame := uint32(math.Round(1e6 / fps))
	rate := uint32(math.Round(fps * 1000))
	maxFrame := 0
	for _, f := range frames {
		maxFrame = max(maxFrame, len(f))
	}

	// movi list body and index entries.
	var movi bytes.Buffer
	movi.WriteString("movi")
	idx := make([]byte, 0, 16*len(frames))
	for _, f := range frames {
		offset := uint32(movi.Len())
		movi.WriteString("00dc")
		writeU32(&movi, uint32(len(f)))
		movi.Write(f)
		if len(f)%2 == 1 {
			movi.WriteByte(0)
		}
		idx = append(idx, "00dc"...)
		idx = le.AppendUint32(idx, aviifKeyframe)
		idx = le.AppendUint32(idx, offset)
		idx = le.AppendUint32(idx, uint32(len(f)))
	}

	var avih bytes.Buffer
	for _, v := range []uint32{
		usPerFrame,
		uint32(float64(maxFrame) * fps), // max bytes per second
		0,                               // padding granularity
		avifHasIndex,
		uint32(len(frames)),
		0, // initial frames
		1, // streams
		uint32(maxFrame),
		uint32(width),
		uint32(height),
		0, 0, 0, 0,
	} {
		writeU32(&avih, v)
	}

	var strh bytes.Buffer
	strh.WriteString("vids")
	strh.WriteString("MJPG")
	writeU32(&strh, 0)                   // flags
	writeU16(&strh, 0)                   // priority
	writeU16(&strh, 0)                   // language
	writeU32(&strh, 0)                   // initial frames
	writeU32(&strh, 1000)                // scale
	writeU32(&strh, rate)                // rate
	writeU32(&strh, 0)                   // start
	writeU32(&strh, uint32(len(frames))) // length
	writeU32(&strh, uint32(maxFrame))
	writeU32(&strh, math.MaxUint32) // quality: default
	writeU32(&strh, 0)              // sample size
	writeU16(&strh, 0)
	writeU16(&strh, 0)
	writeU16(&strh, uint16(width))
	writeU16(&strh, uint16(height))

	var strf bytes.Buffer
	writeU32(&strf, bitmapInfoSize)
	writeU32(&strf, uint32(width))
	writeU32(&strf, uint32(height))
	writeU16(&strf, 1)  // planes
	writeU16(&strf, 24) // bit count
	strf.WriteString("MJPG")
	writeU32(&strf, uint32(width*height*3))
	writeU32(&strf, 0)
	writeU32(&strf, 0)
	writeU32(&strf, 0)
	writeU32(&strf, 0)

	strl := list("strl", chunk("strh", strh.Bytes()), chunk("strf", strf.Bytes()))
	hdrl := list("hdrl", chunk("avih", avih.Bytes()), strl)

	var body bytes.Buffer
	body.WriteString("AVI ")
	body.Write(hdrl)
	body.Write(chunk("LIST", movi.Bytes()))
	body.Write(chunk("idx1", idx))
	return chunk("RIFF", body.Bytes())
}

func chunk(id string, data []byte) []byte {
	out := make([]byte, 0, 8+len(data)+1)
	out = append(out, id...)
	out = le.AppendUint32(out, uint32(len(data)))
	out = append(out, data...)
	if len(data)%2 == 1 {
		out = append(out, 0)
	}
	return out
}

func list(kind string, children ...[]byte) []byte {
	body := []byte(kind)
	for _, c := range children {
		body = append(body, c...)
	}
	return chunk("LIST", body)
}

func writeU32(b *bytes.Buffer, v uint32) { b.Write(le.AppendUint32(nil, v)) }
func writeU16(b *bytes.Buffer, v uint16) { b.Write(le.AppendUint16(nil, v)) }

// aviStream is what demuxAVI recovers from a file.
type aviStream struct {
	width, height int
	fps           float64
	frames        [][]byte
}

var errTruncated = errors.New("avi: truncated chunk")

// demuxAVI extracts the compressed video frames of the first video stream.
func demuxAVI(data []byte) (*aviStream, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "AVI " {
		return nil, errors.New("avi: not a RIFF AVI file")
	}
	size := int(le.Uint32(data[4:8]))
	end := min(8+size, len(data))

	s := &aviStream{}
	var usPerFrame uint32
	var scale, rate uint32
	var handler string

	var walk func(b []byte) error
	walk = func(b []byte) error {
		for len(b) >= 8 {
			id := string(b[0:4])
			n := int(le.Uint32(b[4:8]))
			if n < 0 || 8+n > len(b) {
				return errTruncated
			}
			body := b[8 : 8+n]
			switch id {
			case "LIST":
				if len(body) < 4 {
					return errTruncated
				}
				if err := walk(body[4:]); err != nil {
					return err
				}
			case "avih":
				if len(body) < 40 {
					return errTruncated
				}
				usPerFrame = le.Uint32(body[0:4])
				s.width = int(le.Uint32(body[32:36]))
				s.height = int(le.Uint32(body[36:40]))
			case "strh":
				if len(body) < 32 {
					return errTruncated
				}
				if string(body[0:4]) == "vids" && handler == "" {
					handler = string(body[4:8])
					scale = le.Uint32(body[20:24])
					rate = le.Uint32(body[24:28])
				}
			default:
				// Stream 00 compressed ("dc") or uncompressed ("db") frames.
				if len(id) == 4 && id[0:2] == "00" && (id[2:] == "dc" || id[2:] == "db") && n > 0 {
					s.frames = append(s.frames, body)
				}
			}
			adv := 8 + n + n%2
			if adv > len(b) {
				break
			}
			b = b[adv:]
		}
		return nil
	}
	if err := walk(data[12:end]); err != nil {
		return nil, err
	}

	switch {
	case scale > 0 && rate > 0:
		s.fps = float64(rate) / float64(scale)
	case usPerFrame > 0:
		s.fps = 1e6 / float64(usPerFrame)
	default:
		s.fps = defaultFPS
	}
	s.fps = clampFPS(s.fps)
	if handler != "" && !isMJPEG(handler) {
		return nil, fmt.Errorf("avi: unsupported video codec %q", handler)
	}
	return s, nil
}

func isMJPEG(fourcc string) bool {
	switch fourcc {
	case "MJPG", "mjpg", "AVRn", "LJPG", "JPGL", "jpeg", "\x00\x00\x00\x00":
		return true
	}
	return false
}
