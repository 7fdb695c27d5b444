package video

import "errors"

// defaultFPS is the frame rate assumed for raw MJPEG streams, which carry
// no timing of their own.
const defaultFPS = 25.0

// splitMJPEG cuts a concatenated JPEG stream into frames by walking the
// marker structure, so 0xFFD9 bytes inside segments are never mistaken for
// an end of image.
func splitMJPEG(data []byte) ([][]byte, error) {
	var frames [][]byte
	i := 0
	for {
		start := indexSOI(data, i)
		if start < 0 {
			break
		}
		end, err := jpegEnd(data, start)
		if err != nil {
			return nil, err
		}
		frames = append(frames, data[start:end])
		i = end
	}
	if len(frames) == 0 {
		return nil, errors.New("mjpeg: no JPEG frames found")
	}
	return frames, nil
}

func indexSOI(data []byte, from int) int {
	for i := from; i+1 < len(data); i++ {
		if data[i] == 0xFF && data[i+1] == 0xD8 {
			return i
		}
	}
	return -1
}

// jpegEnd returns the offset just past the EOI marker of the image that
// starts at start.
func jpegEnd(data []byte, start int) (int, error) {
	i := start + 2
	for {
		// Find the next marker, skipping fill bytes.
		if i+1 >= len(data) || data[i] != 0xFF {
			return 0, errors.New("mjpeg: truncated frame")
		}
		for i+1 < len(data) && data[i+1] == 0xFF {
			i++
		}
		if i+1 >= len(data) {
			return 0, errors.New("mjpeg: truncated frame")
		}
		marker := data[i+1]
		i += 2
		switch {
		case marker == 0xD9: // EOI
			return i, nil
		case marker == 0x01 || (marker >= 0xD0 && marker <= 0xD7):
			continue // standalone markers
		}
		if i+1 >= len(data) {
			return 0, errors.New("mjpeg: truncated frame")
		}
		segLen := int(data[i])<<8 | int(data[i+1])
		if segLen < 2 || i+segLen > len(data) {
			return 0, errors.New("mjpeg: bad segment length")
		}
		i += segLen
		if marker != 0xDA { // SOS is followed by entropy-coded data
			continue
		}
		for {
			if i+1 >= len(data) {
				return 0, errors.New("mjpeg: truncated scan")
			}
			if data[i] == 0xFF {
				next := data[i+1]
				if next != 0x00 && (next < 0xD0 || next > 0xD7) {
					break
				}
				i += 2
				continue
			}
			i++
		}
	}
}
