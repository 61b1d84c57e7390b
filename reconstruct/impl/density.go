package impl

import (
	"bytes"
	"encoding/binary"
)

// Densities outside this range are treated as corrupt headers.
const (
	minDensity = 10
	maxDensity = 10000
)

// TIFF tags of IFD0.
const (
	exifXResolution    = 0x011a
	exifResolutionUnit = 0x0128
)

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

// imageDensity returns the horizontal resolution recorded in the image header in dots per inch,
// or fallback when the header records none.
// E.g., a PNG with pHYs 11811 px/m -> 300, a JPEG with JFIF density 118 dpcm -> 299.72
func imageDensity(data []byte, fallback float64) float64 {
	var density float64
	switch {
	case bytes.HasPrefix(data, pngSignature):
		density = pngDensity(data)
	case bytes.HasPrefix(data, []byte{0xff, 0xd8}):
		density = jpegDensity(data)
	}
	if density < minDensity || density > maxDensity {
		return fallback
	}
	return density
}

// pngDensity reads the pHYs chunk. Only the metre unit carries an absolute resolution.
func pngDensity(data []byte) float64 {
	for offset := len(pngSignature); offset+8 <= len(data); {
		length := int(binary.BigEndian.Uint32(data[offset:]))
		chunkType := string(data[offset+4 : offset+8])
		body := offset + 8
		if body+length > len(data) {
			return 0
		}
		switch chunkType {
		case "pHYs":
			if length < 9 || data[body+8] != 1 {
				return 0
			}
			return float64(binary.BigEndian.Uint32(data[body:])) * 0.0254
		case "IDAT", "IEND":
			return 0
		}
		offset = body + length + 4
	}
	return 0
}

// jpegDensity reads the APP0 JFIF segment, falling back to the resolution tags of an APP1 EXIF segment.
// JFIF unit 1 is dots per inch, 2 dots per centimetre.
func jpegDensity(data []byte) float64 {
	var exifBlock []byte
	for offset := 2; offset+4 <= len(data); {
		if data[offset] != 0xff {
			break
		}
		marker := data[offset+1]
		length := int(binary.BigEndian.Uint16(data[offset+2:]))
		segment := offset + 4
		if marker == 0xda || length < 2 || segment+length-2 > len(data) {
			break
		}
		body := data[segment : segment+length-2]
		switch {
		case marker == 0xe0 && len(body) >= 14 && bytes.HasPrefix(body, []byte("JFIF\x00")):
			x := float64(binary.BigEndian.Uint16(body[8:]))
			switch body[7] {
			case 1:
				return x
			case 2:
				return x * 2.54
			}
		case marker == 0xe1 && bytes.HasPrefix(body, []byte("Exif\x00\x00")):
			exifBlock = body[6:]
		}
		offset = segment + length - 2
	}
	return exifDensity(exifBlock)
}

// exifDensity reads XResolution and ResolutionUnit (2 inches, 3 centimetres) from IFD0 of a TIFF block.
func exifDensity(block []byte) float64 {
	if len(block) < 8 {
		return 0
	}
	var order binary.ByteOrder
	switch string(block[:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return 0
	}
	ifd := int(order.Uint32(block[4:]))
	if ifd+2 > len(block) {
		return 0
	}

	var density float64
	unit := uint16(2)
	count := int(order.Uint16(block[ifd:]))
	for i := 0; i < count; i++ {
		entry := ifd + 2 + i*12
		if entry+12 > len(block) {
			return 0
		}
		switch order.Uint16(block[entry:]) {
		case exifXResolution:
			value := int(order.Uint32(block[entry+8:]))
			if value+8 > len(block) {
				return 0
			}
			numerator, denominator := order.Uint32(block[value:]), order.Uint32(block[value+4:])
			if denominator == 0 {
				return 0
			}
			density = float64(numerator) / float64(denominator)
		case exifResolutionUnit:
			unit = order.Uint16(block[entry+8:])
		}
	}
	switch unit {
	case 2:
		return density
	case 3:
		return density * 2.54
	default:
		return 0
	}
}
