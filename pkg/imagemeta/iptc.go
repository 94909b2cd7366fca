package imagemeta

import (
	"bytes"
	"encoding/binary"
)

// IPTC IIM record 2 dataset numbers.
const (
	datasetRecordVersion = 0x00
	datasetDateCreated   = 0x37 // 55
	datasetByline        = 0x50 // 80
	datasetBylineTitle   = 0x55 // 85
	datasetSource        = 0x73 // 115
	datasetCaption       = 0x78 // 120
)

// iptcRecord is one record-2 dataset to be written.
type iptcRecord struct {
	dataset byte
	value   []byte
}

// encodeIIM serializes record-2 datasets as an IPTC IIM stream. Each
// dataset is a 0x1C tag marker, record number, dataset number, big-endian
// length, then the value. The record-version dataset leads.
func encodeIIM(records []iptcRecord) []byte {
	var buf bytes.Buffer

	writeDataset := func(dataset byte, value []byte) {
		buf.WriteByte(0x1C)
		buf.WriteByte(0x02)
		buf.WriteByte(dataset)
		binary.Write(&buf, binary.BigEndian, uint16(len(value)))
		buf.Write(value)
	}

	writeDataset(datasetRecordVersion, []byte{0x00, 0x02})
	for _, r := range records {
		if len(r.value) == 0 {
			continue
		}
		writeDataset(r.dataset, r.value)
	}

	return buf.Bytes()
}

// encodeApp13 wraps an IPTC IIM stream in the Photoshop image-resource
// envelope carried by a JPEG APP13 segment: the "Photoshop 3.0" signature
// followed by an 8BIM resource block of type 0x0404 (IPTC-NAA).
func encodeApp13(iim []byte) []byte {
	var buf bytes.Buffer

	buf.WriteString("Photoshop 3.0\x00")
	buf.WriteString("8BIM")
	binary.Write(&buf, binary.BigEndian, uint16(0x0404))
	// Empty resource name: a zero-length Pascal string padded to two bytes.
	buf.Write([]byte{0x00, 0x00})
	binary.Write(&buf, binary.BigEndian, uint32(len(iim)))
	buf.Write(iim)
	if len(iim)%2 != 0 {
		buf.WriteByte(0x00)
	}

	return buf.Bytes()
}
