package tdms

import (
	"bytes"
	"encoding/binary"
	"math"
)

// The helpers in this file assemble raw TDMS segment bytes by hand, so tests
// can exercise the indexer against exact on-disk layouts (per scenario)
// without shipping binary fixture files.

type testProp struct {
	name     string
	typeCode DataType
	raw      []byte
}

func propString(order binary.ByteOrder, name, value string) testProp {
	return testProp{name: name, typeCode: DataTypeString, raw: encodeStringValue(order, value)}
}

func propFloat64(order binary.ByteOrder, name string, value float64) testProp {
	raw := make([]byte, 8)
	order.PutUint64(raw, math.Float64bits(value))
	return testProp{name: name, typeCode: DataTypeFloat64, raw: raw}
}

func propInt32(order binary.ByteOrder, name string, value int32) testProp {
	raw := make([]byte, 4)
	order.PutUint32(raw, uint32(value))
	return testProp{name: name, typeCode: DataTypeInt32, raw: raw}
}

func encodeStringValue(order binary.ByteOrder, value string) []byte {
	var buf bytes.Buffer
	lenBytes := make([]byte, 4)
	order.PutUint32(lenBytes, uint32(len(value)))
	buf.Write(lenBytes)
	buf.WriteString(value)
	return buf.Bytes()
}

func writeString(buf *bytes.Buffer, order binary.ByteOrder, s string) {
	lenBytes := make([]byte, 4)
	order.PutUint32(lenBytes, uint32(len(s)))
	buf.Write(lenBytes)
	buf.WriteString(s)
}

func writeUint32(buf *bytes.Buffer, order binary.ByteOrder, v uint32) {
	b := make([]byte, 4)
	order.PutUint32(b, v)
	buf.Write(b)
}

func writeUint64(buf *bytes.Buffer, order binary.ByteOrder, v uint64) {
	b := make([]byte, 8)
	order.PutUint64(b, v)
	buf.Write(b)
}

// normalIndex builds the 16-byte raw-data-index body (data type, dimension,
// number of values) that follows a "normal" raw-data-index-header.
func normalIndex(order binary.ByteOrder, dataType DataType, numValues uint64) []byte {
	buf := make([]byte, 16)
	order.PutUint32(buf[0:4], uint32(dataType))
	order.PutUint32(buf[4:8], 1)
	order.PutUint64(buf[8:16], numValues)
	return buf
}

// objectSpec describes one entry in a segment's object table.
type objectSpec struct {
	path            string
	header          uint32
	index           []byte // nil unless header names a "normal" index
	stringTotalSize *uint64
	properties      []testProp
}

func noRawDataObject(path string, properties ...testProp) objectSpec {
	return objectSpec{path: path, header: rawIndexHeaderNoRawData, properties: properties}
}

func matchesPreviousObject(path string, properties ...testProp) objectSpec {
	return objectSpec{path: path, header: rawIndexHeaderMatchesPreviousValue, properties: properties}
}

func dataObject(order binary.ByteOrder, path string, dataType DataType, numValues uint64, properties ...testProp) objectSpec {
	return objectSpec{
		path:       path,
		header:     20, // any value other than the four special discriminators
		index:      normalIndex(order, dataType, numValues),
		properties: properties,
	}
}

func stringDataObject(order binary.ByteOrder, path string, numValues uint64, totalSize uint64, properties ...testProp) objectSpec {
	size := totalSize
	return objectSpec{
		path:            path,
		header:          28,
		index:           normalIndex(order, DataTypeString, numValues),
		stringTotalSize: &size,
		properties:      properties,
	}
}

func encodeObject(order binary.ByteOrder, obj objectSpec) []byte {
	var buf bytes.Buffer
	writeString(&buf, order, obj.path)
	writeUint32(&buf, order, obj.header)
	if obj.index != nil {
		buf.Write(obj.index)
	}
	if obj.stringTotalSize != nil {
		writeUint64(&buf, order, *obj.stringTotalSize)
	}
	writeUint32(&buf, order, uint32(len(obj.properties)))
	for _, prop := range obj.properties {
		writeString(&buf, order, prop.name)
		writeUint32(&buf, order, uint32(prop.typeCode))
		buf.Write(prop.raw)
	}
	return buf.Bytes()
}

func encodeMetadata(order binary.ByteOrder, objects []objectSpec) []byte {
	var buf bytes.Buffer
	writeUint32(&buf, order, uint32(len(objects)))
	for _, obj := range objects {
		buf.Write(encodeObject(order, obj))
	}
	return buf.Bytes()
}

// segmentSpec captures everything needed to assemble one on-disk segment.
type segmentSpec struct {
	newObjectList bool
	interleaved   bool
	bigEndian     bool
	objects       []objectSpec
	rawData       []byte

	// overrideNextSegmentOffset, when non-nil, replaces the computed
	// next-segment offset. Used to simulate a corrupted tail.
	overrideNextSegmentOffset *uint64
}

func (s segmentSpec) byteOrder() binary.ByteOrder {
	if s.bigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

func buildSegment(spec segmentSpec) []byte {
	order := spec.byteOrder()

	toc := tocContainsMetadata
	if spec.newObjectList {
		toc |= tocContainsNewObjectList
	}
	if len(spec.rawData) > 0 {
		toc |= tocContainsRawData
	}
	if spec.interleaved {
		toc |= tocDataIsInterleaved
	}
	if spec.bigEndian {
		toc |= tocIsBigEndian
	}

	metadata := encodeMetadata(order, spec.objects)

	nextSegmentOffset := uint64(len(metadata) + len(spec.rawData))
	if spec.overrideNextSegmentOffset != nil {
		nextSegmentOffset = *spec.overrideNextSegmentOffset
	}
	rawDataOffset := uint64(len(metadata))

	var buf bytes.Buffer
	buf.Write(tdmsMagicBytes)
	writeUint32(&buf, binary.LittleEndian, toc)
	writeUint32(&buf, order, 4713)
	writeUint64(&buf, order, nextSegmentOffset)
	writeUint64(&buf, order, rawDataOffset)
	buf.Write(metadata)
	buf.Write(spec.rawData)

	return buf.Bytes()
}

func encodeFloat64s(order binary.ByteOrder, values []float64) []byte {
	buf := make([]byte, 8*len(values))
	for i, v := range values {
		order.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

func encodeInt16s(order binary.ByteOrder, values []int16) []byte {
	buf := make([]byte, 2*len(values))
	for i, v := range values {
		order.PutUint16(buf[i*2:], uint16(v))
	}
	return buf
}

func encodeInt32s(order binary.ByteOrder, values []int32) []byte {
	buf := make([]byte, 4*len(values))
	for i, v := range values {
		order.PutUint32(buf[i*4:], uint32(v))
	}
	return buf
}

func interleaveInt16(a, b []int16) []byte {
	buf := make([]byte, 0, 4*len(a))
	for i := range a {
		var pair [4]byte
		binary.LittleEndian.PutUint16(pair[0:2], uint16(a[i]))
		binary.LittleEndian.PutUint16(pair[2:4], uint16(b[i]))
		buf = append(buf, pair[:]...)
	}
	return buf
}
