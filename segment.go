package tdms

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"maps"
)

const (
	// This segment contains metadata.
	tocContainsMetadata uint32 = 1 << 1

	// The objects contained in this segment are different from the objects in
	// the previous segment, meaning groups and channels need to be read anew.
	tocContainsNewObjectList uint32 = 1 << 2

	// This segment contains raw data.
	tocContainsRawData uint32 = 1 << 3

	// The data in this segment is interleaved. If the data is non-interleaved,
	// the data for each channel appears contiguously in the segment in its
	// entirely before the next channel's data is present. If the data is
	// interleaved, a single data point from each channel is present one at a
	// time in order. For example, if channel 1 produces data (1, 2, 3) and
	// channel 2 produces data (4, 5, 6), non-interleaved will produces segment
	// data [1, 2, 3, 4, 5, 6] while interleaved will produce [1, 4, 2, 5, 3,
	// 6].
	tocDataIsInterleaved uint32 = 1 << 5

	// If present, all data in this segment excluding the TOC bitmask itself is
	// big endian. This includes the rest of the lead-in, the metadata and the
	// raw data.
	tocIsBigEndian uint32 = 1 << 6

	// This segment contains DAQmx raw data.
	tocContainsDAQMXRawData uint32 = 1 << 7
)

const (
	rawIndexHeaderMatchesPreviousValue uint32 = 0x00_00_00_00
	rawIndexHeaderNoRawData            uint32 = 0xff_ff_ff_ff
	rawIndexHeaderFormatChangingScaler uint32 = 0x00_00_12_69

	// The NI docs say that this value is 0x00_00_13_6a, but npTDMS author
	// believes from their experience that this is not the correct value.
	// Certainly, it is not numerically next and is possibly a typo arising from
	// confusion around little endian vs. big endian.
	rawIndexHeaderDigitalLineScaler uint32 = 0x00_00_12_6a
)

const segmentIncomplete uint64 = 0xff_ff_ff_ff_ff_ff_ff_ff

const (
	leadInSize uint64 = 28
	scalerSize uint32 = 20
)

var (
	tdmsMagicBytes      = []byte{'T', 'D', 'S', 'm'}
	tdmsIndexMagicBytes = []byte{'T', 'D', 'S', 'h'}
)

type segment struct {
	offset   int64
	leadIn   *leadIn
	metadata *metadata
}

type leadIn struct {
	containsMetadata     bool
	containsRawData      bool
	containsDAQMXRawData bool
	isInterleaved        bool
	byteOrder            binary.ByteOrder
	newObjectList        bool
	nextSegmentOffset    uint64
	rawDataOffset        uint64
}

type metadata struct {
	objects map[string]object

	// The order of objects is essential for reading the data because the data
	// is present in the same order as the objects that they correspond to.
	objectOrder []string

	// Segments can contain multiple chunks of data; where the lead in/metadata
	// of the segment remains unchanged, you can simply write additional chunks
	// of data (either interleaved or non-interleaved) one after the other.
	numChunks uint64

	// chunkSize is the total number of raw data bytes per chunk, i.e. the sum
	// of every live object's totalSize. Used to find where one chunk ends and
	// the next begins.
	chunkSize uint64

	// channelsSize is the sum of every live object's sampleSize: the number of
	// bytes a single sample occupies for that object (for strings, this is the
	// same as totalSize, since a string sample has no fixed width). This is
	// the quantity interleaved strides are computed from, which is distinct
	// from chunkSize whenever any object produces more than one sample per
	// chunk.
	channelsSize uint64
}

type daqmxScalerType int

const (
	daqmxScalerTypeNone daqmxScalerType = iota
	daqmxScalerTypeFormatChanging
	daqmxScalerTypeDigitalLine
)

type object struct {
	path string

	// If index is nil, that means there's no raw data for this object.
	index      *objectIndex
	properties map[string]Property

	// propertyOrder records each property name in the order it was first
	// seen for this object, mirroring how objectOrder tracks object paths.
	propertyOrder []string
}

type objectIndex struct {
	// If scaler type is none, that means this is not DAQmx data. Otherwise, it
	// is.
	scalerType daqmxScalerType
	dataType   DataType
	numValues  uint64

	// For variable-size data types, e.g. strings, this is taken from the file
	// itself. Otherwise, it is calculated from data type size and number of
	// values. This refers to the total size of this channel in bytes for a
	// single chunk.
	totalSize uint64

	// sampleSize is the number of bytes a single sample of this object
	// occupies. For every type other than strings this is the type's fixed
	// size; for strings, which have no fixed per-sample width, it is the same
	// as totalSize (the whole chunk is one variable-length run).
	sampleSize uint64

	// Only stored for DAQmx raw data.
	scalers []daqmxScaler

	// Only stored for DAQmx raw data.
	widths []uint32

	// Offset is the absolute offset from the beginning of the file.
	offset int64

	// Stride is the distance from one data point to the next, when the data is
	// interleaved. It is equal to the size of a single datum for all objects
	// other than the current object.
	stride int64
}

// dataChunk is similar to objectIndex, but a single object index can
// correspond to multiple chunks whereas a single dataChunk instance
// corresponds to a single raw data chunk in the TDMS file.
//
// Note that a dataChunk instance is specific to an individual object, meaning
// a segment in a TDMS file with 2 channels and 3 chunks will have 6 dataChunk
// instances corresponding to it.
type dataChunk struct {
	// offset is absolute from the start of the file
	offset        int64
	isInterleaved bool
	order         binary.ByteOrder
	size          uint64
	numValues     uint64
	stride        int64
}

type daqmxScaler struct {
	dataType DataType

	// The documentation is very unclear about what these values actually mean.
	// It seems clear that "rawBufferIndex" here means index in the i, j way
	// instead of the raw data index, which contains metadata about the data
	// positioning, type, etc.
	rawBufferIndex            uint32
	rawByteOffsetWithinStride uint32
	sampleFormatBitmap        uint32
	scaleID                   uint32
}

// readSegmentLeadIn reads the "lead in" data for a segment, which contains
// flags telling you how to read the rest of the segment. Metadata carried over
// from the previous segment is resolved later, by readSegmentMetadata.
func (t *File) readSegmentLeadIn() (*leadIn, error) {
	leadInBytes := make([]byte, leadInSize)
	if _, err := io.ReadFull(t.f, leadInBytes); err != nil {
		if errors.Is(err, io.EOF) {
			// Clean stop: nothing more to read at a segment boundary.
			return nil, io.EOF
		}
		return nil, errors.Join(ErrReadFailed, err)
	}

	magicBytes := leadInBytes[:4]
	if t.isIndex {
		if !bytes.Equal(magicBytes, tdmsIndexMagicBytes) {
			return nil, errors.Join(ErrInvalidFileFormat, errors.New("invalid TDSh index magic bytes"))
		}
	} else if !bytes.Equal(magicBytes, tdmsMagicBytes) {
		return nil, errors.Join(ErrInvalidFileFormat, errors.New("invalid TDSm magic bytes"))
	}

	li := leadIn{
		byteOrder: binary.LittleEndian,
	}

	// TOC bitmask is always little endian, even if it contains the flag
	// indicating the rest of the segment is big endian.
	tocMask := binary.LittleEndian.Uint32(leadInBytes[4:])

	if tocMask&tocContainsMetadata != 0 {
		li.containsMetadata = true
	}
	if tocMask&tocContainsRawData != 0 {
		li.containsRawData = true
	}
	if tocMask&tocContainsDAQMXRawData != 0 {
		li.containsDAQMXRawData = true
	}
	if tocMask&tocDataIsInterleaved != 0 {
		li.isInterleaved = true
	}
	if tocMask&tocIsBigEndian != 0 {
		li.byteOrder = binary.BigEndian
	}
	if tocMask&tocContainsNewObjectList != 0 {
		li.newObjectList = true
	}

	version := li.byteOrder.Uint32(leadInBytes[8:])
	if version != 4712 && version != 4713 {
		return nil, ErrUnsupportedVersion
	}

	li.nextSegmentOffset = li.byteOrder.Uint64(leadInBytes[12:])
	li.rawDataOffset = li.byteOrder.Uint64(leadInBytes[20:])

	if li.newObjectList && t.logger != nil {
		t.logger.Debug("segment declares a new object list")
	}

	if li.containsDAQMXRawData && t.logger != nil {
		t.logger.Warn("segment contains DAQmx raw data, which is captured but never decoded")
	}

	return &li, nil
}

// readSegmentMetadata reads the object table for a single segment, resolving
// the live object list (carry-over from prevSegment, or a fresh list) and
// computing each object's chunk layout.
func (t *File) readSegmentMetadata(segmentOffset int64, li *leadIn, prevSegment *segment) (*metadata, error) {
	numObjects, err := readUint32(t.f, li.byteOrder)
	if err != nil {
		return nil, err
	}

	m := metadata{
		objects:     make(map[string]object, numObjects),
		objectOrder: make([]string, 0, numObjects),
	}

	if !li.newObjectList {
		if prevSegment == nil {
			return nil, fmt.Errorf("%w: segment has no new object list but there is no prior segment", ErrNoPreviousObject)
		}

		for _, existingObjPath := range prevSegment.metadata.objectOrder {
			m.objectOrder = append(m.objectOrder, existingObjPath)
			existingObj := prevSegment.metadata.objects[existingObjPath]
			if existingObj.index != nil {
				// This segment sets its own offset and stride on the index
				// below, so it must not share the previous segment's copy.
				indexCopy := *existingObj.index
				existingObj.index = &indexCopy
			}
			m.objects[existingObjPath] = existingObj
		}
	}

	for i := 0; i < int(numObjects); i++ {
		obj, err := t.readObject(li, prevSegment)
		if err != nil {
			return nil, fmt.Errorf("error reading object %d: %w", i, err)
		}

		// If a TDMS file is malformatted by having multiple objects with the
		// same path, this will overwrite the object with the last value in the
		// metadata. This is acceptable as this would be against the spec
		// anyways.
		if existingObj, ok := m.objects[obj.path]; ok {
			// If new object has no raw data, we keep the raw data index from
			// the previous segment.
			if obj.index != nil {
				existingObj.index = obj.index
			}

			// New properties get added to the map while existing properties get
			// updated; properties not mentioned in the latest segment are
			// unchanged.
			existingObj.propertyOrder = mergeProperties(existingObj.properties, existingObj.propertyOrder, obj.properties, obj.propertyOrder)

			m.objects[obj.path] = existingObj
		} else {
			// You can still add new objects to the list without the new
			// object list flag.
			m.objectOrder = append(m.objectOrder, obj.path)
			m.objects[obj.path] = *obj
		}

		// If this object already exists in the file's collection of objects
		// (which may happen even if new object list is set, since the set of
		// objects across the whole file keeps growing), merge properties and
		// replace the raw data index.
		if existingObj, ok := t.objects[obj.path]; ok {
			if obj.index != nil {
				existingObj.index = obj.index
			}

			existingObj.propertyOrder = mergeProperties(existingObj.properties, existingObj.propertyOrder, obj.properties, obj.propertyOrder)

			t.objects[obj.path] = existingObj
		} else {
			rootObj := *obj

			rootObj.properties = make(map[string]Property, len(obj.properties))
			rootObj.propertyOrder = append([]string(nil), obj.propertyOrder...)
			maps.Copy(rootObj.properties, obj.properties)

			t.objects[obj.path] = rootObj
			t.objectOrder = append(t.objectOrder, obj.path)
		}
	}

	// Calculate the number of chunks based on the next segment offset and
	// the total size of each chunk. chunkSize and channelsSize agree for a
	// non-interleaved segment where every object produces exactly one sample
	// per chunk, but diverge as soon as an object carries more than one
	// sample per chunk (chunkSize grows with sample count; channelsSize does
	// not).
	m.chunkSize = 0
	m.channelsSize = 0
	for _, obj := range m.objects {
		if obj.index != nil {
			m.chunkSize += obj.index.totalSize
			m.channelsSize += obj.index.sampleSize
		}
	}

	if m.chunkSize == 0 {
		// No object in this segment carries raw data (e.g. a properties-only
		// segment); there's nothing more to compute.
		return &m, nil
	}

	totalRawDataSize := li.nextSegmentOffset - li.rawDataOffset
	if li.nextSegmentOffset == segmentIncomplete {
		rawDataAbsolutePosition := uint64(segmentOffset) + leadInSize + li.rawDataOffset
		if rawDataAbsolutePosition > uint64(t.size) {
			return nil, fmt.Errorf("%w: segment's raw data starts past the end of the file", ErrInvalidFileFormat)
		}
		totalRawDataSize = uint64(t.size) - rawDataAbsolutePosition
	}

	// A non-zero remainder here is tolerated: it means the final chunk is
	// only partially written, which we simply don't expose as data.
	m.numChunks = totalRawDataSize / m.chunkSize

	// Calculate the offset from the start of the segment to the first data
	// point for the object, as well as the "stride" between successive data
	// points when the data is interleaved. The stride isn't useful when the
	// data is not interleaved, but it's cheap to calculate.
	//
	// For interleaved data, a single sample from every live object appears in
	// turn before the next round of samples starts, so the position advances
	// by one sample's width (sampleSize) and the stride to the object's next
	// sample is the combined width of one sample from every other live
	// object (channelsSize - sampleSize). For non-interleaved data, each
	// object's whole chunk is written contiguously, so the position advances
	// by the object's full chunk size (totalSize) instead.
	dataOffset := segmentOffset + int64(leadInSize+li.rawDataOffset)
	for _, objectPath := range m.objectOrder {
		obj := m.objects[objectPath]
		if obj.index == nil || obj.index.totalSize == 0 {
			continue
		}

		obj.index.offset = dataOffset
		obj.index.stride = int64(m.channelsSize - obj.index.sampleSize)

		if li.isInterleaved {
			dataOffset += int64(obj.index.sampleSize)
		} else {
			dataOffset += int64(obj.index.totalSize)
		}
	}

	return &m, nil
}

// readObject reads a single object entry (path, raw-data index, properties)
// from the current segment's metadata block.
func (t *File) readObject(li *leadIn, prevSegment *segment) (*object, error) {
	obj := object{}
	var err error

	obj.path, err = readString(t.f, li.byteOrder)
	if err != nil {
		return nil, err
	}

	rawDataIndexHeader, err := readUint32(t.f, li.byteOrder)
	if err != nil {
		return nil, err
	}

	rawDataIndexPresent := false

	switch rawDataIndexHeader {
	case rawIndexHeaderNoRawData:
		obj.index = nil
		rawDataIndexPresent = false
	case rawIndexHeaderMatchesPreviousValue:
		if prevSegment == nil {
			return nil, fmt.Errorf("%w: object %q matches previous value but there is no prior segment", ErrNoPreviousObject, obj.path)
		}

		existingObj, ok := prevSegment.metadata.objects[obj.path]
		if !ok {
			return nil, fmt.Errorf("%w: object %q matches previous value but was not present in the prior segment", ErrNoPreviousObject, obj.path)
		}

		// Copy the index: the segment's offset and stride are set on it later,
		// and the previous segment's index must keep its own.
		if existingObj.index != nil {
			indexCopy := *existingObj.index
			obj.index = &indexCopy
		}
		rawDataIndexPresent = false
	case rawIndexHeaderFormatChangingScaler:
		obj.index = &objectIndex{scalerType: daqmxScalerTypeFormatChanging}
		rawDataIndexPresent = true
	case rawIndexHeaderDigitalLineScaler:
		obj.index = &objectIndex{scalerType: daqmxScalerTypeDigitalLine}
		rawDataIndexPresent = true
	default:
		// Value is the length of the raw data index. This value seems pointless
		// as the raw data index at this point is always 20 = 0x14 bytes in
		// length (including the header), or 28 for strings, which add an 8-byte
		// total size. I guess it's just to differentiate it
		// from the special values above, although it seems they should've then
		// used a special value to indicate "this is a normal raw data index".
		// It's probably historical.
		obj.index = &objectIndex{scalerType: daqmxScalerTypeNone}
		rawDataIndexPresent = true
	}

	if rawDataIndexPresent {
		// The normal index is always 16 bytes long so just read it all at once.
		rawDataIndexBytes := make([]byte, 16)
		if _, err := io.ReadFull(t.f, rawDataIndexBytes); err != nil {
			return nil, errors.Join(ErrReadFailed, err)
		}

		obj.index.dataType = DataType(li.byteOrder.Uint32(rawDataIndexBytes))

		// It is explicitly prohibited to have an interleaved segment with
		// variable-width data types.
		if obj.index.dataType == DataTypeString && li.isInterleaved {
			return nil, fmt.Errorf(
				"%w: interleaved segments are not allowed with variable-width data types",
				ErrInvalidFileFormat,
			)
		}

		dimension := li.byteOrder.Uint32(rawDataIndexBytes[4:8])
		if dimension != 1 {
			return nil, fmt.Errorf("%w: raw data index dimension must be 1", ErrInvalidFileFormat)
		}

		obj.index.numValues = li.byteOrder.Uint64(rawDataIndexBytes[8:16])

		if obj.index.scalerType == daqmxScalerTypeNone {
			// The total size is only present when the data size is variable,
			// e.g. is a string.
			if obj.index.dataType == DataTypeString {
				obj.index.totalSize, err = readUint64(t.f, li.byteOrder)
				if err != nil {
					return nil, errors.Join(ErrReadFailed, err)
				}
				obj.index.sampleSize = obj.index.totalSize
			} else {
				size, err := obj.index.dataType.Size()
				if err != nil {
					return nil, err
				}
				obj.index.totalSize = obj.index.numValues * uint64(size)
				obj.index.sampleSize = uint64(size)
			}
		} else {
			if t.logger != nil {
				t.logger.Warnw("object uses a DAQmx scaler", "path", obj.path)
			}

			numScalers, err := readUint32(t.f, li.byteOrder)
			if err != nil {
				return nil, errors.Join(ErrReadFailed, err)
			}

			obj.index.scalers = make([]daqmxScaler, numScalers)

			scalersBytes := make([]byte, scalerSize*numScalers)
			if _, err := io.ReadFull(t.f, scalersBytes); err != nil {
				return nil, errors.Join(ErrReadFailed, err)
			}

			for i := range numScalers {
				scalerBytes := scalersBytes[i*scalerSize : (i+1)*scalerSize]

				scaler := &obj.index.scalers[i]
				scaler.dataType = DataType(li.byteOrder.Uint32(scalerBytes))
				scaler.rawBufferIndex = li.byteOrder.Uint32(scalerBytes[4:8])
				scaler.rawByteOffsetWithinStride = li.byteOrder.Uint32(scalerBytes[8:12])
				scaler.sampleFormatBitmap = li.byteOrder.Uint32(scalerBytes[12:16])
				scaler.scaleID = li.byteOrder.Uint32(scalerBytes[16:20])
			}

			numWidths, err := readUint32(t.f, li.byteOrder)
			if err != nil {
				return nil, errors.Join(ErrReadFailed, err)
			}

			obj.index.widths = make([]uint32, numWidths)

			widthsBytes := make([]byte, 4*numWidths)
			if _, err := io.ReadFull(t.f, widthsBytes); err != nil {
				return nil, errors.Join(ErrReadFailed, err)
			}

			for i := range numWidths {
				widthBytes := widthsBytes[i*4:]
				obj.index.widths[i] = li.byteOrder.Uint32(widthBytes)
			}
		}
	}

	numProps, err := readUint32(t.f, li.byteOrder)
	if err != nil {
		return nil, fmt.Errorf("failed to read number of properties: %w", err)
	}

	obj.properties = make(map[string]Property, numProps)
	obj.propertyOrder = make([]string, 0, numProps)
	for range numProps {
		propName, err := readString(t.f, li.byteOrder)
		if err != nil {
			return nil, fmt.Errorf("failed to read property name: %w", err)
		}

		propDataTypeInt, err := readUint32(t.f, li.byteOrder)
		if err != nil {
			return nil, fmt.Errorf("failed to read property data type: %w", err)
		}

		propDataType := DataType(propDataTypeInt)

		value, err := readPropertyValue(propDataType, t.f, li.byteOrder)
		if err != nil {
			return nil, fmt.Errorf("failed to read property %q value: %w", propName, err)
		}

		if _, exists := obj.properties[propName]; !exists {
			obj.propertyOrder = append(obj.propertyOrder, propName)
		}

		obj.properties[propName] = Property{
			Name:     propName,
			TypeCode: propDataType,
			Value:    value,
		}
	}

	return &obj, nil
}
