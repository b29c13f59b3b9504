package tdms

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func openBytes(t *testing.T, data []byte, opts ...OpenOption) *File {
	t.Helper()
	f, err := New(bytes.NewReader(data), false, int64(len(data)), opts...)
	require.NoError(t, err)
	return f
}

// Scenario 1: hello-world double.
func TestHelloWorldDouble(t *testing.T) {
	order := binary.LittleEndian

	segment := buildSegment(segmentSpec{
		newObjectList: true,
		objects: []objectSpec{
			noRawDataObject(""),
			noRawDataObject("/'G'"),
			dataObject(order, "/'G'/'x'", DataTypeFloat64, 3),
		},
		rawData: encodeFloat64s(order, []float64{1, 2, 3}),
	})

	f := openBytes(t, segment)

	require.Equal(t, []string{"", "/'G'", "/'G'/'x'"}, f.AllObjectPaths())
	require.Equal(t, []string{"/'G'/'x'"}, f.DataObjectPaths())

	ch, err := f.Channel("/'G'/'x'")
	require.NoError(t, err)

	values, err := ch.ReadDataFloat64All()
	require.NoError(t, err)
	require.Equal(t, []float64{1, 2, 3}, values)
}

// Scenario 2: additive second segment.
func TestAdditiveSecondSegment(t *testing.T) {
	order := binary.LittleEndian

	segA := segmentSpec{
		newObjectList: true,
		objects: []objectSpec{
			noRawDataObject(""),
			noRawDataObject("/'G'"),
			dataObject(order, "/'G'/'x'", DataTypeFloat64, 3),
		},
		rawData: encodeFloat64s(order, []float64{1, 2, 3}),
	}

	segB := segmentSpec{
		newObjectList: false,
		objects: []objectSpec{
			dataObject(order, "/'G'/'x'", DataTypeFloat64, 2),
		},
		rawData: encodeFloat64s(order, []float64{4, 5}),
	}

	data := append(buildSegment(segA), buildSegment(segB)...)
	f := openBytes(t, data)

	ch, err := f.Channel("/'G'/'x'")
	require.NoError(t, err)

	values, err := ch.ReadDataFloat64All()
	require.NoError(t, err)
	require.Equal(t, []float64{1, 2, 3, 4, 5}, values)
	require.EqualValues(t, 5, ch.NumValues())
}

// Scenario 3: big-endian parity.
func TestBigEndianParity(t *testing.T) {
	order := binary.BigEndian

	segment := buildSegment(segmentSpec{
		newObjectList: true,
		bigEndian:     true,
		objects: []objectSpec{
			noRawDataObject(""),
			noRawDataObject("/'G'"),
			dataObject(order, "/'G'/'x'", DataTypeFloat64, 3),
		},
		rawData: encodeFloat64s(order, []float64{1, 2, 3}),
	})

	f := openBytes(t, segment)

	ch, err := f.Channel("/'G'/'x'")
	require.NoError(t, err)

	values, err := ch.ReadDataFloat64All()
	require.NoError(t, err)
	require.Equal(t, []float64{1, 2, 3}, values)
}

// Scenario 4: interleaved pair of differing-width channels sharing a chunk.
func TestInterleavedPair(t *testing.T) {
	order := binary.LittleEndian

	a := []int16{10, 11, 12, 13}
	b := []int16{20, 21, 22, 23}

	segment := buildSegment(segmentSpec{
		newObjectList: true,
		interleaved:   true,
		objects: []objectSpec{
			noRawDataObject(""),
			noRawDataObject("/'G'"),
			dataObject(order, "/'G'/'a'", DataTypeInt16, 4),
			dataObject(order, "/'G'/'b'", DataTypeInt16, 4),
		},
		rawData: interleaveInt16(a, b),
	})

	f := openBytes(t, segment)

	chA, err := f.Channel("/'G'/'a'")
	require.NoError(t, err)
	valuesA, err := chA.ReadDataInt16All()
	require.NoError(t, err)
	require.Equal(t, a, valuesA)

	chB, err := f.Channel("/'G'/'b'")
	require.NoError(t, err)
	valuesB, err := chB.ReadDataInt16All()
	require.NoError(t, err)
	require.Equal(t, b, valuesB)
}

// Scenario 5: carry-over discriminator (0x00000000) extends a channel
// introduced in an earlier segment.
func TestCarryOverDiscriminator(t *testing.T) {
	order := binary.LittleEndian

	segA := segmentSpec{
		newObjectList: true,
		objects: []objectSpec{
			noRawDataObject(""),
			noRawDataObject("/'G'"),
			dataObject(order, "/'G'/'x'", DataTypeInt32, 2),
		},
		rawData: encodeInt32s(order, []int32{10, 20}),
	}

	segB := segmentSpec{
		newObjectList: true,
		objects: []objectSpec{
			noRawDataObject(""),
			noRawDataObject("/'G'"),
			matchesPreviousObject("/'G'/'x'"),
		},
		rawData: encodeInt32s(order, []int32{30, 40}),
	}

	data := append(buildSegment(segA), buildSegment(segB)...)
	f := openBytes(t, data)

	ch, err := f.Channel("/'G'/'x'")
	require.NoError(t, err)

	values, err := ch.ReadDataInt32All()
	require.NoError(t, err)
	require.Equal(t, []int32{10, 20, 30, 40}, values)
}

// Scenario 6: a later segment overwrites a property without touching raw
// data.
func TestPropertiesOverwrite(t *testing.T) {
	order := binary.LittleEndian

	segA := segmentSpec{
		newObjectList: true,
		objects: []objectSpec{
			noRawDataObject(""),
			noRawDataObject("/'G'", propString(order, "unit", "V")),
			dataObject(order, "/'G'/'c'", DataTypeFloat64, 1),
		},
		rawData: encodeFloat64s(order, []float64{1}),
	}

	segB := segmentSpec{
		newObjectList: false,
		objects: []objectSpec{
			noRawDataObject("/'G'", propString(order, "unit", "mV")),
		},
	}

	data := append(buildSegment(segA), buildSegment(segB)...)
	f := openBytes(t, data)

	group, ok := f.Groups["G"]
	require.True(t, ok)

	unit, err := group.Properties["unit"].AsString()
	require.NoError(t, err)
	require.Equal(t, "mV", unit)
}

// Scenario 7: a corrupted tail segment is recovered from; earlier segments
// remain fully readable.
func TestCorruptedTail(t *testing.T) {
	order := binary.LittleEndian

	segA := segmentSpec{
		newObjectList: true,
		objects: []objectSpec{
			noRawDataObject(""),
			noRawDataObject("/'G'"),
			dataObject(order, "/'G'/'x'", DataTypeFloat64, 3),
		},
		rawData: encodeFloat64s(order, []float64{1, 2, 3}),
	}

	segB := segmentSpec{
		objects: []objectSpec{
			dataObject(order, "/'G'/'x'", DataTypeFloat64, 2),
		},
		rawData: encodeFloat64s(order, []float64{4, 5}),
	}

	segC := segmentSpec{
		objects: []objectSpec{
			dataObject(order, "/'G'/'x'", DataTypeFloat64, 1),
		},
		rawData: encodeFloat64s(order, []float64{6}),
	}

	incomplete := segmentIncomplete
	segD := segmentSpec{
		objects: []objectSpec{
			dataObject(order, "/'G'/'x'", DataTypeFloat64, 100),
		},
		// Truncated: the header promises 100 values but the bytes run out.
		rawData:                   encodeFloat64s(order, []float64{7}),
		overrideNextSegmentOffset: &incomplete,
	}

	var data []byte
	data = append(data, buildSegment(segA)...)
	data = append(data, buildSegment(segB)...)
	data = append(data, buildSegment(segC)...)
	data = append(data, buildSegment(segD)...)
	// Truncate segD further so the final segment is genuinely incomplete on
	// disk, matching what a crashed writer would leave behind.
	data = data[:len(data)-4]

	f := openBytes(t, data)
	require.True(t, f.IsIncomplete)

	ch, err := f.Channel("/'G'/'x'")
	require.NoError(t, err)

	values, err := ch.ReadDataFloat64All()
	require.NoError(t, err)
	require.Equal(t, []float64{1, 2, 3, 4, 5, 6}, values)
}

// Boundary case: an empty file fails to open with an I/O error.
func TestEmptyFileFailsToOpen(t *testing.T) {
	_, err := New(bytes.NewReader(nil), false, 0)
	require.Error(t, err)
}

// Boundary case: idempotence — opening the same bytes twice yields
// structurally identical indexes.
func TestOpenTwiceIsIdempotent(t *testing.T) {
	order := binary.LittleEndian

	segment := buildSegment(segmentSpec{
		newObjectList: true,
		objects: []objectSpec{
			noRawDataObject(""),
			noRawDataObject("/'G'"),
			dataObject(order, "/'G'/'x'", DataTypeFloat64, 3),
		},
		rawData: encodeFloat64s(order, []float64{1, 2, 3}),
	})

	f1 := openBytes(t, segment)
	f2 := openBytes(t, segment)

	if diff := cmp.Diff(f1.AllObjectPaths(), f2.AllObjectPaths()); diff != "" {
		t.Errorf("object paths differ between opens (-f1 +f2):\n%s", diff)
	}

	v1, err := mustChannel(t, f1, "/'G'/'x'").ReadDataFloat64All()
	require.NoError(t, err)
	v2, err := mustChannel(t, f2, "/'G'/'x'").ReadDataFloat64All()
	require.NoError(t, err)
	require.Equal(t, v1, v2)
}

func mustChannel(t *testing.T, f *File, path string) *Channel {
	t.Helper()
	ch, err := f.Channel(path)
	require.NoError(t, err)
	return ch
}

func TestChannelLookupErrors(t *testing.T) {
	order := binary.LittleEndian

	segment := buildSegment(segmentSpec{
		newObjectList: true,
		objects: []objectSpec{
			noRawDataObject(""),
			noRawDataObject("/'G'"),
			dataObject(order, "/'G'/'x'", DataTypeFloat64, 3),
		},
		rawData: encodeFloat64s(order, []float64{1, 2, 3}),
	})

	f := openBytes(t, segment)

	_, err := f.Channel("/'G'")
	require.ErrorIs(t, err, ErrObjectHasNoRawData)

	_, err = f.Channel("/'G'/'missing'")
	require.ErrorIs(t, err, ErrChannelNotFound)

	_, err = f.Channel("/'NoSuchGroup'/'x'")
	require.ErrorIs(t, err, ErrChannelNotFound)
}

func TestWithBufferSizeWrapsReader(t *testing.T) {
	order := binary.LittleEndian

	segment := buildSegment(segmentSpec{
		newObjectList: true,
		objects: []objectSpec{
			noRawDataObject(""),
			noRawDataObject("/'G'"),
			dataObject(order, "/'G'/'x'", DataTypeFloat64, 3),
		},
		rawData: encodeFloat64s(order, []float64{1, 2, 3}),
	})

	f := openBytes(t, segment, WithBufferSize(64))

	values, err := mustChannel(t, f, "/'G'/'x'").ReadDataFloat64All()
	require.NoError(t, err)
	require.Equal(t, []float64{1, 2, 3}, values)
}

// Sanity check that the builder's computed next-segment offset actually
// lines up with where the next segment's magic bytes begin, for a
// multi-segment file.
func TestBuilderOffsetsAgreeWithReader(t *testing.T) {
	order := binary.LittleEndian

	segA := buildSegment(segmentSpec{
		newObjectList: true,
		objects: []objectSpec{
			noRawDataObject(""),
			dataObject(order, "/'G'/'x'", DataTypeFloat64, 1),
		},
		rawData: encodeFloat64s(order, []float64{42}),
	})

	r := bytes.NewReader(segA)
	magic := make([]byte, 4)
	_, err := io.ReadFull(r, magic)
	require.NoError(t, err)
	require.Equal(t, tdmsMagicBytes, magic)
}
