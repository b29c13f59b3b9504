package tdms

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPropertyAsAccessors(t *testing.T) {
	order := binary.LittleEndian

	segment := buildSegment(segmentSpec{
		newObjectList: true,
		objects: []objectSpec{
			noRawDataObject("",
				propString(order, "Author", "ni"),
				propFloat64(order, "CalibrationFactor", 1.5),
				propInt32(order, "RunNumber", 42),
			),
		},
	})

	f := openBytes(t, segment)

	author, err := f.Properties["Author"].AsString()
	require.NoError(t, err)
	require.Equal(t, "ni", author)

	cal, err := f.Properties["CalibrationFactor"].AsFloat64()
	require.NoError(t, err)
	require.InDelta(t, 1.5, cal, 1e-9)

	run, err := f.Properties["RunNumber"].AsInt32()
	require.NoError(t, err)
	require.EqualValues(t, 42, run)

	_, err = f.Properties["Author"].AsInt32()
	require.ErrorIs(t, err, ErrIncorrectType)

	_, err = f.Properties["RunNumber"].AsString()
	require.ErrorIs(t, err, ErrIncorrectType)
}

func TestPropertyNamesPreservesInsertionOrder(t *testing.T) {
	order := binary.LittleEndian

	segA := segmentSpec{
		newObjectList: true,
		objects: []objectSpec{
			noRawDataObject("",
				propString(order, "Author", "ni"),
				propFloat64(order, "CalibrationFactor", 1.5),
			),
		},
	}

	segB := segmentSpec{
		newObjectList: false,
		objects: []objectSpec{
			noRawDataObject("",
				propInt32(order, "RunNumber", 42),
				propString(order, "Author", "updated"),
			),
		},
	}

	data := append(buildSegment(segA), buildSegment(segB)...)
	f := openBytes(t, data)

	// RunNumber is new in segB and is appended; Author already existed in
	// segA and keeps its original position even though segB overwrites its
	// value.
	require.Equal(t, []string{"Author", "CalibrationFactor", "RunNumber"}, f.PropertyNames())

	author, err := f.Properties["Author"].AsString()
	require.NoError(t, err)
	require.Equal(t, "updated", author)
}
