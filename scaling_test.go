package tdms

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChannelScalesLinear(t *testing.T) {
	order := binary.LittleEndian

	segment := buildSegment(segmentSpec{
		newObjectList: true,
		objects: []objectSpec{
			noRawDataObject(""),
			noRawDataObject("/'G'"),
			dataObject(order, "/'G'/'x'", DataTypeFloat64, 1,
				propInt32(order, "NI_Number_Of_Scales", 1),
				propString(order, "NI_Scale[0]_Scale_Type", "Linear"),
				propFloat64(order, "NI_Scale[0]_Linear_Slope", 2.5),
				propFloat64(order, "NI_Scale[0]_Linear_Y_Intercept", -1),
			),
		},
		rawData: encodeFloat64s(order, []float64{1}),
	})

	f := openBytes(t, segment)
	ch := mustChannel(t, f, "/'G'/'x'")

	scales := ch.Scales()
	require.Len(t, scales, 1)
	require.Equal(t, ScaleKindLinear, scales[0].Kind())
	require.Equal(t, LinearScale{Slope: 2.5, Intercept: -1}, scales[0])
}

func TestChannelScalesPolynomial(t *testing.T) {
	order := binary.LittleEndian

	segment := buildSegment(segmentSpec{
		newObjectList: true,
		objects: []objectSpec{
			noRawDataObject(""),
			noRawDataObject("/'G'"),
			dataObject(order, "/'G'/'x'", DataTypeFloat64, 1,
				propInt32(order, "NI_Number_Of_Scales", 1),
				propString(order, "NI_Scale[0]_Scale_Type", "Polynomial"),
				propInt32(order, "NI_Scale[0]_Polynomial_Coefficients_Size", 3),
				propFloat64(order, "NI_Scale[0]_Polynomial_Coefficients[0]", 0),
				propFloat64(order, "NI_Scale[0]_Polynomial_Coefficients[1]", 1),
				propFloat64(order, "NI_Scale[0]_Polynomial_Coefficients[2]", 2),
			),
		},
		rawData: encodeFloat64s(order, []float64{1}),
	})

	f := openBytes(t, segment)
	ch := mustChannel(t, f, "/'G'/'x'")

	scales := ch.Scales()
	require.Len(t, scales, 1)
	require.Equal(t, ScaleKindPolynomial, scales[0].Kind())
	require.Equal(t, PolynomialScale{Coefficients: []float64{0, 1, 2}}, scales[0])
}

func TestChannelScalesAbsentWhenNoScalingProperty(t *testing.T) {
	order := binary.LittleEndian

	segment := buildSegment(segmentSpec{
		newObjectList: true,
		objects: []objectSpec{
			noRawDataObject(""),
			noRawDataObject("/'G'"),
			dataObject(order, "/'G'/'x'", DataTypeFloat64, 1),
		},
		rawData: encodeFloat64s(order, []float64{1}),
	})

	f := openBytes(t, segment)
	ch := mustChannel(t, f, "/'G'/'x'")

	require.Empty(t, ch.Scales())
}
