package compiler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestObject_SerializeParseRoundTrips(t *testing.T) {
	obj := NewObject()
	obj.AppendSection(SectionText, []byte{0x01, 0x02, 0x03})
	obj.AppendSection(SectionTrapHandling, EncodeSideTable([]uint32{4}, []uint32{1}))

	parsed, err := ParseObject(obj.Serialize())
	require.NoError(t, err)
	require.Equal(t, []byte{0x01, 0x02, 0x03}, parsed.Section(SectionText))

	keys, values, err := DecodeSideTable(parsed.Section(SectionTrapHandling))
	require.NoError(t, err)
	require.Equal(t, []uint32{4}, keys)
	require.Equal(t, []uint32{1}, values)
}

func TestObject_AppendSectionAccumulatesSameName(t *testing.T) {
	obj := NewObject()
	off1 := obj.AppendSection(SectionText, []byte{0xaa, 0xbb})
	off2 := obj.AppendSection(SectionText, []byte{0xcc})

	require.Equal(t, uint32(0), off1)
	require.Equal(t, uint32(2), off2)
	require.Equal(t, []byte{0xaa, 0xbb, 0xcc}, obj.Section(SectionText))
}

func TestParseObject_RejectsBadMagic(t *testing.T) {
	_, err := ParseObject([]byte{0x00, 0x00, 0x00, 0x00, 0x00})
	require.Error(t, err)
}

func TestEncodeDecodeSideTable_EmptyRoundTrips(t *testing.T) {
	keys, values, err := DecodeSideTable(EncodeSideTable(nil, nil))
	require.NoError(t, err)
	require.Empty(t, keys)
	require.Empty(t, values)
}
