package pathoram

import (
	"bytes"
	"testing"
)

func TestBlockCodecRoundTrip(t *testing.T) {
	valueSize := 8
	cases := []Block{
		{Key: 0, Value: []byte{1, 2, 3, 4, 5, 6, 7, 8}},
		{Key: 42, Value: []byte{42, 0, 0, 0, 0, 0, 0, 0}},
		{Key: EmptyKey, Value: make([]byte, valueSize)},
	}

	for _, b := range cases {
		out := make([]byte, blockSize(valueSize))
		marshalBlock(b, valueSize, out)

		got, err := unmarshalBlock(out, valueSize)
		if err != nil {
			t.Fatalf("unmarshalBlock: %v", err)
		}
		if got.Key != b.Key {
			t.Errorf("key: got %d, want %d", got.Key, b.Key)
		}
		if !bytes.Equal(got.Value, b.Value) {
			t.Errorf("value: got %x, want %x", got.Value, b.Value)
		}
	}
}

func TestBlockCodecShortInput(t *testing.T) {
	if _, err := unmarshalBlock(make([]byte, 3), 8); err == nil {
		t.Fatal("expected an error for a short block")
	}
}

func TestEmptyBlockIsEmptyKey(t *testing.T) {
	b := emptyBlock(16)
	if b.Key != EmptyKey {
		t.Errorf("got key %d, want EmptyKey", b.Key)
	}
	if len(b.Value) != 16 {
		t.Errorf("got value length %d, want 16", len(b.Value))
	}
}
