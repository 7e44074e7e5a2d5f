package gpudict

import (
	"math"
	"slices"
	"testing"
	"unsafe"
)

func TestFixedCodec(t *testing.T) {
	c := Fixed[particle]()
	if c.Size() != int(unsafe.Sizeof(particle{})) {
		t.Fatalf("Size = %d, want %d", c.Size(), unsafe.Sizeof(particle{}))
	}
	v := particle{X: 1.5, Y: -2, Z: math.MaxFloat32, ID: -42, Alive: true}
	buf := make([]byte, c.Size()+3)
	c.Encode(buf, v)
	if got := c.Decode(buf); got != v {
		t.Fatalf("Decode = %+v, want %+v", got, v)
	}
	if !slices.Equal(buf[c.Size():], []byte{0, 0, 0}) {
		t.Fatal("Encode wrote past Size")
	}

	type vec4 [4]float32
	vc := Fixed[vec4]()
	if vc.Size() != 16 {
		t.Fatalf("Fixed[[4]float32].Size = %d, want 16", vc.Size())
	}
}

func TestScalarCodecsLittleEndian(t *testing.T) {
	buf := make([]byte, 8)

	Int32Codec.Encode(buf, -2)
	if !slices.Equal(buf[:4], []byte{0xFE, 0xFF, 0xFF, 0xFF}) {
		t.Errorf("Int32Codec layout = %x", buf[:4])
	}
	if Int32Codec.Decode(buf) != -2 {
		t.Error("Int32Codec round trip")
	}

	Uint32Codec.Encode(buf, 0x01020304)
	if !slices.Equal(buf[:4], []byte{4, 3, 2, 1}) {
		t.Errorf("Uint32Codec layout = %x", buf[:4])
	}

	Float32Codec.Encode(buf, 1.0)
	if !slices.Equal(buf[:4], []byte{0, 0, 0x80, 0x3F}) {
		t.Errorf("Float32Codec layout = %x", buf[:4])
	}
	if Float32Codec.Decode(buf) != 1.0 {
		t.Error("Float32Codec round trip")
	}

	Uint64Codec.Encode(buf, 0x0102030405060708)
	if !slices.Equal(buf, []byte{8, 7, 6, 5, 4, 3, 2, 1}) {
		t.Errorf("Uint64Codec layout = %x", buf)
	}

	Float64Codec.Encode(buf, math.Inf(-1))
	if got := Float64Codec.Decode(buf); !math.IsInf(got, -1) {
		t.Errorf("Float64Codec round trip = %v", got)
	}
}

func TestRawCodec(t *testing.T) {
	c := RawCodec(4)
	buf := []byte{9, 9, 9, 9, 9}

	c.Encode(buf, []byte{1, 2})
	if !slices.Equal(buf, []byte{1, 2, 0, 0, 9}) {
		t.Fatalf("short Encode = %v", buf)
	}
	c.Encode(buf, []byte{1, 2, 3, 4, 5, 6})
	if !slices.Equal(buf, []byte{1, 2, 3, 4, 9}) {
		t.Fatalf("long Encode = %v", buf)
	}

	got := c.Decode(buf)
	buf[0] = 0
	if !slices.Equal(got, []byte{1, 2, 3, 4}) {
		t.Fatalf("Decode aliased its input: %v", got)
	}
}

func TestFixedCodecMatchesDeviceLayout(t *testing.T) {
	type rgba struct{ R, G, B, A uint8 }
	tbl, err := Build([]int32{1}, []rgba{{1, 2, 3, 4}}, 1, Fixed[rgba]())
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{1, 0, 0, 0, 1, 2, 3, 4}
	if !slices.Equal(tbl.Entries(), want) {
		t.Fatalf("entry = %v, want %v", tbl.Entries(), want)
	}
}
