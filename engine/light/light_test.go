package light

import (
	"encoding/binary"
	"math"
	"testing"
)

func TestNewLightDefaults(t *testing.T) {
	l := NewLight(LightTypePoint)
	if l.Type() != LightTypePoint {
		t.Errorf("type = %v, want point", l.Type())
	}
	if !l.Enabled() {
		t.Error("new lights should be enabled")
	}
	if l.Range() != 10.0 {
		t.Errorf("default range = %v, want 10", l.Range())
	}
}

func TestSetDirectionNormalizes(t *testing.T) {
	l := NewLight(LightTypeSpot, WithDirection(0, 0, -4))
	d := l.Direction()
	if d != [3]float32{0, 0, -1} {
		t.Errorf("direction = %v, want {0 0 -1}", d)
	}

	l.SetDirection(3, 0, 4)
	d = l.Direction()
	if math.Abs(float64(d[0]-0.6)) > 1e-6 || math.Abs(float64(d[2]-0.8)) > 1e-6 {
		t.Errorf("direction = %v, want {0.6 0 0.8}", d)
	}

	l.SetDirection(0, 0, 0)
	if l.Direction() != [3]float32{0, 0, 0} {
		t.Errorf("zero input should yield zero vector, got %v", l.Direction())
	}
}

func TestSpotConeStoredAsCosine(t *testing.T) {
	l := NewLight(LightTypeSpot, WithSpotCone(30, 45))
	wantInner := float32(math.Cos(30 * math.Pi / 180))
	wantOuter := float32(math.Cos(45 * math.Pi / 180))
	if math.Abs(float64(l.InnerCone()-wantInner)) > 1e-6 {
		t.Errorf("inner cone = %v, want %v", l.InnerCone(), wantInner)
	}
	if math.Abs(float64(l.OuterCone()-wantOuter)) > 1e-6 {
		t.Errorf("outer cone = %v, want %v", l.OuterCone(), wantOuter)
	}
}

func TestGPULightMarshal(t *testing.T) {
	l := NewLight(LightTypePoint,
		WithPosition(1, 2, 3),
		WithColor(0.5, 0.25, 1),
		WithIntensity(2),
		WithRange(15),
	)
	g := ToGPULight(l)
	if g.Size() != 64 {
		t.Fatalf("GPULight size = %d, want 64", g.Size())
	}

	buf := g.Marshal()
	if len(buf) != 64 {
		t.Fatalf("marshaled length = %d, want 64", len(buf))
	}
	if got := math.Float32frombits(binary.LittleEndian.Uint32(buf[0:4])); got != 1 {
		t.Errorf("position.x = %v, want 1", got)
	}
	if got := binary.LittleEndian.Uint32(buf[12:16]); got != uint32(LightTypePoint) {
		t.Errorf("light_type = %d, want %d", got, LightTypePoint)
	}
	if got := math.Float32frombits(binary.LittleEndian.Uint32(buf[44:48])); got != 15 {
		t.Errorf("range = %v, want 15", got)
	}
}

func TestMarshalLightBufferSkipsDisabled(t *testing.T) {
	lights := []Light{
		NewLight(LightTypePoint, WithPosition(0, 0, 0)),
		NewLight(LightTypePoint, WithEnabled(false)),
		NewLight(LightTypeDirectional, WithDirection(0, -1, 0)),
	}

	buf := MarshalLightBuffer(lights, [3]float32{0.1, 0.1, 0.1}, 0)
	wantLen := 16 + 2*64
	if len(buf) != wantLen {
		t.Fatalf("buffer length = %d, want %d", len(buf), wantLen)
	}
	if count := binary.LittleEndian.Uint32(buf[12:16]); count != 2 {
		t.Errorf("header light count = %d, want 2", count)
	}
}

func TestMarshalLightBufferRespectsBudget(t *testing.T) {
	lights := make([]Light, 8)
	for i := range lights {
		lights[i] = NewLight(LightTypePoint)
	}

	buf := MarshalLightBuffer(lights, [3]float32{}, 3)
	if len(buf) != 16+3*64 {
		t.Fatalf("buffer length = %d, want %d", len(buf), 16+3*64)
	}
	if count := binary.LittleEndian.Uint32(buf[12:16]); count != 3 {
		t.Errorf("header light count = %d, want 3", count)
	}
}

func TestGPUUniformSizes(t *testing.T) {
	if s := (&GPULightCullUniforms{}).Size(); s != 160 {
		t.Errorf("GPULightCullUniforms size = %d, want 160", s)
	}
	if s := (&GPUTileUniforms{}).Size(); s != 8 {
		t.Errorf("GPUTileUniforms size = %d, want 8", s)
	}
	if s := (&GPULightHeader{}).Size(); s != 16 {
		t.Errorf("GPULightHeader size = %d, want 16", s)
	}

	u := GPULightCullUniforms{TileCountX: 4, TileCountY: 3, Near: 0.1, Far: 100, MaxLightIndices: 4096}
	buf := u.Marshal()
	if len(buf) != 160 {
		t.Fatalf("marshaled uniforms length = %d, want 160", len(buf))
	}
	if got := binary.LittleEndian.Uint32(buf[128:132]); got != 4 {
		t.Errorf("tile_count_x = %d, want 4", got)
	}
	if got := binary.LittleEndian.Uint32(buf[156:160]); got != 4096 {
		t.Errorf("max_light_indices = %d, want 4096", got)
	}
}
