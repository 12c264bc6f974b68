package camera

import (
	"math"
	"testing"
)

func TestNewCameraDefaults(t *testing.T) {
	c := NewCamera()
	if c.Near() != 0.1 {
		t.Errorf("default near = %v, want 0.1", c.Near())
	}
	if c.Far() != 1000.0 {
		t.Errorf("default far = %v, want 1000", c.Far())
	}
	if c.BindGroupProvider() == nil {
		t.Error("camera should construct a bind group provider by default")
	}
}

func TestProjectionGenerationTracksChanges(t *testing.T) {
	c := NewCamera()
	gen := c.ProjectionGeneration()

	c.SetPosition(1, 2, 3)
	c.SetTarget(0, 0, -1)
	if c.ProjectionGeneration() != gen {
		t.Error("moving the camera must not bump the projection generation")
	}

	c.SetAspect(16.0 / 9.0)
	if c.ProjectionGeneration() != gen+1 {
		t.Errorf("generation after aspect change = %d, want %d", c.ProjectionGeneration(), gen+1)
	}

	c.SetFov(float32(math.Pi / 2))
	c.SetNear(0.5)
	c.SetFar(500)
	if c.ProjectionGeneration() != gen+4 {
		t.Errorf("generation after three more changes = %d, want %d", c.ProjectionGeneration(), gen+4)
	}
}

func TestViewProjectionComposition(t *testing.T) {
	c := NewCamera(
		WithPosition(0, 0, 10),
		WithTarget(0, 0, 0),
		WithAspect(1),
		WithNear(1),
		WithFar(100),
	)

	// A point directly in front of the camera at the near plane lands at NDC z = 0.
	vp := c.ViewProjectionMatrix()
	clipX := vp[0]*0 + vp[4]*0 + vp[8]*9 + vp[12]
	clipZ := vp[2]*0 + vp[6]*0 + vp[10]*9 + vp[14]
	clipW := vp[3]*0 + vp[7]*0 + vp[11]*9 + vp[15]
	if math.Abs(float64(clipZ/clipW)) > 1e-5 {
		t.Errorf("near-plane point should map to NDC z=0, got %v", clipZ/clipW)
	}
	if math.Abs(float64(clipX/clipW)) > 1e-5 {
		t.Errorf("centered point should map to NDC x=0, got %v", clipX/clipW)
	}
}

func TestInverseProjectionIsInverse(t *testing.T) {
	c := NewCamera(WithAspect(2), WithFov(float32(math.Pi/3)))
	proj := c.ProjectionMatrix()
	inv := c.InverseProjectionMatrix()

	// Spot-check one column of proj * inv against identity.
	for row := range 4 {
		sum := float32(0)
		for k := range 4 {
			sum += proj[k*4+row] * inv[0*4+k]
		}
		want := float32(0)
		if row == 0 {
			want = 1
		}
		if math.Abs(float64(sum-want)) > 1e-5 {
			t.Fatalf("proj*inv column 0 row %d = %v, want %v", row, sum, want)
		}
	}
}

func TestToGPUCameraUniform(t *testing.T) {
	c := NewCamera(WithPosition(3, 4, 5))
	u := ToGPUCameraUniform(c)
	if u.CameraPosition != [3]float32{3, 4, 5} {
		t.Errorf("CameraPosition = %v, want {3 4 5}", u.CameraPosition)
	}
	if u.Size() != 80 {
		t.Errorf("uniform size = %d, want 80", u.Size())
	}
	if len(u.Marshal()) != 80 {
		t.Errorf("marshaled length = %d, want 80", len(u.Marshal()))
	}
}
