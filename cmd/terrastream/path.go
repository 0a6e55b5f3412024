package main

import (
	stdmath "math"

	"github.com/Faultbox/terrastream/pkg/math"
)

// circlePath moves the viewpoint around the terrain center at a constant
// ground speed.
type circlePath struct {
	radius float32
	step   float64 // radians per frame
}

func newCirclePath(radius, speed float32) circlePath {
	p := circlePath{radius: radius}
	if radius > 0 {
		p.step = float64(speed / radius)
	}
	return p
}

func (p circlePath) at(frame int) math.Vec3 {
	a := p.step * float64(frame)
	return math.Vec3{
		X: p.radius * float32(stdmath.Cos(a)),
		Z: p.radius * float32(stdmath.Sin(a)),
	}
}
