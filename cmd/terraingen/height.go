package main

import (
	"fmt"

	"github.com/aquilax/go-perlin"

	"github.com/Faultbox/terrastream/pkg/terrainfile"
)

// Perlin noise shape and the world scale it is sampled at.
const (
	perlinAlpha     = 2.0
	perlinBeta      = 2.0
	perlinOctaves   = 3
	perlinScale     = 0.004
	perlinAmplitude = 80.0
)

func heightFunc(name string, seed int64) (terrainfile.HeightFunc, error) {
	switch name {
	case "sine":
		return terrainfile.SineHeight, nil
	case "flat":
		return terrainfile.FlatHeight, nil
	case "perlin":
		return perlinHeight(seed), nil
	default:
		return nil, fmt.Errorf("unknown height function %q", name)
	}
}

func perlinHeight(seed int64) terrainfile.HeightFunc {
	p := perlin.NewPerlin(perlinAlpha, perlinBeta, perlinOctaves, seed)
	return func(x, z float32) float32 {
		return float32(p.Noise2D(float64(x)*perlinScale, float64(z)*perlinScale) * perlinAmplitude)
	}
}
