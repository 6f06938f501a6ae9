package component

// Render describes how peers draw an entity: an RGBA color and a square size.
type Render struct {
	Color [4]float32
	Size  float64
}
