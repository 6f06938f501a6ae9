package component

// Position is an entity's location in world units.
type Position struct {
	X float64
	Y float64
}
