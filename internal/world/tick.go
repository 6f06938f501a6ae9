package world

// TickContext is what behavior units see of the current tick.
type TickContext struct {
	Number uint64  // ticks run before this one
	Dt     float64 // seconds since the previous tick
}
