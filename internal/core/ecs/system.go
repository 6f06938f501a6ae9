package ecs

// System is a behavior unit run once per tick over the entities that carry
// every kind it requires. C is the shared tick context.
//
// The store and the matched slice are only valid for the duration of Run;
// systems must not keep borrows or the slice past return.
type System[C any] interface {
	Requires() []Kind
	Run(ctx C, store *Store[ComponentMap], matched []Handle)
}

// SystemFunc adapts a plain function into a System.
type SystemFunc[C any] struct {
	Kinds []Kind
	Fn    func(ctx C, store *Store[ComponentMap], matched []Handle)
}

func (f SystemFunc[C]) Requires() []Kind { return f.Kinds }

func (f SystemFunc[C]) Run(ctx C, store *Store[ComponentMap], matched []Handle) {
	f.Fn(ctx, store, matched)
}

// Kinds is shorthand for building a Requires list.
func Kinds(ks ...Kind) []Kind { return ks }
