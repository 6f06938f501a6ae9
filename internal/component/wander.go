package component

import "fmt"

// Dir is one of the four wander headings.
type Dir uint8

const (
	DirUp Dir = iota
	DirDown
	DirLeft
	DirRight
)

// DirNames lists the wire names of Dir in value order.
var DirNames = []string{"Up", "Down", "Left", "Right"}

func (d Dir) String() string {
	if int(d) < len(DirNames) {
		return DirNames[d]
	}
	return fmt.Sprintf("Dir(%d)", uint8(d))
}

// Step returns the displacement for moving dist units along d.
// Left is +X and Right is -X, matching the viewer's mirrored axis.
func (d Dir) Step(dist float64) (dx, dy float64) {
	switch d {
	case DirUp:
		return 0, dist
	case DirDown:
		return 0, -dist
	case DirLeft:
		return dist, 0
	case DirRight:
		return -dist, 0
	}
	return 0, 0
}

// ParseDir maps a wire name back to its Dir.
func ParseDir(name string) (Dir, bool) {
	for i, n := range DirNames {
		if n == name {
			return Dir(i), true
		}
	}
	return 0, false
}

// Wander drives an entity that changes heading every few ticks.
// ChangeCount counts ticks since the last heading change.
type Wander struct {
	ChangeCount uint32
	Dir         Dir
}
