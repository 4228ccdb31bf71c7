package component

// Position is a point on an unbounded integer grid.
type Position struct {
	X int32 `yaml:"x" lua:"x"`
	Y int32 `yaml:"y" lua:"y"`
}

// Velocity is added to Position once per tick.
type Velocity struct {
	DX int32 `yaml:"dx" lua:"dx"`
	DY int32 `yaml:"dy" lua:"dy"`
}

// Frame counts completed ticks. It is stored as a World resource.
type Frame struct {
	N uint64
}
