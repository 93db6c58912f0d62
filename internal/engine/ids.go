package engine

import "github.com/google/uuid"

// IDGenerator mints run ids. Production uses UUIDv7 so ids sort by creation
// time; tests use FixedGenerator for stable output.
type IDGenerator interface {
	NewID() string
}

// UUIDGenerator mints time-ordered UUIDv7 run ids.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns scripted ids in order, then repeats the last one.
type FixedGenerator struct {
	IDs  []string
	next int
}

func (g *FixedGenerator) NewID() string {
	if len(g.IDs) == 0 {
		return "fixed-id"
	}
	id := g.IDs[min(g.next, len(g.IDs)-1)]
	g.next++
	return id
}
