package game

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/mcdev12/lomba/go/internal/models"
)

// Playfield constants for the drone race. Positions are percentages of the
// playfield: X runs from the left edge (0) to the right edge (100).
const (
	SpawnInterval      = 2000 * time.Millisecond
	HorizontalSpeed    = 0.1 // units per millisecond
	OffscreenThreshold = -10.0
	SpawnX             = 100.0
	MinY               = 0.0
	MaxY               = 90.0
	StartY             = 50.0
	MoveStep           = 5.0
	CollisionRadius    = 10.0
	CollisionBandMin   = -5.0
	CollisionBandMax   = 10.0
)

// Obstacle is one block scrolling towards the player
type Obstacle struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// AvoidanceState is the render view of a drone race
type AvoidanceState struct {
	PlayerY   float64    `json:"player_y"`
	Obstacles []Obstacle `json:"obstacles"`
}

// Avoidance implements the continuous-avoidance rules
type Avoidance struct {
	rng        *rand.Rand
	playerY    float64
	obstacles  []Obstacle
	sinceSpawn time.Duration
}

// NewAvoidance returns fresh drone race rules using rng for spawn heights
func NewAvoidance(rng *rand.Rand) *Avoidance {
	if rng == nil {
		rng = newRand()
	}
	return &Avoidance{
		rng:     rng,
		playerY: StartY,
	}
}

func (a *Avoidance) Kind() models.GameKind { return models.ContinuousAvoidance }
func (a *Avoidance) Cadence() Cadence { return CadenceFrame }

// Tick runs one frame: accrue score, scroll, cull, spawn, then collide
func (a *Avoidance) Tick(s *Session, delta time.Duration) {
	ms := float64(delta) / float64(time.Millisecond)
	s.award(ms / 1000)

	kept := a.obstacles[:0]
	for _, o := range a.obstacles {
		o.X -= ms * HorizontalSpeed
		if o.X > OffscreenThreshold {
			kept = append(kept, o)
		}
	}
	a.obstacles = kept

	a.sinceSpawn += delta
	if a.sinceSpawn >= SpawnInterval {
		a.sinceSpawn = 0
		a.obstacles = append(a.obstacles, Obstacle{X: SpawnX, Y: a.rng.Float64() * MaxY})
	}

	for _, o := range a.obstacles {
		if o.X < CollisionBandMax && o.X > CollisionBandMin && math.Abs(o.Y-a.playerY) < CollisionRadius {
			s.end()
			break
		}
	}
}

// Apply moves the drone one step, clamped to the playfield
func (a *Avoidance) Apply(_ *Session, in Input) {
	switch in.Action {
	case ActionMoveUp:
		a.playerY = math.Max(MinY, a.playerY-MoveStep)
	case ActionMoveDown:
		a.playerY = math.Min(MaxY, a.playerY+MoveStep)
	}
}

func (a *Avoidance) State() any {
	obs := make([]Obstacle, len(a.obstacles))
	copy(obs, a.obstacles)
	return AvoidanceState{PlayerY: a.playerY, Obstacles: obs}
}

// PlayerY is the current drone height
func (a *Avoidance) PlayerY() float64 { return a.playerY }

// Obstacles returns a copy of the obstacle set
func (a *Avoidance) Obstacles() []Obstacle {
	return a.State().(AvoidanceState).Obstacles
}

// place puts an obstacle directly on the field
func (a *Avoidance) place(o Obstacle) {
	a.obstacles = append(a.obstacles, o)
}
