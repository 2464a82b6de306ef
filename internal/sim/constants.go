package sim

import "math"

// World and timing.
const (
	DefaultWorldWidth  = 3200.0
	DefaultWorldHeight = 5100.0
	DefaultMaxFrames   = 3000
	FrameSeconds       = 1.0 / 30.0

	UnitRadius = 20.0 // default radius for spawned units
)

// Unit defaults.
const (
	FriendlyHP        = 100
	EnemyHP           = 10
	FriendlySpeed     = 4.5
	EnemySpeed        = 4.0
	FriendlyTurnSpeed = 0.08
	EnemyTurnSpeed    = 0.1
	DefaultDamage     = 1

	AttackCooldownFrames = 30  // ticks between attacks
	MeleeRangeMult       = 3.0 // attackRange = radius * mult
	RangedRangeMult      = 6.0
)

// Attack slots.
const (
	NumAttackSlots = 8
	slotMargin     = 10.0

	slotReevaluateDistance = 40.0 // slot offset that forces a re-claim
	slotReevaluateInterval = 60
)

// Target selection.
const (
	targetReevaluateInterval = 45   // ticks before a free re-pick
	targetSwitchMargin       = 15.0 // score gap that forces an early switch
	targetCrowdPenalty       = 25.0 // per occupied slot on the candidate
	unitAggroRadius          = 300.0
)

// Squad coordination.
const (
	engagementTriggerMult    = 1.5
	rallyDistance            = 300.0
	enemySeparationRadius    = 120.0
	friendlySeparationRadius = 80.0
	destinationThreshold     = 10.0
	flankOffset              = 200.0 // perpendicular standoff when no slot is free
	formationSpacing         = 90.0
)

// Predictive avoidance.
const (
	collisionRadiusScale       = 2.0 / 3.0
	avoidanceAngleStep         = math.Pi / 8
	maxAvoidanceIterations     = 8
	avoidanceMaxLookahead      = 3.5
	avoidanceSegmentCount      = 3
	avoidanceSegmentStart      = 20.0
	avoidanceLateralPadding    = 25.0
	avoidanceParallelMult      = 1.5
	avoidanceWaypointThreshold = 12.0
)

// Replanning.
const (
	ReplanCooldownFrames      = 15
	replanStallThreshold      = 30
	replanAvoidanceThreshold  = 60
	replanPeriodicInterval    = 300
	waypointProgressThreshold = 5.0
)

// Pathfinding grid.
const (
	dynamicObstacleDensity = 3  // ground units per cell before it blocks
	dynamicUpdateInterval  = 15 // ticks
	pathSmoothingMaxSkip   = 10
	structureCollisionPad  = 10.0
	riverObstacleMargin    = 5.0
)

// Waves.
const MaxWaves = 3
