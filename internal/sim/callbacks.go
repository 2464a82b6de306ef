package sim

// UnitEventType classifies entries on the unit event stream.
type UnitEventType int

const (
	UnitEventSpawned UnitEventType = iota
	UnitEventDied
	UnitEventAttack
	UnitEventDamaged
	UnitEventTargetAcquired
	UnitEventTargetLost
)

func (t UnitEventType) String() string {
	switch t {
	case UnitEventSpawned:
		return "spawned"
	case UnitEventDied:
		return "died"
	case UnitEventAttack:
		return "attack"
	case UnitEventDamaged:
		return "damaged"
	case UnitEventTargetAcquired:
		return "target_acquired"
	case UnitEventTargetLost:
		return "target_lost"
	default:
		return "unknown"
	}
}

// UnitEvent is one thing that happened to a unit during a tick.
type UnitEvent struct {
	Type   UnitEventType `json:"type" msgpack:"type"`
	Frame  int           `json:"frame" msgpack:"frame"`
	Unit   UnitKey       `json:"unit" msgpack:"unit"`
	Target TargetRef     `json:"target,omitempty" msgpack:"target,omitempty"`
	Amount int           `json:"amount,omitempty" msgpack:"amount,omitempty"`
	Kind   DamageType    `json:"damageType,omitempty" msgpack:"dt,omitempty"`
}

// CompletionReason says why Run stopped.
type CompletionReason int

const (
	CompletionNone CompletionReason = iota
	AllWavesCleared
	MaxFramesReached
	FriendlyVictory
	EnemyVictory
	MatchDraw
	Stopped
	Cancelled
)

func (r CompletionReason) String() string {
	switch r {
	case AllWavesCleared:
		return "all_waves_cleared"
	case MaxFramesReached:
		return "max_frames_reached"
	case FriendlyVictory:
		return "friendly_win"
	case EnemyVictory:
		return "enemy_win"
	case MatchDraw:
		return "draw"
	case Stopped:
		return "stopped"
	case Cancelled:
		return "cancelled"
	default:
		return "none"
	}
}

// Callbacks receive engine output synchronously from inside Step.
// Implementations must not call back into the engine.
type Callbacks interface {
	OnFrameGenerated(f *FrameSnapshot)
	OnUnitEvent(e UnitEvent)
	OnStateChanged(msg string)
	OnSimulationComplete(frame int, reason CompletionReason)
}

// NopCallbacks ignores everything. Embed it to implement only some methods.
type NopCallbacks struct{}

func (NopCallbacks) OnFrameGenerated(*FrameSnapshot)            {}
func (NopCallbacks) OnUnitEvent(UnitEvent)                      {}
func (NopCallbacks) OnStateChanged(string)                      {}
func (NopCallbacks) OnSimulationComplete(int, CompletionReason) {}

// MultiCallbacks fans out to every non-nil member in order.
type MultiCallbacks []Callbacks

func (m MultiCallbacks) OnFrameGenerated(f *FrameSnapshot) {
	for _, c := range m {
		if c != nil {
			c.OnFrameGenerated(f)
		}
	}
}

func (m MultiCallbacks) OnUnitEvent(e UnitEvent) {
	for _, c := range m {
		if c != nil {
			c.OnUnitEvent(e)
		}
	}
}

func (m MultiCallbacks) OnStateChanged(msg string) {
	for _, c := range m {
		if c != nil {
			c.OnStateChanged(msg)
		}
	}
}

func (m MultiCallbacks) OnSimulationComplete(frame int, reason CompletionReason) {
	for _, c := range m {
		if c != nil {
			c.OnSimulationComplete(frame, reason)
		}
	}
}
