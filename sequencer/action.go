package sequencer

// Action is a user-triggered control action
type Action int

const (
	ActionNone     Action = iota
	ActionReset           // clear the active layer's peaks
	ActionLock            // toggle the active layer's lock
	ActionNewTones        // retune the active layer
	ActionNewLayer        // lock the active layer and move to the next one
)

// Wire tags used by the feed
const (
	TagReset    = "RESET"
	TagLock     = "LOCK"
	TagNewTones = "NEW_TONES"
	TagNewLayer = "NEW_GRFNN"
)

// ParseAction maps a wire tag to an Action. Unknown tags give ActionNone.
func ParseAction(tag string) Action {
	switch tag {
	case TagReset:
		return ActionReset
	case TagLock:
		return ActionLock
	case TagNewTones:
		return ActionNewTones
	case TagNewLayer:
		return ActionNewLayer
	default:
		return ActionNone
	}
}

// Tag returns the wire tag for a, or "" for ActionNone
func (a Action) Tag() string {
	switch a {
	case ActionReset:
		return TagReset
	case ActionLock:
		return TagLock
	case ActionNewTones:
		return TagNewTones
	case ActionNewLayer:
		return TagNewLayer
	default:
		return ""
	}
}

func (a Action) String() string {
	if t := a.Tag(); t != "" {
		return t
	}
	return "NONE"
}

// RimAction maps the number of rim hits counted in one window to an action
func RimAction(hits int) Action {
	switch hits {
	case 1:
		return ActionLock
	case 2:
		return ActionNewLayer
	case 3:
		return ActionReset
	default:
		return ActionNone
	}
}
