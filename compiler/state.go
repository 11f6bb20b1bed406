// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package compiler

// State is the stage a registration has reached
type State int

const (
	Idle State = iota
	Validating
	Creating
	Linking
	Committed
	RollingBack
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Validating:
		return "validating"
	case Creating:
		return "creating"
	case Linking:
		return "linking"
	case Committed:
		return "committed"
	case RollingBack:
		return "rolling_back"
	case Failed:
		return "failed"
	}
	return "unknown"
}
