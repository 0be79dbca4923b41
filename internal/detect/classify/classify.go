// Package classify implements the window classifier (C5): a pure
// function mapping a closed window's observables to a duration class,
// close reason, and opportunity priority. It holds no state and talks
// to no other component.
package classify

import "github.com/rickgao/arb-scanner/internal/model"

// MinArbTicks is the confirmation threshold a window's tick_count must
// reach before it is ever published as Open. Must be >= 2: the Open
// event fires in the (is_arb, in_window) branch of the detector's state
// machine, so tick_count==1 can never satisfy the confirmation check.
const MinArbTicks = 2

// Classify maps window observables to (open_duration_class, close_reason).
// close_reason is nil when the window never reached Open.
func Classify(obs model.WindowObservables) (model.OpenDurationClass, *model.CloseReason) {
	openClass := model.MultiTick
	if obs.TickCount < MinArbTicks {
		openClass = model.SingleTick
	}

	if openClass == model.SingleTick {
		return openClass, nil
	}

	var reason model.CloseReason
	switch {
	case obs.TradeEventFired && obs.VolumeChangeTicks > 1:
		reason = model.CloseVolumeSpikeGradual
	case obs.TradeEventFired:
		reason = model.CloseVolumeSpikeInstant
	case obs.PriceShifted:
		reason = model.ClosePriceDrift
	default:
		reason = model.CloseOrderVanished
	}
	return openClass, &reason
}

// OpportunityClass maps (open_duration_class, close_reason) to the
// four-level priority taxonomy. single_tick windows are never emitted,
// but the mapping is total so callers never need a default case.
func OpportunityClass(openClass model.OpenDurationClass, reason *model.CloseReason) int {
	if openClass == model.SingleTick {
		return 0
	}
	if reason == nil {
		return 4
	}
	switch *reason {
	case model.CloseVolumeSpikeGradual:
		return 1
	case model.ClosePriceDrift:
		return 2
	case model.CloseVolumeSpikeInstant:
		return 3
	case model.CloseOrderVanished:
		return 4
	default:
		return 4
	}
}
