// Package alarm implements the reminder scheduling core: plan generation,
// trigger identity, registration against the exact-timer facility, trigger
// dispatch and the wake-up snooze state machine.
package alarm

import (
	"hash/fnv"

	"github.com/shiftwake/shiftwake/internal/duty"
	"github.com/shiftwake/shiftwake/internal/timer"
)

// Identity bands. Each kind owns a disjoint range below 100 so ids never
// collide across kinds for the same duty; slot-carrying kinds add the slot
// into their band.
const (
	idBaseMod = 100000

	bandDayBefore   = 10
	bandWakeApp     = 20 // 20..24, one per wake slot
	bandNativeClock = 30
	bandDeparture   = 40 // 40..41, one per leg
)

// Identify maps a (duty, kind, slot) tuple to its trigger ID. The mapping is
// pure and reproducible across restarts, which is what allows cancelling a
// previously registered trigger from the tuple alone, with no lookup table.
//
// The base is a bounded hash of the duty ID, so two different duties can in
// rare cases share a base; the resulting spurious cancel or overwrite is an
// accepted degradation rather than a reason to persist a registry.
func Identify(dutyID string, kind duty.AlarmKind, slot int) timer.TriggerID {
	h := fnv.New32a()
	_, _ = h.Write([]byte(dutyID))
	base := int64(h.Sum32() % idBaseMod)

	var band int64
	switch kind {
	case duty.KindDayBefore:
		band = bandDayBefore
	case duty.KindWakeApp:
		band = bandWakeApp + int64(slot)
	case duty.KindNativeClock:
		band = bandNativeClock
	case duty.KindDeparture:
		band = bandDeparture + int64(slot)
	}

	return timer.TriggerID(base*100 + band)
}
