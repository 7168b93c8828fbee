package alarm_test

import (
	"fmt"
	"testing"

	"github.com/shiftwake/shiftwake/internal/alarm"
	"github.com/shiftwake/shiftwake/internal/duty"
)

func TestIdentify_Stable(t *testing.T) {
	a := alarm.Identify("dty_abc", duty.KindWakeApp, 2)
	b := alarm.Identify("dty_abc", duty.KindWakeApp, 2)
	if a != b {
		t.Errorf("same tuple produced different ids: %d vs %d", a, b)
	}
}

func TestIdentify_DistinctWithinDuty(t *testing.T) {
	seen := make(map[int64]string)

	check := func(kind duty.AlarmKind, slot int) {
		id := int64(alarm.Identify("dty_abc", kind, slot))
		key := fmt.Sprintf("%s/%d", kind, slot)
		if prev, ok := seen[id]; ok {
			t.Errorf("id %d collides: %s and %s", id, prev, key)
		}
		seen[id] = key
	}

	check(duty.KindDayBefore, 0)
	for slot := 0; slot < duty.MaxWakeSlots; slot++ {
		check(duty.KindWakeApp, slot)
	}
	check(duty.KindNativeClock, 0)
	for slot := 0; slot < duty.MaxDepartureLegs; slot++ {
		check(duty.KindDeparture, slot)
	}
}

// Cross-duty collisions are possible because the base is a bounded hash; the
// design accepts a rare spurious cancel. Keep the observed rate in line with
// the birthday bound for a 100000-value base rather than asserting zero.
func TestIdentify_CrossDutyCollisionRate(t *testing.T) {
	const samples = 1000

	ids := make(map[int64]bool, samples)
	collisions := 0
	for i := 0; i < samples; i++ {
		id := int64(alarm.Identify(fmt.Sprintf("dty_%06d", i), duty.KindWakeApp, 0))
		if ids[id] {
			collisions++
		}
		ids[id] = true
	}

	// Expected collisions for 1000 draws over 100000 buckets is about 5.
	if collisions > 50 {
		t.Errorf("collision rate too high: %d/%d", collisions, samples)
	}
}
