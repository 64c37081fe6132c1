package util_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Raikerian/go-voice-mesh/pkg/util"
)

func TestDebouncer(t *testing.T) {
	t.Run("fires after quiet period", func(t *testing.T) {
		var fired atomic.Int32
		d := util.NewDebouncer(20*time.Millisecond, func() { fired.Add(1) })
		defer d.Stop()

		d.Arm()
		assert.True(t, d.Pending())
		assert.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)
		assert.False(t, d.Pending())
	})

	t.Run("starts disarmed", func(t *testing.T) {
		var fired atomic.Int32
		d := util.NewDebouncer(10*time.Millisecond, func() { fired.Add(1) })
		defer d.Stop()

		time.Sleep(40 * time.Millisecond)
		assert.Zero(t, fired.Load())
	})

	t.Run("rearming postpones", func(t *testing.T) {
		var fired atomic.Int32
		d := util.NewDebouncer(50*time.Millisecond, func() { fired.Add(1) })
		defer d.Stop()

		for i := 0; i < 4; i++ {
			d.Arm()
			time.Sleep(20 * time.Millisecond)
		}
		assert.Zero(t, fired.Load())
		assert.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)
	})

	t.Run("cancel prevents firing", func(t *testing.T) {
		var fired atomic.Int32
		d := util.NewDebouncer(20*time.Millisecond, func() { fired.Add(1) })
		defer d.Stop()

		d.Arm()
		d.Cancel()
		time.Sleep(60 * time.Millisecond)
		assert.Zero(t, fired.Load())

		d.Arm()
		assert.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)
	})

	t.Run("stop is final", func(t *testing.T) {
		var fired atomic.Int32
		d := util.NewDebouncer(10*time.Millisecond, func() { fired.Add(1) })

		d.Stop()
		d.Stop()
		d.Arm()
		time.Sleep(40 * time.Millisecond)
		assert.Zero(t, fired.Load())
		assert.False(t, d.Pending())
	})
}
