package retention

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustPolicy(t *testing.T, name string, version int, windows map[int]time.Duration) *Policy {
	t.Helper()
	policy, err := NewPolicy(name, version, windows)
	require.NoError(t, err)
	return policy
}

func TestEngineDefaults(t *testing.T) {
	engine := NewEngine(nil)

	assert.Equal(t, "default", engine.Current().Name)
	assert.Equal(t, 4*time.Hour, engine.Window(0))
	assert.Equal(t, 24*time.Hour, engine.Window(1))
}

func TestEngineQueryCutoffUsesCurrentPolicy(t *testing.T) {
	engine := NewEngine(nil)
	now := time.Now()

	assert.Equal(t, now.Add(-4*time.Hour), engine.QueryCutoff(0, now))

	engine.Reload(mustPolicy(t, "shorter", 2, map[int]time.Duration{
		0: time.Hour,
		1: 2 * time.Hour,
	}))

	// 查询立即切换到新窗口
	assert.Equal(t, now.Add(-time.Hour), engine.QueryCutoff(0, now))
}

func TestEngineSweepCutoffGrandfathersOldWindow(t *testing.T) {
	engine := NewEngine(nil)
	now := time.Now()

	engine.Reload(mustPolicy(t, "shorter", 2, map[int]time.Duration{
		0: time.Hour,
		1: 2 * time.Hour,
	}))

	// 迁移前删除判定使用新旧窗口中较长者
	assert.Equal(t, now.Add(-4*time.Hour), engine.SweepCutoff(0, now))
	assert.Equal(t, now.Add(-24*time.Hour), engine.SweepCutoff(1, now))

	engine.Migrate()

	assert.Equal(t, now.Add(-time.Hour), engine.SweepCutoff(0, now))
	assert.Equal(t, now.Add(-2*time.Hour), engine.SweepCutoff(1, now))
}

func TestEngineReloadToLongerWindowTakesEffectImmediately(t *testing.T) {
	engine := NewEngine(mustPolicy(t, "short", 1, map[int]time.Duration{0: time.Hour}))
	now := time.Now()

	engine.Reload(mustPolicy(t, "long", 2, map[int]time.Duration{0: 8 * time.Hour}))

	// 加长窗口不需要迁移确认
	assert.Equal(t, now.Add(-8*time.Hour), engine.SweepCutoff(0, now))
}

func TestEngineReloadNilIsNoop(t *testing.T) {
	engine := NewEngine(nil)
	engine.Reload(nil)
	assert.Equal(t, "default", engine.Current().Name)
}

func TestEngineConcurrentReadsDuringReload(t *testing.T) {
	engine := NewEngine(nil)
	now := time.Now()

	var wg sync.WaitGroup
	stop := make(chan struct{})

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				// 快照读取永远看到完整策略
				cutoff := engine.SweepCutoff(0, now)
				assert.False(t, cutoff.After(now))
				_ = engine.Window(1)
			}
		}()
	}

	for v := 2; v < 50; v++ {
		engine.Reload(mustPolicy(t, "rotating", v, map[int]time.Duration{
			0: time.Duration(v) * time.Minute,
		}))
		if v%5 == 0 {
			engine.Migrate()
		}
	}

	close(stop)
	wg.Wait()
}
