package bucket

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStrategy(t *testing.T) {
	for _, s := range []string{"prefer-priority", "strict-fifo", "strict-per-bucket-limits"} {
		strategy, err := ParseStrategy(s)
		require.NoError(t, err)
		assert.Equal(t, OverflowStrategy(s), strategy)
	}

	strategy, err := ParseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, PreferPriority, strategy)

	_, err = ParseStrategy("lifo")
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.MaxPriorityEvents = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.MaxRegularEvents = -1
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.TotalDisplayLimit = 0
	assert.Error(t, cfg.Validate())

	// StrictPerBucket 不要求合计上限
	cfg = DefaultConfig()
	cfg.Strategy = StrictPerBucket
	cfg.TotalDisplayLimit = 0
	assert.NoError(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Strategy = "bogus"
	assert.Error(t, cfg.Validate())
}
