package xretry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPolicy(t *testing.T) {
	t.Run("合法参数", func(t *testing.T) {
		p, err := NewPolicy(3, 10*time.Millisecond)
		require.NoError(t, err)
		assert.Equal(t, 3, p.MaxAttempts)
		assert.Equal(t, 10*time.Millisecond, p.Delay)
	})

	t.Run("零延迟合法", func(t *testing.T) {
		p, err := NewPolicy(1, 0)
		require.NoError(t, err)
		assert.Equal(t, time.Duration(0), p.Delay)
	})

	t.Run("预算为零报配置错误", func(t *testing.T) {
		_, err := NewPolicy(0, time.Millisecond)
		assert.ErrorIs(t, err, ErrInvalidAttempts)
	})

	t.Run("预算为负报配置错误", func(t *testing.T) {
		_, err := NewPolicy(-3, time.Millisecond)
		assert.ErrorIs(t, err, ErrInvalidAttempts)
	})

	t.Run("延迟为负报配置错误", func(t *testing.T) {
		_, err := NewPolicy(3, -time.Millisecond)
		assert.ErrorIs(t, err, ErrInvalidDelay)
	})
}

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	assert.NoError(t, p.Validate())
	assert.Equal(t, DefaultMaxAttempts, p.MaxAttempts)
	assert.Equal(t, DefaultDelay, p.Delay)
}

func TestClassification_String(t *testing.T) {
	assert.Equal(t, "Retry", ClassRetry.String())
	assert.Equal(t, "Abort", ClassAbort.String())
	assert.Equal(t, "Classification(7)", Classification(7).String())
}
