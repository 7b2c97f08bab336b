package resource

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCPUTracker_Formula(t *testing.T) {
	var c CPUTracker
	assert.Zero(t, c.Observe(100, 1000), "first sample only seeds the baseline")
	assert.InDelta(t, 90.0, c.Observe(150, 1500), 1e-9) // 100×(1−50/500)
}

func TestCPUTracker_NoDeltaKeepsBaseline(t *testing.T) {
	var c CPUTracker
	c.Observe(100, 1000)

	// total 未增长：返回0且不更新基线
	assert.Zero(t, c.Observe(120, 1000))
	assert.Zero(t, c.Observe(90, 900))

	// 下一次有效增量仍相对 (100,1000) 计算
	assert.InDelta(t, 50.0, c.Observe(350, 1500), 1e-9)
}

func TestCPUTracker_ClampAndReset(t *testing.T) {
	var c CPUTracker
	c.Observe(0, 100)
	assert.Zero(t, c.Observe(300, 200), "idle delta above total delta clamps to 0")

	c.Reset()
	assert.Zero(t, c.Observe(0, 100))
	assert.InDelta(t, 100.0, c.Observe(0, 200), 1e-9)
}

func TestProvider_Usage(t *testing.T) {
	samples := []CPUTimes{{Idle: 100, Total: 1000}, {Idle: 150, Total: 1500}}
	i := 0
	p := &Provider{
		readRSS: func(context.Context) (uint64, error) { return 256 * bytesPerMB, nil },
		readCPUTimes: func(context.Context) (CPUTimes, error) {
			s := samples[i]
			i++
			return s, nil
		},
	}

	u, err := p.Usage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 256.0, u.MemoryMB)
	assert.Zero(t, u.CPUPercent)

	u, err = p.Usage(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 90.0, u.CPUPercent, 1e-9)
}

func TestProvider_Errors(t *testing.T) {
	p := &Provider{
		readRSS:      func(context.Context) (uint64, error) { return 0, errors.New("no proc") },
		readCPUTimes: func(context.Context) (CPUTimes, error) { return CPUTimes{}, nil },
	}
	_, err := p.Usage(context.Background())
	assert.ErrorContains(t, err, "read memory")

	p.readRSS = func(context.Context) (uint64, error) { return 1, nil }
	p.readCPUTimes = func(context.Context) (CPUTimes, error) { return CPUTimes{}, errors.New("no stat") }
	_, err = p.Usage(context.Background())
	assert.ErrorContains(t, err, "read cpu times")
}

func TestNewProvider_ReadsSelf(t *testing.T) {
	p, err := NewProvider()
	if err != nil {
		t.Skipf("process info unavailable: %v", err)
	}
	u, err := p.Usage(context.Background())
	if err != nil {
		t.Skipf("resource query unavailable: %v", err)
	}
	assert.Positive(t, u.MemoryMB)
	assert.GreaterOrEqual(t, u.CPUPercent, 0.0)
}
