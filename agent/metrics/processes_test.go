package metrics

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	rmm "github.com/vpscope/vpsagent/shared"
)

func TestTopProcesses(t *testing.T) {
	testTable := []struct {
		name       string
		in         []float64
		expected   []float64
		total      float64
		normalized bool
	}{
		{
			name:     "under 100 untouched",
			in:       []float64{10, 30, 20},
			expected: []float64{30, 20, 10},
			total:    60,
		},
		{
			name:     "exactly 100 untouched",
			in:       []float64{50, 50},
			expected: []float64{50, 50},
			total:    100,
		},
		{
			name:     "scaled down",
			in:       []float64{100, 50, 50},
			expected: []float64{50, 25, 25},
			total:    100,
		},
		{
			name:     "empty",
			in:       []float64{},
			expected: []float64{},
			total:    0,
		},
	}

	for _, tt := range testTable {
		t.Run(tt.name, func(t *testing.T) {
			procs := make([]rmm.ProcessSample, len(tt.in))
			for i, c := range tt.in {
				procs[i] = rmm.ProcessSample{Pid: int32(i + 1), CPUPercent: c}
			}

			ret, total := TopProcesses(procs, MaxProcesses)
			got := make([]float64, len(ret))
			for i, p := range ret {
				got[i] = p.CPUPercent
			}
			assert.InDeltaSlice(t, tt.expected, got, 1e-9)
			assert.InDelta(t, tt.total, total, 1e-9)
		})
	}
}

func TestTopProcessesTruncatesBeforeNormalizing(t *testing.T) {
	procs := make([]rmm.ProcessSample, 0, 30)
	for i := 0; i < 30; i++ {
		procs = append(procs, rmm.ProcessSample{Pid: int32(i), CPUPercent: float64(i)})
	}

	ret, total := TopProcesses(procs, MaxProcesses)
	require.Len(t, ret, MaxProcesses)
	assert.Equal(t, int32(29), ret[0].Pid)
	assert.Equal(t, int32(10), ret[MaxProcesses-1].Pid)
	assert.InDelta(t, 100, total, 1e-9)
}

func TestTopProcessesPreservesRanking(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for round := 0; round < 200; round++ {
		n := r.Intn(40) + 1
		procs := make([]rmm.ProcessSample, n)
		for i := range procs {
			procs[i] = rmm.ProcessSample{Pid: int32(i), Name: fmt.Sprint(i), CPUPercent: r.Float64() * 80}
		}

		raw, _ := TopProcesses(procs, n)
		ret, total := TopProcesses(procs, MaxProcesses)

		var sum float64
		for i, p := range ret {
			sum += p.CPUPercent
			assert.Equal(t, raw[i].Pid, p.Pid)
			if i > 0 {
				assert.GreaterOrEqual(t, ret[i-1].CPUPercent, p.CPUPercent)
			}
		}
		assert.LessOrEqual(t, sum, 100+1e-9)
		assert.InDelta(t, sum, total, 1e-9)
	}
}

func TestProcessTable(t *testing.T) {
	pt := NewProcessTable(IdleProcessName)

	_, err := pt.Processes(context.Background())
	require.NoError(t, err)
	procs, err := pt.Processes(context.Background())
	require.NoError(t, err)

	found := false
	for _, p := range procs {
		assert.NotEmpty(t, p.Name)
		assert.NotEqual(t, "System Idle Process", p.Name)
		if p.Pid == int32(os.Getpid()) {
			found = true
		}
	}
	assert.True(t, found, "own process missing")
}
