package measure_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-fsexport/pkg/pipeline/measure"
)

func TestDefaultMetric(t *testing.T) {
	t.Parallel()

	msr := measure.NewDefaultMeasure()
	mt := msr.AddMetric("export", 2)
	mt.AddDuration(2 * time.Second)
	mt.AddDuration(4 * time.Second)
	mt.AddTransportDuration("discover", 4*time.Second)
	mt.AddTransportDuration("discover", 8*time.Second)

	assert.EqualValues(t, 2, mt.Count())
	assert.Equal(t, 3*time.Second, mt.AVGDuration())

	avg := mt.AVGTransportDuration()
	require.Contains(t, avg, "discover")
	assert.Equal(t, 3*time.Second, avg["discover"].Elapsed)
	// averages are computed on a copy
	assert.Equal(t, 3*time.Second, mt.AVGTransportDuration()["discover"].Elapsed)
}

func TestDefaultMeasureUnknownMetric(t *testing.T) {
	t.Parallel()

	msr := measure.NewDefaultMeasure()
	assert.Nil(t, msr.GetMetric("missing"))
	msr.AddMetric("known", 0)
	assert.Len(t, msr.AllMetrics(), 1)
	assert.Equal(t, time.Duration(0), msr.GetMetric("known").AVGDuration())
}
