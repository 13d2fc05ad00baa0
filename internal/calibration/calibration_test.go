package calibration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/bodymeasure/internal/landmark"
	"github.com/banshee-data/bodymeasure/internal/scaffold"
)

func ptr(v float64) *float64 { return &v }

func figure(noseY float64) *scaffold.Scaffold {
	return scaffold.FromPositions(map[landmark.ID]r3.Vec{
		landmark.Nose:       {Y: noseY},
		landmark.LeftAnkle:  {X: 0.1},
		landmark.RightAnkle: {X: -0.1},
	})
}

func TestCalibrate(t *testing.T) {
	t.Parallel()

	c := New(0)

	t.Run("reference height", func(t *testing.T) {
		f, err := c.Calibrate(figure(1.8), ptr(180))
		require.NoError(t, err)
		assert.Equal(t, 100.0, f.Value)
		assert.Equal(t, 1.8, f.HeightProxy)
		assert.True(t, f.Applied)
		assert.True(t, f.ReferenceProvided())
		assert.Equal(t, UnitCentimetre, f.Unit())
	})

	t.Run("no reference height", func(t *testing.T) {
		f, err := c.Calibrate(figure(1.8), nil)
		require.NoError(t, err)
		assert.Equal(t, 1.0, f.Value)
		assert.False(t, f.Applied)
		assert.False(t, f.ReferenceProvided())
		assert.Equal(t, UnitScaffold, f.Unit())
	})

	t.Run("degenerate proxy", func(t *testing.T) {
		f, err := c.Calibrate(figure(0), ptr(180))
		assert.ErrorIs(t, err, ErrDegenerateHeightProxy)
		assert.Equal(t, 1.0, f.Value)
		assert.False(t, f.Applied)
		assert.True(t, f.Degenerate)
		assert.True(t, f.ReferenceProvided())
	})

	t.Run("missing nose", func(t *testing.T) {
		sc := scaffold.FromPositions(map[landmark.ID]r3.Vec{landmark.LeftAnkle: {}})
		f, err := c.Calibrate(sc, ptr(170))
		assert.ErrorIs(t, err, ErrDegenerateHeightProxy)
		assert.Equal(t, 1.0, f.Value)
	})

	t.Run("one ankle", func(t *testing.T) {
		sc := scaffold.FromPositions(map[landmark.ID]r3.Vec{
			landmark.Nose:      {Y: 1.6},
			landmark.LeftAnkle: {},
		})
		f, err := c.Calibrate(sc, ptr(160))
		require.NoError(t, err)
		assert.InDelta(t, 100.0, f.Value, 1e-9)
	})

	t.Run("invalid reference", func(t *testing.T) {
		_, err := c.Calibrate(figure(1.8), ptr(-5))
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrDegenerateHeightProxy)
	})
}

func TestFactorPowerLaw(t *testing.T) {
	t.Parallel()

	for _, value := range []float64{0.5, 1, 2.5, 100, 97.3} {
		f := Factor{Value: value}
		raw := 3.7
		assert.InDelta(t, raw*value, f.Linear(raw), 1e-9)
		assert.InDelta(t, raw*value*value, f.Area(raw), 1e-9)
		assert.InDelta(t, raw*value*value*value, f.Volume(raw), 1e-6)
	}
}

func TestDistance(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0.5, Distance(r3.Vec{X: 0.25, Y: 1.5}, r3.Vec{X: -0.25, Y: 1.5}))
	assert.InDelta(t, 5.0, Distance(r3.Vec{X: 3, Y: 4}, r3.Vec{}), 1e-12)
}
