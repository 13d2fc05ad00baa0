package pose_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/bodymeasure/internal/frame"
	"github.com/banshee-data/bodymeasure/internal/pipeline"
	"github.com/banshee-data/bodymeasure/internal/pose"
	"github.com/banshee-data/bodymeasure/internal/testutil"
)

var (
	_ pipeline.FrameProvider = (*pose.Recording)(nil)
	_ pipeline.Estimator     = (*pose.Recording)(nil)
)

func TestRecordingServesFramesAndRecords(t *testing.T) {
	t.Parallel()

	r := testutil.Recording(testutil.RepeatFrames(testutil.StandingFigure(1), 3), 30)
	require.Len(t, r.Records, 3)

	var got []int
	_, err := r.Frames(context.Background(), 0, func(f frame.Frame) error {
		got = append(got, f.Index)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, got)

	var buf bytes.Buffer
	require.NoError(t, r.Encode(&buf))
	assert.Contains(t, buf.String(), `"frames": [`)

	decoded, err := pose.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, r.Records, decoded.Records)
}
