package detection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sei0217/visually-impaired/internal/entity"
)

func TestBuildResolvesLabels(t *testing.T) {
	raw := []entity.RawDetection{
		{Box: [4]float64{1, 2, 3, 4}, ClassIndex: 2, Score: 0.41},
		{Box: [4]float64{5, 6, 7, 8}, ClassIndex: 0, Score: 0.87},
	}

	dets, label, conf, err := Build(raw, coco)
	require.NoError(t, err)

	require.Len(t, dets, 2)
	assert.Equal(t, "car", dets[0].Label)
	assert.Equal(t, [4]float64{1, 2, 3, 4}, dets[0].BBox)
	assert.Equal(t, 0.41, dets[0].Confidence)
	assert.Equal(t, 0.41, dets[0].Conf)
	assert.Equal(t, "person", label)
	assert.Equal(t, 0.87, conf)
}

func TestBuildEmpty(t *testing.T) {
	dets, label, conf, err := Build(nil, coco)
	require.NoError(t, err)
	assert.Empty(t, dets)
	assert.Equal(t, NoDetection, label)
	assert.Equal(t, 0.0, conf)
}

func TestBuildClassIndexOutOfRange(t *testing.T) {
	for _, idx := range []int{-1, len(coco)} {
		_, err := BuildDetections([]entity.RawDetection{{ClassIndex: idx, Score: 0.5}}, coco)
		assert.ErrorIs(t, err, ErrClassIndexOutOfRange)
	}
}

func TestSelectTopFirstWinsTies(t *testing.T) {
	dets := []entity.Detection{
		entity.NewDetection([4]float64{}, "car", 0.7),
		entity.NewDetection([4]float64{}, "dog", 0.7),
		entity.NewDetection([4]float64{}, "person", 0.2),
	}

	label, conf := SelectTop(dets)
	assert.Equal(t, "car", label)
	assert.Equal(t, 0.7, conf)
}
