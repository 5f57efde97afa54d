package detection

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeParamsDefaults(t *testing.T) {
	p := NormalizeParams(RawParams{}, DefaultLimits())

	assert.Equal(t, DefaultConfidence, p.ConfidenceThreshold)
	assert.Equal(t, DefaultInputSize, p.InputSize)
	assert.Equal(t, DefaultMaxDetections, p.MaxDetections)
	assert.True(t, p.EmitAnnotatedImage)
	assert.False(t, p.ClassAllowList.Active())
}

func TestNormalizeParamsClamps(t *testing.T) {
	cases := map[string]struct {
		raw  RawParams
		conf float64
		size int
		max  int
	}{
		"above range": {
			raw:  RawParams{Confidence: "2", InputSize: "4096", MaxDetections: "500"},
			conf: MaxConfidence, size: MaxInputSize, max: MaxMaxDetections,
		},
		"below range": {
			raw:  RawParams{Confidence: "-1", InputSize: "1", MaxDetections: "0"},
			conf: MinConfidence, size: MinInputSize, max: MinMaxDetections,
		},
		"malformed": {
			raw:  RawParams{Confidence: "high", InputSize: "big", MaxDetections: "lots"},
			conf: DefaultConfidence, size: DefaultInputSize, max: DefaultMaxDetections,
		},
		"non finite": {
			raw:  RawParams{Confidence: "NaN", InputSize: "Inf", MaxDetections: "-Inf"},
			conf: DefaultConfidence, size: DefaultInputSize, max: DefaultMaxDetections,
		},
		"in range": {
			raw:  RawParams{Confidence: " 0.4 ", InputSize: "320.0", MaxDetections: "15"},
			conf: 0.4, size: 320, max: 15,
		},
		"documented examples": {
			raw:  RawParams{Confidence: "-5", InputSize: "10000", MaxDetections: "abc"},
			conf: 0.05, size: 640, max: DefaultMaxDetections,
		},
		"unparsable confidence": {
			raw:  RawParams{Confidence: "abc", InputSize: "1"},
			conf: 0.25, size: 160, max: DefaultMaxDetections,
		},
		"confidence far above": {
			raw:  RawParams{Confidence: "99"},
			conf: 0.9, size: DefaultInputSize, max: DefaultMaxDetections,
		},
		"huge float size": {
			raw:  RawParams{InputSize: "1e30"},
			conf: DefaultConfidence, size: MaxInputSize, max: DefaultMaxDetections,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			p := NormalizeParams(tc.raw, DefaultLimits())
			assert.Equal(t, tc.conf, p.ConfidenceThreshold)
			assert.Equal(t, tc.size, p.InputSize)
			assert.Equal(t, tc.max, p.MaxDetections)
		})
	}
}

func TestNormalizeParamsSubRange(t *testing.T) {
	limits := Limits{MinInputSize: 192, MaxInputSize: 384, DefaultInputSize: 320}

	assert.Equal(t, 320, NormalizeParams(RawParams{}, limits).InputSize)
	assert.Equal(t, 384, NormalizeParams(RawParams{InputSize: "640"}, limits).InputSize)
	assert.Equal(t, 192, NormalizeParams(RawParams{InputSize: "160"}, limits).InputSize)

	// a default outside the sub-range is pulled inside it
	limits.DefaultInputSize = 640
	assert.Equal(t, 384, NormalizeParams(RawParams{}, limits).InputSize)

	// a broken sub-range falls back to the full range
	assert.Equal(t, MaxInputSize, NormalizeParams(RawParams{InputSize: "640"}, Limits{MinInputSize: 500, MaxInputSize: 200}).InputSize)
}

func TestNormalizeParamsReturnImage(t *testing.T) {
	for raw, want := range map[string]bool{
		"":      true,
		"false": false,
		"0":     false,
		"no":    false,
		"TRUE":  true,
		"1":     true,
		"maybe": true,
	} {
		assert.Equal(t, want, NormalizeParams(RawParams{ReturnImage: raw}, DefaultLimits()).EmitAnnotatedImage, raw)
	}
}

func TestNormalizeParamsCarriesAllowList(t *testing.T) {
	limits := DefaultLimits()
	limits.AllowList = NewClassSet("person")

	p := NormalizeParams(RawParams{}, limits)
	assert.True(t, p.ClassAllowList.Allows("person"))
	assert.False(t, p.ClassAllowList.Allows("car"))
}
