package detection

import (
	"math"
	"strconv"
	"strings"
)

const (
	DefaultConfidence    = 0.25
	MinConfidence        = 0.05
	MaxConfidence        = 0.9
	DefaultInputSize     = 640
	MinInputSize         = 160
	MaxInputSize         = 640
	DefaultMaxDetections = 20
	MinMaxDetections     = 10
	MaxMaxDetections     = 50
)

// RawParams holds the inference parameters exactly as the client sent them.
// Empty strings mean the parameter was absent.
type RawParams struct {
	Confidence    string
	InputSize     string
	MaxDetections string
	ReturnImage   string
}

// Limits narrows the accepted input size range for a deployment.
type Limits struct {
	MinInputSize     int
	MaxInputSize     int
	DefaultInputSize int
	AllowList        ClassSet
}

func DefaultLimits() Limits {
	return Limits{
		MinInputSize:     MinInputSize,
		MaxInputSize:     MaxInputSize,
		DefaultInputSize: DefaultInputSize,
	}
}

// Params is the validated form of RawParams. Every field is within its range.
type Params struct {
	ConfidenceThreshold float64
	InputSize           int
	MaxDetections       int
	ClassAllowList      ClassSet
	EmitAnnotatedImage  bool
}

// NormalizeParams never fails: malformed values become defaults and out-of-range
// values are pulled to the nearest bound.
func NormalizeParams(raw RawParams, limits Limits) Params {
	limits = limits.sanitize()

	return Params{
		ConfidenceThreshold: clampFloat(parseFloat(raw.Confidence, DefaultConfidence), MinConfidence, MaxConfidence),
		InputSize:           clampInt(parseInt(raw.InputSize, limits.DefaultInputSize), limits.MinInputSize, limits.MaxInputSize),
		MaxDetections:       clampInt(parseInt(raw.MaxDetections, DefaultMaxDetections), MinMaxDetections, MaxMaxDetections),
		ClassAllowList:      limits.AllowList,
		EmitAnnotatedImage:  parseBool(raw.ReturnImage, true),
	}
}

// sanitize keeps a deployment sub-range inside [MinInputSize, MaxInputSize].
func (l Limits) sanitize() Limits {
	if l.MinInputSize < MinInputSize || l.MinInputSize > MaxInputSize {
		l.MinInputSize = MinInputSize
	}
	if l.MaxInputSize > MaxInputSize || l.MaxInputSize < l.MinInputSize {
		l.MaxInputSize = MaxInputSize
	}
	if l.DefaultInputSize == 0 {
		l.DefaultInputSize = DefaultInputSize
	}
	l.DefaultInputSize = clampInt(l.DefaultInputSize, l.MinInputSize, l.MaxInputSize)
	return l
}

func parseFloat(s string, def float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return def
	}
	return v
}

func parseInt(s string, def int) int {
	s = strings.TrimSpace(s)
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}

	// "320.0" style values are still numeric
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return def
	}
	if f > math.MaxInt32 {
		return math.MaxInt32
	}
	if f < math.MinInt32 {
		return math.MinInt32
	}
	return int(f)
}

func parseBool(s string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return def
	}
}

func clampFloat(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
