// Package onnx runs YOLOv8-style detection models through ONNX Runtime.
package onnx

import (
	"context"
	"errors"
	"fmt"
	"image"
	"runtime"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/Sei0217/visually-impaired/internal/entity"
	"github.com/Sei0217/visually-impaired/pkg/detector"
)

const (
	DefaultInputName  = "images"
	DefaultOutputName = "output0"
)

type tensor = ort.ArbitraryTensor

var (
	envOnce sync.Once
	envErr  error

	ErrNoModel = errors.New("model path is required")
	ErrClosed  = errors.New("detector is closed")
)

type Options struct {
	ModelPath      string
	LibPath        string
	Names          []string
	PoolSize       int
	IntraOpThreads int
	InterOpThreads int
	IOUThreshold   float64
	InputName      string
	OutputName     string
}

type Detector struct {
	pool  *sessionPool
	names []string
	iou   float64

	mu     sync.RWMutex
	closed bool
}

// DefaultLibPath is where the shared ONNX Runtime library is expected when no
// path is configured.
func DefaultLibPath() string {
	switch runtime.GOOS {
	case "windows":
		return "./third_party/onnxruntime.dll"
	case "darwin":
		if runtime.GOARCH == "arm64" {
			return "./third_party/onnxruntime_arm64.dylib"
		}
		return "./third_party/onnxruntime.dylib"
	default:
		if runtime.GOARCH == "arm64" {
			return "./third_party/onnxruntime_arm64.so"
		}
		return "./third_party/onnxruntime.so"
	}
}

func initEnvironment(libPath string) error {
	envOnce.Do(func() {
		if libPath == "" {
			libPath = DefaultLibPath()
		}
		ort.SetSharedLibraryPath(libPath)
		if err := ort.InitializeEnvironment(); err != nil {
			envErr = fmt.Errorf("initialize onnxruntime from %s: %w", libPath, err)
		}
	})
	return envErr
}

// New loads the model into a pool of sessions. It fails when the runtime
// library or model cannot be loaded.
func New(opts Options) (*Detector, error) {
	if opts.ModelPath == "" {
		return nil, ErrNoModel
	}
	if len(opts.Names) == 0 {
		return nil, detector.ErrNoNames
	}
	if opts.IntraOpThreads <= 0 {
		opts.IntraOpThreads = runtime.NumCPU()
	}
	if opts.InterOpThreads <= 0 {
		opts.InterOpThreads = 1
	}
	if opts.IOUThreshold <= 0 {
		opts.IOUThreshold = DefaultIOUThreshold
	}
	if opts.InputName == "" {
		opts.InputName = DefaultInputName
	}
	if opts.OutputName == "" {
		opts.OutputName = DefaultOutputName
	}

	if err := initEnvironment(opts.LibPath); err != nil {
		return nil, err
	}

	pool, err := newSessionPool(opts.PoolSize, func() (runner, error) {
		return newSession(opts)
	})
	if err != nil {
		return nil, err
	}

	return &Detector{
		pool:  pool,
		names: append([]string(nil), opts.Names...),
		iou:   opts.IOUThreshold,
	}, nil
}

func newSession(opts Options) (runner, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("error creating session options: %w", err)
	}
	defer options.Destroy()

	if err := options.SetIntraOpNumThreads(opts.IntraOpThreads); err != nil {
		return nil, fmt.Errorf("error setting intra-op threads: %w", err)
	}
	if err := options.SetInterOpNumThreads(opts.InterOpThreads); err != nil {
		return nil, fmt.Errorf("error setting inter-op threads: %w", err)
	}

	session, err := ort.NewDynamicAdvancedSession(
		opts.ModelPath,
		[]string{opts.InputName},
		[]string{opts.OutputName},
		options,
	)
	if err != nil {
		return nil, fmt.Errorf("error creating session: %w", err)
	}
	return session, nil
}

func (d *Detector) Names() []string {
	return d.names
}

func (d *Detector) Metrics() detector.PoolMetrics {
	return d.pool.Metrics()
}

func (d *Detector) Detect(ctx context.Context, img image.Image, opts detector.Options) ([]entity.RawDetection, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return nil, ErrClosed
	}
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("empty image")
	}
	if opts.Classes != nil && len(opts.Classes) == 0 {
		return nil, nil
	}

	size := roundUp(opts.InputSize)
	canvas, lb := fit(img, size)

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, channelCnt, int64(size), int64(size)))
	if err != nil {
		return nil, fmt.Errorf("error creating input tensor: %w", err)
	}
	defer input.Destroy()
	fillCHW(canvas, input.GetData())

	numClasses := len(d.names)
	anchors := anchorCount(size)
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(4+numClasses), int64(anchors)))
	if err != nil {
		return nil, fmt.Errorf("error creating output tensor: %w", err)
	}
	defer output.Destroy()

	session, err := d.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire session: %w", err)
	}
	err = session.Run([]tensor{input}, []tensor{output})
	d.pool.Release(session)
	if err != nil {
		return nil, fmt.Errorf("run model: %w", err)
	}

	cands := decode(output.GetData(), numClasses, anchors, lb, opts)
	return toRaw(nms(cands, d.iou, opts.MaxDetections)), nil
}

// Close releases every session. Detect calls in flight finish first.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	d.pool.Destroy()
	return nil
}
