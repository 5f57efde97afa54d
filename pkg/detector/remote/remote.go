// Package remote forwards detection requests to an inference server over a
// websocket, one JSON request and one JSON reply per frame.
package remote

import (
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"

	"github.com/Sei0217/visually-impaired/internal/entity"
	"github.com/Sei0217/visually-impaired/pkg/detector"
	"github.com/Sei0217/visually-impaired/pkg/imgcodec"
	"github.com/Sei0217/visually-impaired/pkg/log"
)

const (
	DefaultURL          = "ws://localhost:8000/api/v1/detect/ws"
	defaultPingInterval = 30 * time.Second
	defaultReadTimeout  = 30 * time.Second
	defaultWriteTimeout = 5 * time.Second
	handshakeTimeout    = 10 * time.Second
	frameQuality        = 90
)

var (
	ErrNotConnected = errors.New("not connected to remote detector")
	ErrClosed       = errors.New("remote detector is closed")
)

type Options struct {
	URL          string
	Names        []string
	PingInterval time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type request struct {
	Image         string  `json:"image"`
	Confidence    float64 `json:"conf"`
	InputSize     int     `json:"imgsz"`
	MaxDetections int     `json:"max_det"`
	Classes       []int   `json:"classes,omitempty"`
}

type remoteDetection struct {
	Box        [4]float64 `json:"box"`
	ClassIndex int        `json:"class_index"`
	Score      float64    `json:"score"`
}

type reply struct {
	Detections []remoteDetection `json:"detections"`
	Error      string            `json:"error,omitempty"`
}

// Detector holds one connection. Requests on it are serialized.
type Detector struct {
	url   string
	names []string
	log   *logrus.Logger

	mu           sync.Mutex
	conn         *websocket.Conn
	closed       bool
	pingInterval time.Duration
	readTimeout  time.Duration
	writeTimeout time.Duration
}

// New connects in the background; a failed first dial is retried on the first
// Detect call.
func New(opts Options) (*Detector, error) {
	if len(opts.Names) == 0 {
		return nil, detector.ErrNoNames
	}
	if opts.URL == "" {
		opts.URL = DefaultURL
	}

	d := &Detector{
		url:          opts.URL,
		names:        append([]string(nil), opts.Names...),
		log:          log.NewLogger(),
		pingInterval: orDefault(opts.PingInterval, defaultPingInterval),
		readTimeout:  orDefault(opts.ReadTimeout, defaultReadTimeout),
		writeTimeout: orDefault(opts.WriteTimeout, defaultWriteTimeout),
	}

	go d.connectInBackground()

	return d, nil
}

func orDefault(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func (d *Detector) connectInBackground() {
	d.mu.Lock()
	err := d.ensureConnectedLocked()
	d.mu.Unlock()

	if err != nil {
		d.log.WithFields(log.Fields{
			"url":   d.url,
			"error": err.Error(),
		}).Warn("Initial connection to remote detector failed, will retry on demand")
		return
	}
	d.log.WithField("url", d.url).Info("Connected to remote detector")
}

func (d *Detector) Names() []string {
	return d.names
}

func (d *Detector) IsConnected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conn != nil
}

// Reconnect drops the current connection, if any, and dials again.
func (d *Detector) Reconnect() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reconnectLocked()
}

func (d *Detector) reconnectLocked() error {
	if d.closed {
		return ErrClosed
	}
	if d.conn != nil {
		d.conn.Close()
		d.conn = nil
	}

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = handshakeTimeout

	conn, _, err := dialer.Dial(d.url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", d.url, err)
	}

	conn.SetPingHandler(func(appData string) error {
		if err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(d.writeTimeout)); err != nil {
			d.log.Warnf("Error sending pong: %v", err)
		}
		return nil
	})

	d.conn = conn
	go d.keepAlive(conn)

	return nil
}

func (d *Detector) ensureConnectedLocked() error {
	if d.conn != nil {
		return nil
	}
	return d.reconnectLocked()
}

func (d *Detector) keepAlive(conn *websocket.Conn) {
	ticker := time.NewTicker(d.pingInterval)
	defer ticker.Stop()

	for range ticker.C {
		d.mu.Lock()
		if d.conn != conn {
			d.mu.Unlock()
			return
		}

		err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(d.writeTimeout))
		if err != nil {
			d.log.Warnf("Ping to remote detector failed, marking connection as dead: %v", err)
			d.conn = nil
			conn.Close()
			d.mu.Unlock()
			return
		}
		d.mu.Unlock()
	}
}

func (d *Detector) Detect(ctx context.Context, img image.Image, opts detector.Options) ([]entity.RawDetection, error) {
	if opts.Classes != nil && len(opts.Classes) == 0 {
		return nil, nil
	}

	frame, err := imgcodec.EncodeJPEG(img, frameQuality)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	payload, err := jsoniter.Marshal(request{
		Image:         base64.StdEncoding.EncodeToString(frame),
		Confidence:    opts.Confidence,
		InputSize:     opts.InputSize,
		MaxDetections: opts.MaxDetections,
		Classes:       opts.Classes,
	})
	if err != nil {
		return nil, err
	}

	message, err := d.roundTrip(ctx, payload)
	if err != nil {
		return nil, err
	}

	var result reply
	if err := jsoniter.Unmarshal(message, &result); err != nil {
		return nil, fmt.Errorf("error unmarshaling remote response: %w", err)
	}
	if result.Error != "" {
		return nil, fmt.Errorf("remote detector: %s", result.Error)
	}

	raw := make([]entity.RawDetection, 0, len(result.Detections))
	for _, r := range result.Detections {
		if !opts.AllowsClass(r.ClassIndex) {
			continue
		}
		raw = append(raw, entity.RawDetection{Box: r.Box, ClassIndex: r.ClassIndex, Score: r.Score})
	}
	return raw, nil
}

// roundTrip sends one request and waits for its reply. The connection is
// dropped on any transport error so the next call redials.
func (d *Detector) roundTrip(ctx context.Context, payload []byte) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, ErrClosed
	}
	if err := d.ensureConnectedLocked(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotConnected, err)
	}
	conn := d.conn

	writeDeadline := time.Now().Add(d.writeTimeout)
	readDeadline := time.Now().Add(d.readTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(readDeadline) {
		readDeadline = dl
	}

	conn.SetWriteDeadline(writeDeadline)
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		d.dropLocked(conn)
		return nil, fmt.Errorf("error sending frame: %w", err)
	}

	conn.SetReadDeadline(readDeadline)
	_, message, err := conn.ReadMessage()
	if err != nil {
		d.dropLocked(conn)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("error reading reply: %w", err)
	}

	conn.SetReadDeadline(time.Time{})
	conn.SetWriteDeadline(time.Time{})
	return message, nil
}

func (d *Detector) dropLocked(conn *websocket.Conn) {
	if d.conn == conn {
		d.conn = nil
	}
	conn.Close()
}

func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.closed = true
	if d.conn == nil {
		return nil
	}

	err := d.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(d.writeTimeout),
	)
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		d.log.Warnf("Error sending close frame: %v", err)
	}

	closeErr := d.conn.Close()
	d.conn = nil
	return closeErr
}
