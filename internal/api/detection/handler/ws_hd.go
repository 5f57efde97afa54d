package detectionHandler

import (
	"time"

	"github.com/gofiber/websocket/v2"
	"golang.org/x/net/context"

	"github.com/Sei0217/visually-impaired/internal/api/detection"
	"github.com/Sei0217/visually-impaired/internal/middleware"
	contextPkg "github.com/Sei0217/visually-impaired/pkg/context"
	"github.com/Sei0217/visually-impaired/pkg/log"
	"github.com/Sei0217/visually-impaired/pkg/response"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsWriteTimeout = 10 * time.Second
	wsPongTimeout  = 5 * time.Second
)

// handleWebSocket answers every binary frame with one detection response.
// Parameters come from the upgrade request's query string and apply to the
// whole connection.
func (h *DetectionHandler) handleWebSocket(c *websocket.Conn) {
	requestID, _ := c.Locals(middleware.RequestIDKey).(string)
	logger := h.log.WithFields(log.Fields{"request_id": requestID})

	logger.Info("Detection WebSocket client connected")
	defer logger.Info("Detection WebSocket client disconnected")

	params := detection.NormalizeParams(detection.RawParams{
		Confidence:    c.Query(paramConfidence),
		InputSize:     c.Query(paramInputSize),
		MaxDetections: c.Query(paramMaxDet),
		ReturnImage:   c.Query(paramReturnImage),
	}, h.limits)

	c.SetPingHandler(func(data string) error {
		if err := c.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(wsPongTimeout)); err != nil {
			logger.Errorf("Error sending pong: %v", err)
		}
		return nil
	})

	for {
		if err := c.SetReadDeadline(time.Now().Add(wsReadTimeout)); err != nil {
			logger.Errorf("Error setting read deadline: %v", err)
			break
		}

		messageType, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Errorf("Detection WebSocket error: %v", err)
			}
			break
		}

		if messageType != websocket.BinaryMessage {
			logger.Warnf("Received unexpected message type: %d", messageType)
			continue
		}

		var payload interface{}
		ctx, cancel := context.WithTimeout(contextPkg.WithRequestID(context.Background(), requestID), h.timeout)
		result, err := h.detectionService.Detect(ctx, message, params)
		cancel()
		if err != nil {
			logger.Warnf("Error processing frame: %v", err)
			payload = detection.AssembleError(response.KeyOf(err))
		} else {
			payload = result
		}

		if err := c.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
			logger.Errorf("Error setting write deadline: %v", err)
			break
		}
		if err := c.WriteJSON(payload); err != nil {
			logger.Errorf("Error writing JSON response: %v", err)
			break
		}
	}
}
