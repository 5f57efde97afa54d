package detectionService

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/net/context"

	"github.com/Sei0217/visually-impaired/internal/api/detection"
	"github.com/Sei0217/visually-impaired/pkg/log"
	"github.com/Sei0217/visually-impaired/pkg/redis"
)

// fingerprint identifies a request by its image bytes and every parameter
// that changes the response.
func fingerprint(data []byte, params detection.Params) string {
	h := sha256.New()
	h.Write(data)
	h.Write([]byte{0})
	h.Write([]byte(strings.Join([]string{
		strconv.FormatFloat(params.ConfidenceThreshold, 'f', -1, 64),
		strconv.Itoa(params.InputSize),
		strconv.Itoa(params.MaxDetections),
		strconv.FormatBool(params.EmitAnnotatedImage),
		strings.Join(params.ClassAllowList.Names(), ","),
	}, "|")))
	return hex.EncodeToString(h.Sum(nil))
}

func (s *detectionService) cached(ctx context.Context, requestID, key string) (*detection.DetectionResponse, bool) {
	b, err := s.cache.GetResult(ctx, key)
	if err != nil {
		if !errors.Is(err, redis.ErrCacheMiss) {
			s.log.WithFields(log.Fields{
				"request_id": requestID,
				"error":      err.Error(),
			}).Warn("[detectionService.cached] cache lookup failed")
		}
		return nil, false
	}

	var resp detection.DetectionResponse
	if err := jsoniter.Unmarshal(b, &resp); err != nil {
		s.log.WithFields(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Warn("[detectionService.cached] discarding unreadable cache entry")
		return nil, false
	}

	s.log.WithField("request_id", requestID).Debug("[detectionService.cached] cache hit")
	return &resp, true
}

func (s *detectionService) store(ctx context.Context, requestID, key string, resp *detection.DetectionResponse) {
	b, err := jsoniter.Marshal(resp)
	if err == nil {
		err = s.cache.SetResult(ctx, key, b, s.cacheTTL)
	}
	if err != nil {
		s.log.WithFields(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Warn("[detectionService.store] failed to cache result")
	}
}
