package detectionHandler

import (
	"errors"
	"fmt"
	"mime/multipart"
	"sort"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/net/context"

	"github.com/Sei0217/visually-impaired/internal/api/detection"
	contextPkg "github.com/Sei0217/visually-impaired/pkg/context"
	"github.com/Sei0217/visually-impaired/pkg/handlerUtil"
	"github.com/Sei0217/visually-impaired/pkg/log"
	"github.com/Sei0217/visually-impaired/pkg/utils"
)

const (
	imageField       = "image"
	fileField        = "file"
	paramConfidence  = "conf"
	paramInputSize   = "imgsz"
	paramMaxDet      = "max_det"
	paramReturnImage = "return_image"
)

func (h *DetectionHandler) Detect(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), h.timeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"path":       ctx.Path(),
	}).Debug("Processing detection request")

	file, err := uploadedFile(ctx)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "read_form_file")
	}

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"path":       ctx.Path(),
		"file_name":  file.Filename,
		"file_size":  file.Size,
	}).Debug("Processing file upload")

	data, err := h.utils.ReadFileHeader(file)
	if err != nil {
		if errors.Is(err, utils.ErrFileTooLarge) {
			return errHandler.Handle(ctx, requestID, fmt.Errorf("%w: %v", detection.ErrFileTooLarge, err), ctx.Path(), "read_file")
		}
		return errHandler.Handle(ctx, requestID, fmt.Errorf("%w: %v", detection.ErrInternalServerError, err), ctx.Path(), "read_file")
	}

	params := detection.NormalizeParams(rawParams(ctx), h.limits)

	result, err := h.detectionService.Detect(c, data, params)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return errHandler.HandleRequestTimeout(ctx)
		}
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "detect")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		h.log.WithFields(log.Fields{
			"request_id":  requestID,
			"path":        ctx.Path(),
			"detections":  len(result.Detections),
			"object_type": result.ObjectType,
			"imgsz":       params.InputSize,
		}).Info("Detection successful")
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, result)
	}
}

// uploadedFile returns the "image" field, then the "file" field, then the first
// uploaded file under any other field name.
func uploadedFile(ctx *fiber.Ctx) (*multipart.FileHeader, error) {
	for _, field := range []string{imageField, fileField} {
		if file, err := ctx.FormFile(field); err == nil {
			return file, nil
		}
	}

	form, err := ctx.MultipartForm()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", detection.ErrMissingImage, err)
	}

	fields := make([]string, 0, len(form.File))
	for name := range form.File {
		fields = append(fields, name)
	}
	sort.Strings(fields)

	for _, name := range fields {
		if files := form.File[name]; len(files) > 0 {
			return files[0], nil
		}
	}
	return nil, detection.ErrMissingImage
}

// rawParams reads each parameter from the form first, then the query string.
func rawParams(ctx *fiber.Ctx) detection.RawParams {
	get := func(key string) string {
		if v := ctx.FormValue(key); v != "" {
			return v
		}
		return ctx.Query(key)
	}

	return detection.RawParams{
		Confidence:    get(paramConfidence),
		InputSize:     get(paramInputSize),
		MaxDetections: get(paramMaxDet),
		ReturnImage:   get(paramReturnImage),
	}
}

func (h *DetectionHandler) Health(ctx *fiber.Ctx) error {
	return ctx.Status(fiber.StatusOK).JSON(detection.HealthResponse{Status: "ok"})
}

func (h *DetectionHandler) Metrics(ctx *fiber.Ctx) error {
	metrics, ok := h.detectionService.Metrics()
	if !ok {
		return ctx.Status(fiber.StatusNotFound).JSON(detection.AssembleError("metrics_unavailable"))
	}
	return ctx.Status(fiber.StatusOK).JSON(metrics)
}
