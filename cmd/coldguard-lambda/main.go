// Command coldguard-lambda serves POST /predict behind an API Gateway HTTP API.
// The persistence window lives for the life of a warm instance.
package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/HerbHall/coldguard/internal/config"
	"github.com/HerbHall/coldguard/internal/detector"
	"github.com/HerbHall/coldguard/internal/detector/hybrid"
	"github.com/HerbHall/coldguard/internal/server"
	"github.com/HerbHall/coldguard/pkg/models"
	"github.com/HerbHall/coldguard/pkg/plugin"
	"github.com/HerbHall/coldguard/pkg/roles"
	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"
)

type handler struct {
	evaluator roles.Evaluator
	logger    *zap.Logger
}

func (h *handler) handle(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	if m := req.RequestContext.HTTP.Method; m != "" && m != http.MethodPost {
		return respond(http.StatusMethodNotAllowed, &detector.Problem{
			Type:   "about:blank",
			Title:  http.StatusText(http.StatusMethodNotAllowed),
			Status: http.StatusMethodNotAllowed,
			Detail: "only POST is supported",
		})
	}

	var (
		result models.HybridResult
		err    error
	)
	body := []byte(req.Body)
	if req.IsBase64Encoded {
		body, err = base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			err = fmt.Errorf("%w: body is not valid base64", hybrid.ErrInvalidInput)
		}
	}
	if err == nil {
		var temperature float64
		temperature, err = detector.ParseReading(body)
		if err == nil {
			result, err = h.evaluator.Evaluate(ctx, temperature)
		}
	}

	status, payload := detector.Response(result, err)
	if p, ok := payload.(*detector.Problem); ok {
		p.Instance = req.RawPath
		h.logger.Warn("reading rejected",
			zap.String("path", req.RawPath),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	return respond(status, payload)
}

func respond(status int, payload any) (events.APIGatewayV2HTTPResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return events.APIGatewayV2HTTPResponse{}, fmt.Errorf("encode response: %w", err)
	}
	contentType := "application/json"
	if _, ok := payload.(*detector.Problem); ok {
		contentType = "application/problem+json"
	}
	return events.APIGatewayV2HTTPResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": contentType},
		Body:       string(body),
	}, nil
}

// newDetector builds the detector from the same configuration keys as the
// server, read from CG_PLUGINS_DETECTOR_* environment variables or a bundled
// coldguard.yaml. History and the event bus are not used here.
func newDetector(ctx context.Context, logger *zap.Logger) (*detector.Module, error) {
	v, err := server.LoadConfig(os.Getenv("CG_CONFIG"))
	if err != nil {
		return nil, err
	}
	det := detector.New()
	err = det.Init(ctx, plugin.Dependencies{
		Config: config.New(v).Sub("plugins.detector"),
		Logger: logger.Named("detector"),
	})
	if err != nil {
		return nil, err
	}
	return det, nil
}

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	det, err := newDetector(context.Background(), logger)
	if err != nil {
		logger.Fatal("failed to initialize detector", zap.Error(err))
	}

	h := &handler{evaluator: det, logger: logger}
	lambda.Start(h.handle)
}
