package oracle

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/sagemakerruntime"
	"go.uber.org/zap"
)

// EndpointInvoker is the subset of the SageMaker runtime API used here.
type EndpointInvoker interface {
	InvokeEndpointWithContext(ctx aws.Context, input *sagemakerruntime.InvokeEndpointInput, opts ...request.Option) (*sagemakerruntime.InvokeEndpointOutput, error)
}

// SageMakerOracle invokes a hosted SageMaker endpoint.
type SageMakerOracle struct {
	endpoint string
	client   EndpointInvoker
	logger   *zap.Logger
}

// NewSageMakerOracle returns an oracle for cfg.Endpoint. When client is nil a
// runtime client is created from the default AWS credential chain.
func NewSageMakerOracle(cfg Config, client EndpointInvoker, logger *zap.Logger) (*SageMakerOracle, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("sagemaker oracle: endpoint is required")
	}
	if client == nil {
		sess, err := session.NewSession(&aws.Config{
			Region:     aws.String(cfg.Region),
			HTTPClient: &http.Client{Timeout: cfg.Timeout},
		})
		if err != nil {
			return nil, fmt.Errorf("create aws session: %w", err)
		}
		client = sagemakerruntime.New(sess)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SageMakerOracle{
		endpoint: cfg.Endpoint,
		client:   client,
		logger:   logger,
	}, nil
}

// Name implements Reconstructor.
func (o *SageMakerOracle) Name() string { return KindSageMaker }

// Reconstruct implements hybrid.Oracle.
func (o *SageMakerOracle) Reconstruct(ctx context.Context, scaled float64) (float64, error) {
	body, err := encodeRequest(scaled)
	if err != nil {
		return 0, fmt.Errorf("marshal predict request: %w", err)
	}

	out, err := o.client.InvokeEndpointWithContext(ctx, &sagemakerruntime.InvokeEndpointInput{
		EndpointName: aws.String(o.endpoint),
		Body:         body,
		ContentType:  aws.String("application/json"),
		Accept:       aws.String("application/json"),
	})
	if err != nil {
		return 0, fmt.Errorf("invoke endpoint %q: %w", o.endpoint, err)
	}

	v, err := decodePrediction(out.Body)
	if err != nil {
		return 0, err
	}
	o.logger.Debug("reconstruction received",
		zap.String("endpoint", o.endpoint),
		zap.Float64("scaled", scaled),
		zap.Float64("reconstruction", v),
	)
	return v, nil
}
