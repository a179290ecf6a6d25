// Package redaction hands mute intervals to the audio redaction worker.
package redaction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"

	"speech-pii-redaction-service/internal/models"
)

// ErrNoIntervals is returned for a request with nothing to mute.
var ErrNoIntervals = errors.New("redaction: no mute intervals")

// Invoker starts a redaction job without waiting for it to finish.
type Invoker interface {
	InvokeRedaction(ctx context.Context, req models.RedactionRequest) error
	Name() string
}

// Validate checks a request before it leaves the process.
func Validate(req models.RedactionRequest) error {
	if req.S3ObjectKey == "" {
		return fmt.Errorf("%w: redaction request has no object key", models.ErrValidation)
	}
	if len(req.MuteTimeStamps) == 0 {
		return ErrNoIntervals
	}
	return nil
}

// LambdaAPI is the subset of the Lambda client the invoker uses.
type LambdaAPI interface {
	Invoke(ctx context.Context, params *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error)
}

// LambdaInvoker runs the redaction worker as an asynchronous Lambda call.
type LambdaInvoker struct {
	api          LambdaAPI
	functionName string
}

// NewLambdaInvoker creates an invoker for functionName.
func NewLambdaInvoker(api LambdaAPI, functionName string) *LambdaInvoker {
	return &LambdaInvoker{api: api, functionName: functionName}
}

// NewLambdaClient builds a Lambda client from an AWS config.
func NewLambdaClient(cfg aws.Config) *lambda.Client {
	return lambda.NewFromConfig(cfg)
}

// Name implements Invoker.
func (l *LambdaInvoker) Name() string { return "lambda" }

// InvokeRedaction implements Invoker with InvocationType Event.
func (l *LambdaInvoker) InvokeRedaction(ctx context.Context, req models.RedactionRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode redaction request: %w", err)
	}

	out, err := l.api.Invoke(ctx, &lambda.InvokeInput{
		FunctionName:   aws.String(l.functionName),
		InvocationType: types.InvocationTypeEvent,
		Payload:        payload,
	})
	if err != nil {
		return fmt.Errorf("invoke %s: %w", l.functionName, err)
	}
	// Async invocations are accepted with 202.
	if out.StatusCode != 202 {
		return fmt.Errorf("invoke %s: unexpected status %d", l.functionName, out.StatusCode)
	}
	if out.FunctionError != nil {
		return fmt.Errorf("invoke %s: %s", l.functionName, aws.ToString(out.FunctionError))
	}
	return nil
}
