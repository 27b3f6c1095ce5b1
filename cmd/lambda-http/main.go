package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=arm64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-http

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"

	"assessment-backend/internal/bootstrap"
	"assessment-backend/internal/shared/config"
	"assessment-backend/internal/shared/telemetry"
)

var (
	initOnce  sync.Once
	initErr   error
	ginLambda *ginadapter.GinLambdaV2
)

func initApp() {
	cfg := config.Load()
	if err := telemetry.Init(cfg.Env); err != nil {
		initErr = err
		return
	}
	app, err := bootstrap.Build(cfg)
	if err != nil {
		initErr = err
		return
	}
	// The execution environment freezes between invocations, so in-process
	// jobs would stall; the SLA sweeper requeues them on its next tick.
	if app.QueueMode != bootstrap.QueueModeSQS {
		telemetry.Warn("lambda.inprocess_queue", map[string]any{"queue": app.QueueMode})
	}
	ginLambda = ginadapter.NewV2(app.Router)
}

func handler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	initOnce.Do(initApp)
	if initErr != nil {
		log.Printf("bootstrap error: %v", initErr)
		body, _ := json.Marshal(map[string]any{"error": map[string]string{"code": "INTERNAL_ERROR", "message": "bootstrap failed"}})
		return events.APIGatewayV2HTTPResponse{
			StatusCode: 500,
			Body:       string(body),
			Headers:    map[string]string{"Content-Type": "application/json"},
		}, initErr
	}
	return ginLambda.ProxyWithContext(ctx, req)
}

func main() {
	lambda.Start(handler)
}
