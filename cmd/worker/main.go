package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"impact-backend/internal/bootstrap"
	"impact-backend/internal/shared/config"
	"impact-backend/internal/shared/metrics"
	"impact-backend/internal/shared/telemetry"
	"impact-backend/internal/workerproc"
)

const (
	defaultRegion             = "us-east-1"
	defaultVisibilitySeconds  = 1200
	defaultWorkerConcurrency  = 4
	defaultShutdownTimeoutSec = 30
	receiveErrorBackoff       = 2 * time.Second
)

type pollOptions struct {
	queueURL          string
	visibilitySeconds int
	concurrency       int
	shutdownTimeout   time.Duration
}

func main() {
	cfg := config.Load()

	opts := pollOptions{
		queueURL:          strings.TrimSpace(os.Getenv("SQS_QUEUE_URL")),
		visibilitySeconds: envInt("SQS_VISIBILITY_TIMEOUT_SECONDS", defaultVisibilitySeconds),
		concurrency:       envInt("WORKER_CONCURRENCY", defaultWorkerConcurrency),
		shutdownTimeout:   time.Duration(envInt("SHUTDOWN_TIMEOUT_SECONDS", defaultShutdownTimeoutSec)) * time.Second,
	}
	if opts.queueURL == "" {
		log.Fatal("SQS_QUEUE_URL is required")
	}
	if opts.concurrency < 1 {
		opts.concurrency = 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	region := cfg.AWSRegion
	if region == "" {
		region = defaultRegion
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		log.Fatalf("load aws config: %v", err)
	}

	app, err := bootstrap.Build(cfg)
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}

	run(ctx, app, sqs.NewFromConfig(awsCfg), opts)
}

func run(ctx context.Context, app *bootstrap.App, client sqsAPI, opts pollOptions) {
	sem := make(chan struct{}, opts.concurrency)
	var wg sync.WaitGroup

	log.Printf("worker started queue=%s concurrency=%d visibility=%ds",
		opts.queueURL, opts.concurrency, opts.visibilitySeconds)

pollLoop:
	for ctx.Err() == nil {
		resp, err := client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(opts.queueURL),
			MaxNumberOfMessages: 10,
			WaitTimeSeconds:     20,
			VisibilityTimeout:   int32(opts.visibilitySeconds),
			AttributeNames:      []sqstypes.QueueAttributeName{sqstypes.QueueAttributeName("ApproximateReceiveCount")},
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				break
			}
			log.Printf("receive message: %v", err)
			select {
			case <-ctx.Done():
				break pollLoop
			case <-time.After(receiveErrorBackoff):
			}
			continue
		}

		for _, msg := range resp.Messages {
			select {
			case <-ctx.Done():
				break pollLoop
			case sem <- struct{}{}:
			}
			metrics.IncAnalysisJobsReceived()
			wg.Add(1)
			go func(m sqstypes.Message) {
				defer wg.Done()
				defer func() { <-sem }()
				handleMessage(ctx, app, client, opts.queueURL, m)
			}(msg)
		}
	}

	log.Printf("shutdown requested, waiting up to %s for in-flight jobs", opts.shutdownTimeout)
	waitDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitDone)
	}()
	select {
	case <-waitDone:
	case <-time.After(opts.shutdownTimeout):
		log.Printf("shutdown timeout reached; exiting with in-flight jobs")
	}
}

type sqsAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

func handleMessage(ctx context.Context, app *bootstrap.App, client sqsAPI, queueURL string, msg sqstypes.Message) {
	body := aws.ToString(msg.Body)

	decoded, meta, err := workerproc.ParseMessage(body)
	if err != nil {
		// Malformed payloads can never succeed on redelivery; drop them so
		// the queue does not redrive garbage forever.
		event, fields := classifyParseFailure(msg, meta, err)
		telemetry.Error(event, fields)
		requestID, _ := fields["request_id"].(string)
		if deleteMessage(ctx, client, queueURL, msg, "", requestID) {
			metrics.IncAnalysisJobsDeletedUnrecoverable()
		}
		return
	}

	telemetry.Info("worker.analysis.received", baseFields(msg, decoded.AnalysisID, decoded.RequestID))

	ctxWithParsed := workerproc.WithParsedMessage(ctx, decoded)
	if err := workerproc.HandleMessage(ctxWithParsed, app, body); err != nil {
		// Leave the message in flight; visibility timeout handles redelivery.
		analysisID, requestID := decoded.AnalysisID, decoded.RequestID
		var procErr workerproc.ErrProcess
		if errors.As(err, &procErr) {
			analysisID, requestID = procErr.AnalysisID, procErr.RequestID
		}
		fields := baseFields(msg, analysisID, requestID)
		fields["error"] = err.Error()
		telemetry.Error("worker.analysis.failed", fields)
		metrics.IncAnalysisJobsFailed()
		return
	}

	if deleteMessage(ctx, client, queueURL, msg, decoded.AnalysisID, decoded.RequestID) {
		telemetry.Info("worker.analysis.completed", baseFields(msg, decoded.AnalysisID, decoded.RequestID))
		metrics.IncAnalysisJobsCompleted()
	}
}

func classifyParseFailure(msg sqstypes.Message, meta workerproc.MessageMeta, err error) (string, map[string]any) {
	fields := baseFields(msg, "", "")
	fields["body_len"] = meta.BodyLen
	if meta.BodySHA != "" {
		fields["body_sha256"] = meta.BodySHA
	}

	var (
		emptyErr   workerproc.ErrEmptyBody
		decodeErr  workerproc.ErrDecode
		versionErr workerproc.ErrUnsupportedVersion
		missingErr workerproc.ErrMissingAnalysisID
	)
	switch {
	case errors.As(err, &emptyErr):
		return "worker.analysis.empty_body", fields
	case errors.As(err, &decodeErr):
		fields["error"] = decodeErr.Err.Error()
		return "worker.analysis.decode_failed", fields
	case errors.As(err, &versionErr):
		fields["message_version"] = versionErr.Version
		if versionErr.RequestID != "" {
			fields["request_id"] = versionErr.RequestID
		}
		return "worker.analysis.unsupported_version", fields
	case errors.As(err, &missingErr):
		if missingErr.RequestID != "" {
			fields["request_id"] = missingErr.RequestID
		}
		return "worker.analysis.missing_id", fields
	default:
		fields["error"] = err.Error()
		return "worker.analysis.decode_failed", fields
	}
}

func deleteMessage(ctx context.Context, client sqsAPI, queueURL string, msg sqstypes.Message, analysisID, requestID string) bool {
	receipt := aws.ToString(msg.ReceiptHandle)
	if receipt == "" {
		fields := baseFields(msg, analysisID, requestID)
		fields["error"] = "missing receipt handle"
		telemetry.Error("worker.analysis.delete_failed", fields)
		return false
	}
	if _, err := client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(queueURL),
		ReceiptHandle: aws.String(receipt),
	}); err != nil {
		fields := baseFields(msg, analysisID, requestID)
		fields["error"] = err.Error()
		telemetry.Error("worker.analysis.delete_failed", fields)
		return false
	}
	return true
}

func baseFields(msg sqstypes.Message, analysisID, requestID string) map[string]any {
	fields := map[string]any{
		"analysis_id":    analysisID,
		"sqs_message_id": aws.ToString(msg.MessageId),
		"receive_count":  receiveCount(msg),
	}
	if strings.TrimSpace(requestID) != "" {
		fields["request_id"] = requestID
	}
	return fields
}

func receiveCount(msg sqstypes.Message) int {
	if msg.Attributes == nil {
		return 0
	}
	parsed, err := strconv.Atoi(msg.Attributes["ApproximateReceiveCount"])
	if err != nil {
		return 0
	}
	return parsed
}

func envInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return val
}
