package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	config_aws "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"youtube-publisher-worker/config"
	"youtube-publisher-worker/domain"
	"youtube-publisher-worker/models"
	"youtube-publisher-worker/repositories"
	"youtube-publisher-worker/services"
)

const (
	MaxBatchSize   = 10
	FlushInterval  = 1 * time.Second
	SQSMaxMessages = 10
)

// mediaProcessor is the part of the resolver the workers drive.
type mediaProcessor interface {
	ProcessMedia(ctx context.Context, parts domain.MediaParameters, visit domain.VisitData, windowID uint64)
}

type messageDeleter interface {
	DeleteMessageBatch(ctx context.Context, queueURL string, entries []types.DeleteMessageBatchRequestEntry) error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	config.SetupLogging(cfg.LogLevel, cfg.LogFormat)

	awsOpts := []func(*config_aws.LoadOptions) error{config_aws.WithRegion(cfg.AWSRegion)}
	if cfg.AWSAccessKeyID != "" && cfg.AWSSecretKey != "" {
		awsOpts = append(awsOpts, config_aws.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretKey, ""),
		))
	}
	awsCfg, err := config_aws.LoadDefaultConfig(context.TODO(), awsOpts...)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to load SDK config")
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to db")
	}
	if err := db.AutoMigrate(&models.PublisherInfo{}, &models.MediaVisit{}); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate db")
	}

	sqsClient := repositories.NewSQSClient(sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if cfg.AWSEndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
		}
	}))

	redisClient := repositories.NewRedisClient(cfg.RedisHost, cfg.RedisPort)
	mediaKeyCache, err := repositories.NewMediaKeyCache(redisClient, cfg.MediaKeyCacheSize, cfg.MediaKeyTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create media key cache")
	}

	ledgerOpts := []services.LedgerOption{
		services.WithDBRepository(repositories.NewDBRepository(db)),
		services.WithMediaKeyCache(mediaKeyCache),
	}
	if cfg.DynamoDBTable != "" {
		dynamoClient := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
			if cfg.AWSEndpointURL != "" {
				o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
			}
		})
		ledgerOpts = append(ledgerOpts, services.WithStatsRepository(repositories.NewDynamoDBClient(dynamoClient, cfg.DynamoDBTable)))
	}
	if cfg.OpenSearchURL != "" {
		osClient, err := repositories.NewOpenSearchClient(cfg.OpenSearchURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create opensearch client")
		}
		ledgerOpts = append(ledgerOpts, services.WithPublisherIndex(repositories.NewOpenSearchRepository(osClient)))
	}
	ledger := services.NewLedgerService(ledgerOpts...)

	youtubeOpts := []services.YouTubeOption{
		services.WithPageFetcher(repositories.NewPageFetcher(cfg.FetchTimeout)),
		services.WithPublisherStore(ledger),
		services.WithVisitRecorder(ledger),
		services.WithActivityResolver(repositories.NewSQSActivityResolver(sqsClient, cfg.ActivityQueueURL)),
	}
	if cfg.ResponsesBucket != "" {
		s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.UsePathStyle = true
			if cfg.AWSEndpointURL != "" {
				o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
			}
		})
		youtubeOpts = append(youtubeOpts, services.WithResponseLogger(repositories.NewResponseArchive(s3Client, cfg.ResponsesBucket)))
	}
	youtubeService := services.NewYouTubeService(youtubeOpts...)

	log.Info().
		Int("workers", cfg.NumWorkers).
		Int("batch_size", MaxBatchSize).
		Msg("youtube publisher worker started")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	jobs := make(chan types.Message, cfg.NumWorkers*2)
	deletes := make(chan types.Message, cfg.NumWorkers*2)

	var workerWg sync.WaitGroup
	for i := 0; i < cfg.NumWorkers; i++ {
		workerWg.Add(1)
		go func(id int) {
			defer workerWg.Done()
			worker(ctx, youtubeService, jobs, deletes, id)
		}(i)
	}

	deleterDone := make(chan struct{})
	go func() {
		defer close(deleterDone)
		batchDeleter(sqsClient, cfg.InputQueueURL, deletes)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info().Str("signal", sig.String()).Msg("initiating shutdown")
		cancel()
	}()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		default:
		}

		msgOutput, err := sqsClient.ReceiveMessages(ctx, cfg.InputQueueURL, SQSMaxMessages)
		if err != nil {
			if ctx.Err() != nil {
				break loop
			}
			log.Error().Err(err).Msg("failed to receive messages")
			time.Sleep(5 * time.Second)
			continue
		}

		for _, msg := range msgOutput.Messages {
			select {
			case jobs <- msg:
			case <-ctx.Done():
				break loop
			}
		}
	}

	log.Info().Msg("main loop exited, waiting for workers to finish")
	close(jobs)
	workerWg.Wait()
	close(deletes)
	<-deleterDone
	log.Info().Msg("shutdown complete")
}

// worker processes jobs until the channel is closed. Every message it processes
// is handed to the deleter, including the ones it could not decode. Once ctx is
// cancelled the remaining jobs are drained without processing or deleting, so
// SQS redelivers them after the visibility timeout. A message already being
// processed runs to completion on a context that ignores the shutdown.
func worker(ctx context.Context, svc mediaProcessor, jobs <-chan types.Message, deletes chan<- types.Message, id int) {
	processCtx := context.WithoutCancel(ctx)
	for msg := range jobs {
		if ctx.Err() != nil {
			log.Debug().Int("worker", id).Str("message_id", aws.ToString(msg.MessageId)).Msg("shutting down, leaving message on the queue")
			continue
		}
		handleMessage(processCtx, svc, msg, id)
		deletes <- msg
	}
}

func handleMessage(ctx context.Context, svc mediaProcessor, msg types.Message, id int) {
	var body domain.MediaEventMessage
	if err := json.Unmarshal([]byte(aws.ToString(msg.Body)), &body); err != nil {
		log.Error().Err(err).Int("worker", id).Str("message_id", aws.ToString(msg.MessageId)).Msg("failed to unmarshal")
		return
	}
	if body.Type != "" && body.Type != domain.MsgTypeMediaEvent {
		log.Warn().Int("worker", id).Str("type", body.Type).Msg("unexpected message type")
		return
	}

	svc.ProcessMedia(ctx, body.Parts, body.Visit, body.WindowID)
}

// batchDeleter flushes every MaxBatchSize messages or FlushInterval, and once
// more when deletes is closed.
func batchDeleter(client messageDeleter, queueURL string, deletes <-chan types.Message) {
	var batch []types.DeleteMessageBatchRequestEntry
	ticker := time.NewTicker(FlushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := client.DeleteMessageBatch(context.Background(), queueURL, batch); err != nil {
			log.Error().Err(err).Int("size", len(batch)).Msg("failed to delete batch")
		}
		batch = nil
	}

	for {
		select {
		case msg, ok := <-deletes:
			if !ok {
				flush()
				return
			}
			batch = append(batch, types.DeleteMessageBatchRequestEntry{
				Id:            msg.MessageId,
				ReceiptHandle: msg.ReceiptHandle,
			})
			if len(batch) >= MaxBatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
