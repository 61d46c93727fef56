package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis_rate/v10"
	"github.com/hibiken/asynq"
	"github.com/keywatch/go-keywatch-client/apiroutes"
	"github.com/keywatch/go-keywatch-client/global"
	"github.com/keywatch/go-keywatch-client/queue"
	"github.com/keywatch/go-keywatch-client/services"
	"github.com/keywatch/go-keywatch-client/state"
	"github.com/keywatch/go-keywatch-client/types"
	"github.com/redis/go-redis/v9"
)

func usage() {
	fmt.Printf("Usage: keywatchd [options]\n")
	fmt.Printf("Options:\n")
	flag.PrintDefaults()
}

func initRedisClient(db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     global.Conf.Redis.Host + ":" + strconv.Itoa(global.Conf.Redis.Port),
		Username: global.Conf.Redis.Username,
		Password: global.Conf.Redis.Password,
		DB:       db,
	})
}

func initRedisRateLimiter() *redis.Client {
	redisRateLimitClient := initRedisClient(1)
	limiter := redis_rate.NewLimiter(redisRateLimitClient)
	global.RateLimiter = limiter
	return redisRateLimitClient
}

// calculates the retry delay using exponential backoff
func asyncRetryDelayFunc(attempt int, err error, t *asynq.Task) time.Duration {
	baseDelay := 1 * time.Minute
	maxDelay := 60 * time.Minute

	delay := baseDelay * time.Duration(1<<attempt)
	if delay > maxDelay {
		delay = maxDelay
	}
	return delay
}

// initalizes the async queue and registers the sync cycle handler
func initAsyncQueue(orchestrator *services.Orchestrator) (*asynq.Server, *asynq.Client, *queue.SyncQueue) {
	queueRedisClient := asynq.RedisClientOpt{
		Addr:     global.Conf.Redis.Host + ":" + strconv.Itoa(global.Conf.Redis.Port),
		Username: global.Conf.Redis.Username,
		Password: global.Conf.Redis.Password,
		DB:       2,
	}

	logLevel := asynq.InfoLevel
	if global.Conf.Mode != "debug" {
		logLevel = asynq.WarnLevel
	}
	concurrency := 5
	if global.Conf.Queue.Concurrency > 0 {
		concurrency = global.Conf.Queue.Concurrency
	}

	taskClient := asynq.NewClient(queueRedisClient)
	taskServer := asynq.NewServer(
		queueRedisClient,
		asynq.Config{
			Concurrency:    concurrency,
			LogLevel:       logLevel,
			RetryDelayFunc: asyncRetryDelayFunc,
		},
	)

	syncQueue := queue.NewSyncQueue(orchestrator, taskClient)
	mux := asynq.NewServeMux()
	mux.HandleFunc(types.QueueTypeSyncCycle, syncQueue.ProcessSyncCycleTask)

	if err := taskServer.Start(mux); err != nil {
		log.Fatalf("could not start task server: %v", err)
	}
	return taskServer, taskClient, syncQueue
}

func main() {
	var (
		configFile string
	)
	// configuration file optional path. Default: current dir with filename conf.yaml
	flag.StringVar(&configFile, "c", "conf.yaml", "Configuration file path.")
	flag.StringVar(&configFile, "config", "conf.yaml", "Configuration file path.")
	flag.Usage = usage
	flag.Parse()

	// loading configuration file
	if err := global.LoadConfig(configFile); err != nil {
		global.Logger.Log("error", err, "message", "conf.yaml failed to load")
		panic("failed to load configuration")
	}

	rrClient := initRedisRateLimiter()
	defer rrClient.Close()

	stateRedisClient := initRedisClient(0)
	defer stateRedisClient.Close()

	env := types.NewEnvironment(stateRedisClient)
	defer env.Cron.Stop()

	stateStore := state.NewRedisStore(stateRedisClient)
	syncState := state.NewSyncState(stateStore)

	dbSelector := ConfigDBSelector()

	// the exposure detection capability is registered by the platform glue;
	// without one the daemon only serves the reference API
	var detector services.ExposureDetector
	if name := global.Conf.Sync.Detector; name != "" {
		registered, ok := services.GetDetector(name)
		if !ok {
			panic(fmt.Sprintf("detector %q is not registered: %v", name, types.ErrInvalidConfig))
		}
		detector = registered
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if detector != nil {
		orchestrator := ConfigOrchestrator(dbSelector, syncState, detector)

		taskServer, taskClient, syncQueue := initAsyncQueue(orchestrator)
		defer taskServer.Shutdown()
		defer taskClient.Close()
		env.TaskClient = taskClient

		// hourly backstop trigger; the orchestrator absorbs extras
		env.Cron.AddFunc("@every 1h", func() {
			if err := syncQueue.EnqueueNow("cron"); err != nil {
				global.Logger.Log("error", err, "message", "cron sync trigger failed")
			}
		})
		env.Cron.Start()

		if resume, _ := syncState.AutoResume(ctx); resume {
			if err := syncQueue.EnqueueNow("boot"); err != nil {
				global.Logger.Log("error", err, "message", "boot sync trigger failed")
			}
		}
	} else {
		global.Logger.Log("message", "no exposure detector configured, background sync disabled")
	}

	if global.Conf.Api.Enabled {
		if global.Conf.Mode != "debug" {
			gin.SetMode(gin.ReleaseMode)
		}
		router := gin.New()
		router.Use(gin.Recovery())
		router = apiroutes.ConfigRoutes(router, dbSelector, stateStore)

		srv := &http.Server{
			Addr:    fmt.Sprintf("%s:%d", global.Conf.Host, global.Conf.Port),
			Handler: router,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("reference server failed: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	<-ctx.Done()
	global.Logger.Log("message", "shutting down")
}
