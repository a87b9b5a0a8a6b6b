package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"lotus-board/api"
	"lotus-board/assistant"
	"lotus-board/board"
	"lotus-board/client"
	"lotus-board/events"
	"lotus-board/ingest"
	"lotus-board/proposal"
	"lotus-board/storage"
)

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}

	repoURL := os.Getenv("REPO_BASE_URL")
	assistantURL := os.Getenv("ASSISTANT_BASE_URL")
	if repoURL == "" || assistantURL == "" {
		log.Fatal("missing backend config")
	}
	contextURL := os.Getenv("CONTEXT_BASE_URL")
	if contextURL == "" {
		contextURL = assistantURL
	}
	serviceToken := os.Getenv("SERVICE_TOKEN")

	otel.SetTracerProvider(sdktrace.NewTracerProvider())

	logger := log.New()

	taskClient := client.NewTaskClient(repoURL, serviceToken, nil, logger)
	assistantClient := client.NewAssistantClient(assistantURL, serviceToken, nil)
	analysisClient := client.NewAnalysisClient(contextURL, serviceToken, nil)

	var repo board.Repository = taskClient
	var emitter board.Emitter
	var stream api.EventStream

	if redisConn := os.Getenv("REDIS_CONNECTION_STRING"); redisConn != "" {
		redisOpts, err := redis.ParseURL(redisConn)
		if err != nil {
			parts := strings.Split(redisConn, ",")
			redisOpts = &redis.Options{Addr: parts[0]}
			for _, p := range parts[1:] {
				kv := strings.SplitN(p, "=", 2)
				if len(kv) != 2 {
					continue
				}
				switch strings.ToLower(kv[0]) {
				case "password":
					redisOpts.Password = kv[1]
				case "ssl":
					if strings.ToLower(kv[1]) == "true" {
						redisOpts.TLSConfig = &tls.Config{}
					}
				}
			}
		}
		rc := redis.NewClient(redisOpts)

		ttl := 30 * time.Second
		if v := os.Getenv("SNAPSHOT_TTL"); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil || d <= 0 {
				log.Fatalf("invalid SNAPSHOT_TTL: %v", err)
			}
			ttl = d
		}
		repo = storage.NewCache(taskClient, rc, ttl)

		channel := os.Getenv("BOARD_EVENTS_CHANNEL")
		if channel == "" {
			channel = "board-events"
		}
		pub := events.NewPublisher(rc, channel, logger)
		emitter = pub
		stream = pub
	}

	controller := board.NewController(repo, emitter, logger)
	queue := proposal.NewQueue(controller, emitter, logger)
	session := assistant.NewSession(assistantClient, logger)
	pipeline := ingest.NewPipeline(analysisClient, logger)

	loadCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := controller.Load(loadCtx); err != nil {
		// Serve with an empty board; a reload can recover once the store is back.
		logger.WithError(err).Warn("initial board load failed")
	}
	cancel()

	var auth *api.Auth
	if os.Getenv("AUTH_TEST_MODE") == "1" {
		auth = api.NewAuth(nil, "", "")
	} else {
		jwtAudience := os.Getenv("JWT_AUDIENCE")
		domainName := os.Getenv("AUTH_DOMAIN")
		if jwtAudience == "" || domainName == "" {
			log.Fatal("missing auth config")
		}
		jwksURL := fmt.Sprintf("https://%s/.well-known/jwks.json", domainName)
		jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{})
		if err != nil {
			log.Fatalf("jwks: %v", err)
		}
		auth = api.NewAuth(jwks, jwtAudience, "https://"+domainName+"/")
	}

	e := echo.New()
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	e.Use(echoprometheus.NewMiddleware("lotus_board"))
	e.GET("/metrics", echoprometheus.NewHandler())

	api.Register(e, api.Services{
		Board:     controller,
		Proposals: queue,
		Assistant: session,
		Inferrer:  assistantClient,
		Pipeline:  pipeline,
		Health:    taskClient,
		Stream:    stream,
	}, auth, logger)

	listenAddr := ":8080"
	if val, ok := os.LookupEnv("PORT"); ok {
		listenAddr = ":" + val
	}

	e.Logger.Fatal(e.Start(listenAddr))
}
