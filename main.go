package main

import (
	"context"
	"errors"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"chat-client/internal/handlers"
	"chat-client/internal/models"
	"chat-client/internal/notify"
	"chat-client/internal/observability"
	"chat-client/internal/presence"
	"chat-client/internal/rest"
	"chat-client/internal/session"
	"chat-client/internal/socket"
	"chat-client/internal/unread"
)

func main() {
	ctx := context.Background()

	token := os.Getenv("CHAT_TOKEN")
	if token == "" {
		log.Fatalf("CHAT_TOKEN is required")
	}
	userID := os.Getenv("CHAT_USER_ID")
	if userID == "" {
		log.Fatalf("CHAT_USER_ID is required")
	}

	wsURL := getEnv("CHAT_WS_URL", "ws://localhost:8083/ws")
	apiURL := getEnv("CHAT_API_URL", "http://localhost:8083")

	shutdownTracing, err := observability.SetupTracing(ctx, os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"), "chat-client")
	if err != nil {
		log.Fatalf("failed to set up tracing: %v", err)
	}
	defer func() { _ = shutdownTracing(ctx) }()

	publisher := observability.NewPublisher(os.Getenv("AMQP_URL"), getEnv("AMQP_EXCHANGE", "chat_client_events"))
	observability.SetPublisher(publisher)
	defer publisher.Close()

	ps := presence.NewSet()
	aggregator := unread.NewAggregator()
	manager := socket.NewManager(wsURL, ps)
	api := rest.NewClient(apiURL, token)

	if err := manager.Connect(ctx, token); err != nil {
		if errors.Is(err, socket.ErrAuthFailed) {
			log.Fatalf("token rejected, re-authenticate: %v", err)
		}
		log.Fatalf("failed to connect: %v", err)
	}
	defer manager.Disconnect()

	rooms, err := api.ListRooms(ctx)
	if err != nil {
		log.Fatalf("failed to load rooms: %v", err)
	}
	aggregator.InitFromRooms(rooms, userID)
	log.Printf("tracking %d rooms", len(rooms))

	bridge := notify.NewBridge(manager, aggregator, userID)
	defer bridge.Close()
	bridge.OnMention(func(mention models.MentionInfo) {
		log.Printf("mention from %s in %s: %s", mention.SenderName, mention.Room, mention.Excerpt)
	})

	if openID := os.Getenv("CHAT_OPEN_ROOM"); openID != "" {
		room, ok := findRoom(rooms, openID)
		if !ok {
			log.Fatalf("CHAT_OPEN_ROOM %s is not in the room listing", openID)
		}
		sess := session.NewRoomSession(manager, api, aggregator, userID, getEnv("CHAT_USER_NAME", userID))
		if err := sess.Open(ctx, room); err != nil {
			log.Fatalf("failed to open room %s: %v", openID, err)
		}
		defer sess.Close()
		log.Printf("opened room %s with %d messages", room.ID, len(sess.Messages()))
	}

	monitor := handlers.NewMonitorHandler(manager, aggregator, ps)

	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("chat-client"))
	router.Use(observability.HTTPMetricsMiddleware())

	guard := handlers.MonitorAuth(os.Getenv("MONITOR_TOKEN"))
	router.GET("/healthz", monitor.Healthz)
	router.GET("/metrics", guard, gin.WrapH(promhttp.Handler()))
	router.GET("/debug/state", guard, monitor.State)

	port := getEnv("PORT", "8090")
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("monitor server error: %v", err)
	}
}

func findRoom(rooms []models.Room, id string) (models.Room, bool) {
	for _, room := range rooms {
		if room.ID == id {
			return room, true
		}
	}
	return models.Room{}, false
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}
