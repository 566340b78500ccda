package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"coachchat/internal/auth"
	"coachchat/internal/config"
	"coachchat/internal/permissions"
	"coachchat/internal/services"
	"coachchat/internal/socket"
	"coachchat/internal/store"
	"coachchat/internal/transport/rest"
	"coachchat/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger := logger.New(cfg.Environment)
	defer appLogger.Logger.Sync()

	session := auth.NewSession(cfg.Auth.UserID, cfg.Auth.Token)
	if !session.Valid() {
		appLogger.Errorf("missing or expired auth token; set AUTH_TOKEN")
		os.Exit(1)
	}

	messageStore := store.New()
	client := rest.NewClient(cfg.API.BaseURL, session, appLogger, rest.WithTimeout(cfg.API.Timeout))
	bridge := services.NewStoreBridge(messageStore, appLogger)
	manager := socket.NewManager(cfg.Socket.URL, session, bridge, appLogger)

	mutations := services.NewMutationService(client, messageStore, session, nil, appLogger)
	sender := services.NewSendService(client, messageStore, session, mutations, permissions.Tier(cfg.Chat.Tier), appLogger)
	history := services.NewHistoryService(client, messageStore, session, cfg.Chat.PageSize, appLogger)

	snapshot := sender.Permissions()
	appLogger.Infof("tier=%s daily_limit=%d remaining=%d", snapshot.Tier, snapshot.DailyLimit, snapshot.MessagesRemaining)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := manager.Connect(ctx); err != nil {
		appLogger.Errorf("socket connect failed: %v", err)
		os.Exit(1)
	}

	// Keep the socket room in step with the active conversation.
	unsubscribe := messageStore.Subscribe(func(ev store.Event) {
		if ev.Type != store.EventActiveConversation {
			return
		}
		if !manager.IsConnected() {
			return
		}
		if ev.ConversationID == "" {
			if err := manager.LeaveConversation(); err != nil {
				appLogger.Warnf("leave room failed: %v", err)
			}
			return
		}
		if err := manager.JoinConversation(ev.ConversationID); err != nil {
			appLogger.Warnf("join room failed: %v", err)
		}
	})
	defer unsubscribe()

	if conversationID := os.Getenv("CONVERSATION_ID"); conversationID != "" {
		messageStore.SetActive(conversationID)
		if err := history.Refresh(ctx); err != nil {
			appLogger.Warnf("initial refresh failed: %v", err)
		}
		if err := history.MarkAsRead(ctx); err != nil {
			appLogger.Warnf("mark as read failed: %v", err)
		}
	}

	appLogger.Infof("chat core running user=%s", session.UserID())

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	manager.Disconnect()
	appLogger.Infof("chat core stopped")
}
