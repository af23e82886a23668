package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/sewahub/sewahub_be/internal/chat"
	"github.com/sewahub/sewahub_be/internal/config"
	"github.com/sewahub/sewahub_be/internal/db"
	"github.com/sewahub/sewahub_be/internal/handlers"
	"github.com/sewahub/sewahub_be/internal/middleware"
	"github.com/sewahub/sewahub_be/internal/models"
	"github.com/sewahub/sewahub_be/internal/push"
	"github.com/sewahub/sewahub_be/internal/realtime"
	"github.com/sewahub/sewahub_be/internal/repository"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	gdb, err := db.Connect(cfg.DBDSN)
	if err != nil {
		log.Fatal(err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatal("Redis not reachable:", err)
	}

	if err := gdb.AutoMigrate(
		&models.User{},
		&models.Listing{},
		&models.Booking{},
		&models.Conversation{},
		&models.ConversationArchive{},
		&models.Message{},
	); err != nil {
		log.Fatal(err)
	}

	convRepo := repository.NewConversationRepository(gdb)
	msgRepo := repository.NewMessageRepository(gdb)
	bookingRepo := repository.NewBookingRepository(gdb)
	userRepo := repository.NewUserRepository(gdb)

	directory := chat.NewDirectory(convRepo, msgRepo, bookingRepo)
	pipeline := chat.NewPipeline(directory, msgRepo, convRepo)

	hub := realtime.NewHub()
	registry := realtime.NewRegistry()
	presence := realtime.NewPresence(registry, rdb, cfg.PresenceGrace,
		func(userID uuid.UUID, online bool, lastSeen time.Time) {
			hub.Broadcast(realtime.Event{
				Type: "user_status_changed",
				Data: map[string]interface{}{
					"user_id":   userID,
					"online":    online,
					"last_seen": lastSeen,
				},
			})
		})
	notifier := push.NewRedisNotifier(rdb)

	fanout := &handlers.Fanout{Hub: hub, Registry: registry, Notifier: notifier}

	chatH := handlers.NewChatHandler(directory, pipeline, userRepo, fanout)
	wsH := &handlers.WSHandler{
		Dir:       directory,
		Pipe:      pipeline,
		Hub:       hub,
		Registry:  registry,
		Presence:  presence,
		Fanout:    fanout,
		JWTSecret: cfg.JWTSecret,
	}
	authH := &handlers.AuthHandler{
		DB:        gdb,
		JWTSecret: cfg.JWTSecret,
		Expires:   cfg.JWTExpiresMin,
	}
	googleH := &handlers.GoogleOAuthHandler{
		DB:              gdb,
		JWTSecret:       cfg.JWTSecret,
		Expires:         cfg.JWTExpiresMin,
		GoogleClientID:  cfg.GoogleClientID,
		GoogleSecret:    cfg.GoogleSecret,
		GoogleRedirect:  cfg.GoogleRedirect,
		FrontendBaseURL: cfg.FrontendBaseURL,
	}

	app := fiber.New()

	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.FrontendBaseURL,
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		ExposeHeaders:    "Content-Length",
		AllowCredentials: true,
	}))

	api := app.Group("/api")

	// public
	api.Post("/auth/register", authH.Register)
	api.Post("/auth/login", authH.Login)
	api.Post("/auth/logout", authH.Logout)
	api.Get("/auth/google/start", googleH.GoogleStart)
	api.Get("/auth/google/callback", googleH.GoogleCallback)

	// protected (cookie JWT)
	protected := api.Group("/",
		middleware.JWTFromCookie(cfg.JWTSecret),
		middleware.AttachJWTLocals(),
	)

	protected.Get("/me", func(c *fiber.Ctx) error {
		uid := c.Locals("userId")

		var user models.User
		if err := gdb.First(&user, "id = ?", uid).Error; err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"message": "User not found",
			})
		}

		return c.JSON(fiber.Map{
			"success": true,
			"data": fiber.Map{
				"id":    user.ID,
				"name":  user.Name,
				"email": user.Email,
				"role":  user.Role,
			},
		})
	})

	chatGroup := protected.Group("/chat")

	chatGroup.Post("/conversations", chatH.CreateOrGetConversation)
	chatGroup.Get("/conversations", chatH.GetConversations)
	chatGroup.Get("/conversations/:id/messages", chatH.GetMessages)
	chatGroup.Post("/conversations/:id/messages", chatH.SendMessage)
	chatGroup.Patch("/conversations/:id/read", chatH.MarkAsRead)
	chatGroup.Patch("/conversations/:id/archive", chatH.Archive)
	chatGroup.Patch("/conversations/:id/unarchive", chatH.Unarchive)
	chatGroup.Patch("/messages/:id", chatH.EditMessage)
	chatGroup.Delete("/messages/:id", chatH.DeleteMessage)
	chatGroup.Get("/messages/search", chatH.SearchMessages)
	chatGroup.Get("/unread-count", chatH.GetUnreadTotal)
	chatGroup.Get("/stats", chatH.GetStats)

	protected.Post("/bookings/:id/conversation",
		middleware.RequireRoles(string(models.RoleRenter), string(models.RoleOwner)),
		chatH.CreateBookingConversation)

	// websocket endpoint, token auth happens in the upgrade middleware
	app.Get("/ws/chat", wsH.Upgrade, websocket.New(wsH.Handle))

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = cfg.AppPort
	}
	log.Fatal(app.Listen(":" + port))
}
