// Command gatewayd runs the agent orchestration gateway: it wires the
// lifecycle state machine, file reservation engine, account rotation
// engine, and WebSocket event hub behind a minimal HTTP API.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"

	"github.com/joyshmitz/flywheel-gateway-sub002/pkg/account"
	"github.com/joyshmitz/flywheel-gateway-sub002/pkg/agentservice"
	"github.com/joyshmitz/flywheel-gateway-sub002/pkg/config"
	"github.com/joyshmitz/flywheel-gateway-sub002/pkg/driver"
	"github.com/joyshmitz/flywheel-gateway-sub002/pkg/hub"
	"github.com/joyshmitz/flywheel-gateway-sub002/pkg/ids"
	"github.com/joyshmitz/flywheel-gateway-sub002/pkg/lifecycle"
	"github.com/joyshmitz/flywheel-gateway-sub002/pkg/registry"
	"github.com/joyshmitz/flywheel-gateway-sub002/pkg/reservation"
	"github.com/joyshmitz/flywheel-gateway-sub002/pkg/storage"
	"github.com/joyshmitz/flywheel-gateway-sub002/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	storageConfigSource := flag.String("storage-config-source",
		getEnv("STORAGE_CONFIG_SOURCE", "yaml"),
		"Where to read storage connection settings from: yaml (gateway.yaml) or env (DB_* variables)")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("Warning: could not load %s: %v", envPath, err)
		log.Printf("Continuing with existing environment variables...")
	} else {
		log.Printf("Loaded environment from %s", envPath)
	}

	ginMode := getEnv("GIN_MODE", "debug")
	gin.SetMode(ginMode)

	log.Printf("Starting %s", version.AppName)
	log.Printf("Config directory: %s", *configDir)

	ctx := context.Background()

	var cfg *config.GatewayConfig
	configPath := filepath.Join(*configDir, "gateway.yaml")
	if loaded, err := config.Load(configPath); err != nil {
		log.Printf("Warning: could not load %s: %v", configPath, err)
		log.Printf("Falling back to defaults")
		cfg = &config.GatewayConfig{}
		config.ApplyDefaults(cfg)
	} else {
		cfg = loaded
	}

	var storageCfg storage.Config
	switch *storageConfigSource {
	case "env":
		envCfg, err := storage.LoadConfigFromEnv()
		if err != nil {
			log.Fatalf("Failed to load storage config from environment: %v", err)
		}
		storageCfg = envCfg
		log.Println("Storage config loaded from DB_* environment variables")
	default:
		storageCfg = storage.Config{
			Host:     cfg.Storage.Host,
			Port:     cfg.Storage.Port,
			User:     cfg.Storage.User,
			Password: cfg.Storage.Password,
			Database: cfg.Storage.Database,
			SSLMode:  cfg.Storage.SSLMode,
		}
	}
	dbClient, err := storage.NewClient(ctx, storageCfg)
	if err != nil {
		log.Fatalf("Failed to connect to storage: %v", err)
	}
	defer dbClient.Close()
	log.Println("Connected to PostgreSQL and verified schema")

	fsm := lifecycle.NewLifecycleFSM()
	fsm.StartCleanup(
		time.Duration(cfg.Lifecycle.CleanupIntervalSeconds)*time.Second,
		time.Duration(cfg.Lifecycle.TerminalTTLSeconds)*time.Second,
	)
	defer fsm.StopCleanup()

	agentRegistry := registry.NewAgentRegistry()
	reservationRegistry := reservation.NewRegistry()
	reservationEngine := reservation.NewEngine(reservationRegistry, ids.New)

	rotationStore := account.NewSQLStore(dbClient, cfg.Rotation.DefaultStrategy)
	rotationEngine := account.NewEngine(rotationStore, time.Now)

	websocketHub := hub.NewWebSocketHub(10*time.Second, ids.New)

	// No production agent driver (subprocess/container/remote) is wired
	// into this build; MockDriver stands in so the orchestration surface
	// is fully exercised end to end.
	agentDriver := driver.NewMockDriver(time.Now, ids.New)
	agentService := agentservice.New(agentDriver, fsm, agentRegistry)

	eventsService := agentservice.NewAgentEventsService(fsm.Bus(), websocketHub)
	defer eventsService.Close(fsm.Bus())

	router := gin.Default()

	router.GET("/health", func(c *gin.Context) {
		reqCtx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		dbHealth, err := storage.Health(reqCtx, dbClient.Pool())
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": dbHealth,
				"error":    err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":      "healthy",
			"database":    dbHealth,
			"connections": websocketHub.ActiveConnections(),
		})
	})

	router.GET("/ws", func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("websocket upgrade failed: %v", err)
			return
		}
		websocketHub.HandleConnection(c.Request.Context(), conn)
	})

	router.POST("/agents", func(c *gin.Context) {
		var req driver.SpawnConfig
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		spawned, err := agentService.Spawn(c.Request.Context(), req)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, spawned)
	})

	router.POST("/agents/:id/messages", func(c *gin.Context) {
		var req struct {
			Content string `json:"content"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		result, err := agentService.Send(c.Request.Context(), c.Param("id"), req.Content)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)
	})

	router.POST("/agents/:id/terminate", func(c *gin.Context) {
		graceful := c.Query("graceful") != "false"
		if err := agentService.Terminate(c.Request.Context(), c.Param("id"), graceful); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "terminated"})
	})

	router.POST("/agents/:id/interrupt", func(c *gin.Context) {
		if err := agentService.Interrupt(c.Request.Context(), c.Param("id")); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "interrupted"})
	})

	router.GET("/agents/:id/output", func(c *gin.Context) {
		lines, err := agentService.GetOutput(c.Request.Context(), c.Param("id"), nil, 0)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"lines": lines})
	})

	router.POST("/reservations/check", func(c *gin.Context) {
		var req struct {
			ProjectID   string   `json:"projectId"`
			RequesterID string   `json:"requesterId"`
			Patterns    []string `json:"patterns"`
			Exclusive   bool     `json:"exclusive"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		result := reservationEngine.CheckConflicts(req.ProjectID, req.RequesterID, req.Patterns, req.Exclusive)
		c.JSON(http.StatusOK, result)
	})

	router.POST("/accounts/:workspace/:provider/rotate", func(c *gin.Context) {
		result, err := rotationEngine.Rotate(c.Request.Context(), c.Param("workspace"), c.Param("provider"), c.Query("reason"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)
	})

	httpPort := getEnv("HTTP_PORT", "8080")
	log.Printf("HTTP server listening on :%s", httpPort)
	if err := router.Run(":" + httpPort); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
