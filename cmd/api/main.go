package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/YikKhai0303/ChatApp/internal/chat"
	"github.com/YikKhai0303/ChatApp/internal/config"
	"github.com/YikKhai0303/ChatApp/internal/database"
	"github.com/YikKhai0303/ChatApp/internal/gemini"
	"github.com/YikKhai0303/ChatApp/internal/http/handlers"
	"github.com/YikKhai0303/ChatApp/internal/reply"
	"github.com/YikKhai0303/ChatApp/internal/store"
	"github.com/YikKhai0303/ChatApp/internal/ws"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("invalid config: ", err)
	}

	db, err := database.Connect(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		log.Fatal("failed connect db:", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal("failed migrate:", err)
	}
	st := store.New(db)

	model := gemini.NewClient(cfg.GeminiAPIKey,
		gemini.WithBaseURL(cfg.GeminiBaseURL),
		gemini.WithModel(cfg.GeminiModel),
	)
	if cfg.GeminiAPIKey == "" {
		log.Println("GEMINI_API_KEY not set; proxy requests will fail")
	}

	// the chat service goes through a remote proxy when one is configured
	var upstream reply.Upstream = model
	if cfg.ReplyProxyURL != "" {
		upstream = gemini.NewProxyClient(cfg.ReplyProxyURL, nil)
		log.Println("replies via proxy", cfg.ReplyProxyURL)
	}

	replyOpts := []reply.Option{reply.WithMinInterval(cfg.ReplyMinInterval)}
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		replyOpts = append(replyOpts, reply.WithCache(reply.NewRedisCache(rdb, "chatapp:reply:", cfg.ReplyCacheTTL)))
		log.Println("reply cache on redis", cfg.RedisAddr)
	}
	replies := reply.New(upstream, replyOpts...)
	chatSvc := chat.NewService(st, replies, reply.Scope(cfg.ReplyScope))

	hub := ws.NewHub()
	unsubscribe := st.Subscribe(ws.NewPublisher(hub, st).Handle)

	r := gin.Default()
	r.Use(cors.New(corsConfig(cfg.CORSOrigins)))

	handlers.Routes{
		Auth:  &handlers.AuthHandler{DB: db, Store: st, JWTSecret: cfg.JWTSecret},
		Chat:  &handlers.ChatHandler{Chat: chatSvc, Replies: replies},
		Proxy: &handlers.ProxyHandler{Upstream: model},
		WS: &handlers.WSHandler{
			Hub:                  hub,
			JWTSecret:            cfg.JWTSecret,
			WSInsecureSkipVerify: cfg.WSInsecureSkipVerify,
			OriginPatterns:       originPatterns(cfg.CORSOrigins),
		},
		JWTSecret: cfg.JWTSecret,
	}.Mount(r)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Println("listening on", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	closers := []func() error{func() error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}}
	if rdb != nil {
		closers = append(closers, rdb.Close)
	}

	// one operation: the gelmium runner starts every map entry concurrently
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"app": stopApp(srv, hub, unsubscribe, closers...),
		},
	)

	exitCode := <-wait
	log.Printf("exited with code %d", exitCode)
	os.Exit(exitCode)
}

// stopApp drains HTTP before closing anything requests write to. In-flight
// sends keep running after their client leaves, so the database and cache
// are closed only once Shutdown has returned.
func stopApp(srv *http.Server, hub *ws.Hub, unsubscribe func(), closers ...func() error) gfshutdown.Operation {
	return func(ctx context.Context) error {
		log.Println("shutting down")
		unsubscribe()
		hub.Close()

		err := srv.Shutdown(ctx)
		for _, c := range closers {
			if cerr := c(); cerr != nil && err == nil {
				err = cerr
			}
		}
		return err
	}
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization")
	cfg.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

// originPatterns turns CORS origins into the host patterns the websocket
// handshake checks.
func originPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, o := range origins {
		o = strings.TrimPrefix(o, "https://")
		o = strings.TrimPrefix(o, "http://")
		patterns = append(patterns, strings.TrimRight(o, "/"))
	}
	return patterns
}
