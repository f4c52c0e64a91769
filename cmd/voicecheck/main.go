// voicecheck probes every external dependency of a voicechess session and
// reports which ones are reachable before a game is started.
package main

import (
	"context"
	"database/sql"
	"log"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/valyala/fasthttp"
	"nhooyr.io/websocket"

	appcfg "github.com/park285/voicechess/internal/config"
	"github.com/park285/voicechess/internal/engine"
)

func main() {
	_ = godotenv.Load()

	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	checkHTTP("transcriber", cfg.TranscribeURL)
	if cfg.SynthesisURL != "" {
		checkHTTP("synthesizer", cfg.SynthesisURL)
	}
	if cfg.SynthesisWS != "" {
		checkWS(ctx, cfg.SynthesisWS)
	}
	if cfg.RedisURL != "" {
		checkRedis(ctx, cfg.RedisURL)
	}
	if cfg.DatabaseURL != "" {
		checkPostgres(ctx, cfg.DatabaseURL)
	}
	if cfg.StockfishPath != "" {
		checkEngine(ctx, cfg.StockfishPath)
	}
}

// checkHTTP treats any HTTP response as reachable; the speech services
// return 404 or 405 on bare GETs but that still proves they are up.
func checkHTTP(name, baseURL string) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(baseURL)
	req.Header.SetMethod(fasthttp.MethodGet)

	client := &fasthttp.Client{}
	if err := client.DoTimeout(req, resp, 5*time.Second); err != nil {
		log.Printf("%s %s: unreachable: %v", name, baseURL, err)
		return
	}
	log.Printf("%s %s: ok (status %d)", name, baseURL, resp.StatusCode())
}

func checkWS(ctx context.Context, wsURL string) {
	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(dialCtx, wsURL, nil)
	if err != nil {
		log.Printf("synthesizer ws %s: unreachable: %v", wsURL, err)
		return
	}
	_ = conn.Close(websocket.StatusNormalClosure, "probe")
	log.Printf("synthesizer ws %s: ok", wsURL)
}

func checkRedis(ctx context.Context, url string) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		log.Printf("redis %s: bad url: %v", url, err)
		return
	}
	rdb := redis.NewClient(opt)
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("redis %s: unreachable: %v", url, err)
		return
	}
	log.Printf("redis %s: ok", url)
}

func checkPostgres(ctx context.Context, url string) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		log.Printf("postgres: bad dsn: %v", err)
		return
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Printf("postgres: unreachable: %v", err)
		return
	}
	log.Printf("postgres: ok")
}

func checkEngine(ctx context.Context, path string) {
	sess, err := engine.NewSession(ctx, path, engine.Options{})
	if err != nil {
		log.Printf("engine %s: failed: %v", path, err)
		return
	}
	defer sess.Close()
	if err := sess.EnsureReady(ctx); err != nil {
		log.Printf("engine %s: not ready: %v", path, err)
		return
	}
	log.Printf("engine %s: ok", path)
}
