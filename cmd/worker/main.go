package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"rollcall/internal/config"
	"rollcall/internal/counts"
	"rollcall/internal/queue"
	"rollcall/internal/store"
)

// Worker consumes accepted check-in events and keeps the Redis attendee-count
// cache warm so the API's session listings avoid per-row count queries.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	redisClient := store.NewRedis(cfg.RedisAddr)
	if !redisClient.Healthy(ctx) {
		log.Fatalf("redis not reachable at %s", cfg.RedisAddr)
	}

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "rollcall:checkins")
	}

	cache := counts.NewCache(redisClient.Client)

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for messages...")
	for msg := range messages {
		if msg.Type != "checkin" {
			continue
		}

		evt, err := queue.DecodeCheckinEvent(msg)
		if err != nil {
			log.Printf("malformed checkin event: %v", err)
			continue
		}

		if err := cache.Incr(ctx, evt.SessionID); err != nil {
			log.Printf("count cache update failed for session %s: %v", evt.SessionID, err)
			continue
		}
		log.Printf("session %s: counted checkin %s", evt.SessionID, evt.CheckinID)
	}

	log.Println("worker stopped")
}
