package storage

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
)

var Redis *redis.Client

func InitializeRedis() {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "localhost:6379"
		log.Println("REDIS_URL not set, using localhost:6379 (development mode)")
	}

	Redis = redis.NewClient(&redis.Options{
		Addr:     redisURL,
		Password: "",
		DB:       0,
	})

	log.Println("Redis initialized with address:", redisURL)
}

// MarkWebhookEvent records a provider event reference once it has taken
// effect on a booking. Returns true the first time a reference is seen.
// Replay detection itself rests on the status compare-and-set; the marker
// only tracks which events have settled, so redis being unavailable is
// harmless.
func MarkWebhookEvent(ctx context.Context, reference, event string) bool {
	if Redis == nil {
		return true
	}
	ok, err := Redis.SetNX(ctx, "payment:event:"+event+":"+reference, "1", 48*time.Hour).Result()
	if err != nil {
		log.Printf("redis webhook marker failed for %s: %v", reference, err)
		return true
	}
	return ok
}
