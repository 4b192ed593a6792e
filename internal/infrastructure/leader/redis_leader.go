package leader

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"slot-auction/pkg/logger"
)

// DefaultKey holds the instance ID of the current outbox relay leader.
const DefaultKey = "notification_relay_leader"

var releaseScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

var renewScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("PEXPIRE", KEYS[1], ARGV[2])
	else
		return 0
	end
`)

// RedisLeaderElection is a SETNX lease renewed by a heartbeat at a third of
// its TTL. Losing the key stops the heartbeat.
type RedisLeaderElection struct {
	client redis.Cmdable
	key    string
	ttl    time.Duration
	log    logger.Logger

	mu         sync.Mutex
	heartbeats map[string]chan struct{}
}

func NewRedisLeaderElection(client redis.Cmdable, key string, ttl time.Duration, log logger.Logger) *RedisLeaderElection {
	if key == "" {
		key = DefaultKey
	}
	return &RedisLeaderElection{
		client:     client,
		key:        key,
		ttl:        ttl,
		log:        log,
		heartbeats: make(map[string]chan struct{}),
	}
}

func (r *RedisLeaderElection) BecomeLeader(ctx context.Context, instanceID string) (bool, error) {
	result, err := r.client.SetNX(ctx, r.key, instanceID, r.ttl).Result()
	if err != nil {
		return false, err
	}

	if result {
		r.startHeartbeat(instanceID)
	}
	return result, nil
}

func (r *RedisLeaderElection) IsLeader(ctx context.Context, instanceID string) (bool, error) {
	currentLeader, err := r.client.Get(ctx, r.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	return currentLeader == instanceID, nil
}

func (r *RedisLeaderElection) ReleaseLeadership(ctx context.Context, instanceID string) error {
	r.stopHeartbeat(instanceID)
	return releaseScript.Run(ctx, r.client, []string{r.key}, instanceID).Err()
}

func (r *RedisLeaderElection) startHeartbeat(instanceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, running := r.heartbeats[instanceID]; running {
		return
	}
	stop := make(chan struct{})
	r.heartbeats[instanceID] = stop
	go r.maintainLeadership(instanceID, stop)
}

func (r *RedisLeaderElection) stopHeartbeat(instanceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if stop, ok := r.heartbeats[instanceID]; ok {
		close(stop)
		delete(r.heartbeats, instanceID)
	}
}

func (r *RedisLeaderElection) maintainLeadership(instanceID string, stop chan struct{}) {
	ticker := time.NewTicker(r.ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		renewed, err := renewScript.Run(ctx, r.client, []string{r.key}, instanceID, r.ttl.Milliseconds()).Int64()
		cancel()

		if err != nil || renewed == 0 {
			r.log.Warn("Lost relay leadership", "instance_id", instanceID, "error", err)
			r.mu.Lock()
			if r.heartbeats[instanceID] == stop {
				delete(r.heartbeats, instanceID)
			}
			r.mu.Unlock()
			return
		}
	}
}
