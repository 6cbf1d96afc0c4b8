package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/redis/go-redis/v9"

	"uplevel-orchestrator/internal/config"
	"uplevel-orchestrator/internal/models"
	"uplevel-orchestrator/internal/pkg/logger"
)

// StateStore persists session context, workflow records, and cached
// agent responses in Redis with coarse TTLs. When Redis is unreachable
// at initialization it degrades to an in-process map. The fallback is a
// documented fidelity gap: it enforces no TTLs and does not survive a
// process restart.
//
// Every operation degrades to false/empty instead of returning an
// error, so callers never handle state I/O failures.
type StateStore struct {
	client *redis.Client
	config config.RedisConfig
	logger *logger.Logger

	fallbackMu sync.RWMutex
	fallback   map[string][]byte
}

func NewStateStore(cfg config.RedisConfig, log *logger.Logger) *StateStore {
	store := &StateStore{
		config:   cfg,
		logger:   log,
		fallback: make(map[string][]byte),
	}

	client, err := connectRedis(cfg)
	if err != nil {
		log.WithError(err).Warn("Redis connection failed, using in-memory storage fallback",
			"redis_url", cfg.URL,
			"fidelity_gap", "no TTL enforcement, state lost on restart")
		return store
	}

	store.client = client
	log.Info("State Store Initialized Successfully",
		"redis_url", cfg.URL,
		"pool_size", cfg.PoolSize,
		"session_ttl", cfg.SessionTTL.String(),
		"workflow_ttl", cfg.WorkflowTTL.String())

	return store
}

// NewInMemoryStateStore returns a store running on the in-process
// fallback map without dialing Redis.
func NewInMemoryStateStore(cfg config.RedisConfig, log *logger.Logger) *StateStore {
	return &StateStore{
		config:   cfg,
		logger:   log,
		fallback: make(map[string][]byte),
	}
}

// connectRedis retries the initial dial with bounded backoff so a Redis
// instance that is still coming up does not trap the process in
// fallback mode. Query-path operations are never retried.
func connectRedis(cfg config.RedisConfig) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}

	opt.PoolSize = cfg.PoolSize
	opt.DialTimeout = cfg.DialTimeout
	opt.ReadTimeout = cfg.ReadTimeout
	opt.WriteTimeout = cfg.WriteTimeout

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	connect := func() (*redis.Client, error) {
		client := redis.NewClient(opt)
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, err
		}
		return client, nil
	}

	return backoff.Retry(ctx, connect,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(3))
}

// FallbackActive reports whether the store is running on the in-process
// fallback map instead of Redis.
func (store *StateStore) FallbackActive() bool {
	return store.client == nil
}

func sessionContextKey(sessionID string) string {
	return fmt.Sprintf("session:%s:context", sessionID)
}

func agentResponseKey(sessionID string, agent models.AgentID) string {
	return fmt.Sprintf("session:%s:agent_responses:%s", sessionID, agent)
}

func workflowKey(workflowID string) string {
	return fmt.Sprintf("workflow:%s", workflowID)
}

func (store *StateStore) StoreSessionContext(ctx context.Context, sessionID string, sessionContext map[string]interface{}) bool {
	return store.setJSON(ctx, sessionContextKey(sessionID), sessionContext, store.config.SessionTTL, "store_session_context")
}

func (store *StateStore) GetSessionContext(ctx context.Context, sessionID string) map[string]interface{} {
	result := make(map[string]interface{})
	store.getJSON(ctx, sessionContextKey(sessionID), &result, "get_session_context")
	return result
}

func (store *StateStore) StoreWorkflow(ctx context.Context, workflow *models.Workflow) bool {
	return store.setJSON(ctx, workflowKey(workflow.ID), workflow, store.config.WorkflowTTL, "store_workflow")
}

// GetWorkflow returns nil when the workflow is absent or the store is
// unreachable.
func (store *StateStore) GetWorkflow(ctx context.Context, workflowID string) *models.Workflow {
	workflow := &models.Workflow{}
	if !store.getJSON(ctx, workflowKey(workflowID), workflow, "get_workflow") {
		return nil
	}
	return workflow
}

func (store *StateStore) StoreAgentResponse(ctx context.Context, sessionID string, agent models.AgentID, response map[string]interface{}) bool {
	return store.setJSON(ctx, agentResponseKey(sessionID, agent), response, store.config.SessionTTL, "store_agent_response")
}

func (store *StateStore) GetAgentResponse(ctx context.Context, sessionID string, agent models.AgentID) map[string]interface{} {
	result := make(map[string]interface{})
	store.getJSON(ctx, agentResponseKey(sessionID, agent), &result, "get_agent_response")
	return result
}

// setJSON serializes value and writes it under key with the given TTL.
// The fallback path stores the serialized bytes so round-trip behavior
// matches the Redis path.
func (store *StateStore) setJSON(ctx context.Context, key string, value interface{}, ttl time.Duration, operation string) bool {
	startTime := time.Now()

	data, err := json.Marshal(value)
	if err != nil {
		store.logger.WithError(models.NewInternalError("SERIALIZATION_FAILED", "Failed to serialize state value").WithCause(err)).
			Error("State store write skipped", "key", key)
		return false
	}

	if store.client == nil {
		store.fallbackMu.Lock()
		store.fallback[key] = data
		store.fallbackMu.Unlock()
		return true
	}

	if err := store.client.Set(ctx, key, data, ttl).Err(); err != nil {
		store.logger.LogService("redis", operation, time.Since(startTime), map[string]interface{}{
			"key": key,
		}, models.NewExternalError("REDIS_STORE_FAILED", "Failed to store state value").WithCause(err))
		return false
	}

	store.logger.LogService("redis", operation, time.Since(startTime), map[string]interface{}{
		"key":   key,
		"bytes": len(data),
	}, nil)

	return true
}

func (store *StateStore) getJSON(ctx context.Context, key string, target interface{}, operation string) bool {
	startTime := time.Now()

	var data []byte
	if store.client == nil {
		store.fallbackMu.RLock()
		stored, exists := store.fallback[key]
		store.fallbackMu.RUnlock()
		if !exists {
			return false
		}
		data = stored
	} else {
		stored, err := store.client.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return false
		}
		if err != nil {
			store.logger.LogService("redis", operation, time.Since(startTime), map[string]interface{}{
				"key": key,
			}, models.NewExternalError("REDIS_GET_FAILED", "Failed to get state value").WithCause(err))
			return false
		}
		data = stored
	}

	if err := json.Unmarshal(data, target); err != nil {
		store.logger.WithError(models.NewInternalError("DESERIALIZATION_FAILED", "Failed to deserialize state value").WithCause(err)).
			Error("State store read discarded", "key", key)
		return false
	}

	return true
}

func (store *StateStore) HealthCheck(ctx context.Context) error {
	if store.client == nil {
		return fmt.Errorf("state store running on in-memory fallback")
	}

	if err := store.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection unhealthy: %w", err)
	}
	return nil
}

func (store *StateStore) Close() error {
	if store.client == nil {
		return nil
	}

	store.logger.Info("Closing State Store")
	return store.client.Close()
}
