package service

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// RateLimitDecision é o resultado da checagem de limite de uma conversa.
type RateLimitDecision struct {
	Allowed bool
	Count   int64
	Max     int
}

// RateLimiter limita a vazão de mensagens recebidas por conversa contando
// contra o Message Store numa janela móvel. A mensagem que estoura o limite
// continua persistida; só o disparo da IA é pulado.
type RateLimiter struct {
	Messages *MessageService
	Max      int
	Window   time.Duration
}

func NewRateLimiter(messages *MessageService, max int, window time.Duration) *RateLimiter {
	if max <= 0 {
		max = 10
	}
	if window <= 0 {
		window = 60 * time.Second
	}
	return &RateLimiter{Messages: messages, Max: max, Window: window}
}

// Allow conta as mensagens recebidas na janela e decide. A contagem já
// inclui a mensagem atual (persistida antes da checagem); sem trava — a
// pior consequência da corrida são algumas chamadas de IA a mais.
func (r *RateLimiter) Allow(conversationID uint, now time.Time) (*RateLimitDecision, error) {
	count, err := r.Messages.CountInboundSince(conversationID, now.Add(-r.Window))
	if err != nil {
		return nil, err
	}
	return &RateLimitDecision{
		Allowed: count <= int64(r.Max),
		Count:   count,
		Max:     r.Max,
	}, nil
}

// NoticeDeduper garante que avisos (throttle, assinatura inativa) saiam uma
// única vez por chave dentro do TTL. Com Redis o dedupe vale entre
// instâncias (SETNX com expiração); sem Redis cai num mapa local.
type NoticeDeduper struct {
	Redis *redis.Client

	mu    sync.Mutex
	local map[string]time.Time
}

func NewNoticeDeduper(rdb *redis.Client) *NoticeDeduper {
	return &NoticeDeduper{Redis: rdb, local: make(map[string]time.Time)}
}

// ShouldNotify devolve true só na primeira chamada para a chave no TTL.
func (n *NoticeDeduper) ShouldNotify(ctx context.Context, key string, ttl time.Duration) bool {
	if n.Redis != nil {
		ok, err := n.Redis.SetNX(ctx, "notice:"+key, "1", ttl).Result()
		if err == nil {
			return ok
		}
		// Redis fora do ar: cai no mapa local
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	now := time.Now()
	if until, exists := n.local[key]; exists && now.Before(until) {
		return false
	}
	n.local[key] = now.Add(ttl)
	return true
}
