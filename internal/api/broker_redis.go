package api

import (
    "context"
    "encoding/json"
    "os"
    "sync"
    "time"

    redis "github.com/redis/go-redis/v9"
)

type EventBroker interface {
    Subscribe(scenarioID string) chan SSEEvent
    Unsubscribe(scenarioID string, ch chan SSEEvent)
    Publish(scenarioID string, evt SSEEvent)
}

// In-memory broker already implemented in broker.go and satisfies EventBroker

// RedisBroker implements EventBroker over Redis Pub/Sub
type RedisBroker struct {
    rdb *redis.Client

    mu      sync.Mutex
    pubsubs map[chan SSEEvent]*redis.PubSub
}

func NewRedisBroker() (*RedisBroker, error) {
    url := os.Getenv("REDIS_URL")
    opt, err := redis.ParseURL(url)
    if err != nil { return nil, err }
    rdb := redis.NewClient(opt)
    return &RedisBroker{rdb: rdb, pubsubs: map[chan SSEEvent]*redis.PubSub{}}, nil
}

func (b *RedisBroker) Subscribe(scenarioID string) chan SSEEvent {
    ch := make(chan SSEEvent, 16)
    ctx := context.Background()
    ps := b.rdb.Subscribe(ctx, b.chanName(scenarioID))
    // initial consume to ensure subscription
    _, _ = ps.Receive(ctx)
    b.mu.Lock()
    b.pubsubs[ch] = ps
    b.mu.Unlock()
    go forwardEvents(ps.Channel(), ch)
    return ch
}

// forwardEvents owns ch: it is the only closer, and it closes only after the
// source channel is drained, so Unsubscribe can never race a send on a
// closed channel.
func forwardEvents(msgs <-chan *redis.Message, ch chan SSEEvent) {
    defer close(ch)
    for msg := range msgs {
        var evt SSEEvent
        if err := json.Unmarshal([]byte(msg.Payload), &evt); err == nil {
            select { case ch <- evt: default: }
        }
    }
}

func (b *RedisBroker) Unsubscribe(scenarioID string, ch chan SSEEvent) {
    b.mu.Lock()
    ps := b.pubsubs[ch]
    delete(b.pubsubs, ch)
    b.mu.Unlock()
    // closing the PubSub ends its message channel; the forwarding goroutine
    // then exits and closes ch
    if ps != nil { _ = ps.Close() }
}

func (b *RedisBroker) Publish(scenarioID string, evt SSEEvent) {
    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
    defer cancel()
    data, _ := json.Marshal(evt)
    _ = b.rdb.Publish(ctx, b.chanName(scenarioID), data).Err()
}

func (b *RedisBroker) chanName(scenarioID string) string { return "scenario:" + scenarioID }
