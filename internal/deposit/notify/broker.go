package notify

import (
	"context"
	"strings"
	"sync"

	"anchorex.com/internal/deposit/domain"
	"github.com/nats-io/nats.go"
)

type Message struct {
	Topic   string
	Payload []byte
}

type Broker interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Close() error
}

type BrokerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Prefix  string `mapstructure:"prefix"`
}

// Publisher 发布到 "<prefix>:<status>"，NATS 上对应 subject "<prefix>.<status>"
type Publisher struct {
	broker Broker
	prefix string
}

var _ domain.Notifier = (*Publisher)(nil)

func NewPublisher(b Broker, prefix string) *Publisher {
	if prefix == "" {
		prefix = "deposit"
	}
	return &Publisher{broker: b, prefix: prefix}
}

func (p *Publisher) Notify(ctx context.Context, d *domain.Deposit) {
	payload, err := encode(d)
	if err != nil {
		failed(ctx, "broker", d, err)
		return
	}
	if err := p.broker.Publish(ctx, p.prefix+":"+string(d.Status), payload); err != nil {
		failed(ctx, "broker", d, err)
	}
}

type NatsBroker struct {
	nc *nats.Conn
}

func NewNatsBroker(url string, opts ...nats.Option) (*NatsBroker, error) {
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}
	return &NatsBroker{nc: nc}, nil
}

func (b *NatsBroker) Publish(ctx context.Context, topic string, payload []byte) error {
	return b.nc.Publish(topicToSubject(topic), payload)
}

func (b *NatsBroker) Close() error {
	if b.nc != nil {
		_ = b.nc.Drain()
		b.nc.Close()
	}
	return nil
}

func topicToSubject(topic string) string { return strings.ReplaceAll(topic, ":", ".") }

// MemBroker 进程内 fanout，单进程部署和测试用
type MemBroker struct {
	mu   sync.RWMutex
	subs map[string][]chan Message
}

func NewMemBroker() *MemBroker {
	return &MemBroker{subs: make(map[string][]chan Message)}
}

func (b *MemBroker) Publish(ctx context.Context, topic string, payload []byte) error {
	// 持读锁发送，退订时 close 拿写锁，不会往已关闭的 chan 写
	b.mu.RLock()
	defer b.mu.RUnlock()

	// at-most-once，慢订阅者直接丢
	msg := Message{Topic: topic, Payload: payload}
	for _, ch := range b.subs[topic] {
		select {
		case ch <- msg:
		default:
		}
	}
	return nil
}

func (b *MemBroker) Subscribe(ctx context.Context, topics []string) (<-chan Message, error) {
	ch := make(chan Message, 256)
	b.mu.Lock()
	for _, t := range topics {
		b.subs[t] = append(b.subs[t], ch)
	}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		for _, t := range topics {
			b.subs[t] = removeChan(b.subs[t], ch)
		}
		close(ch)
		b.mu.Unlock()
	}()
	return ch, nil
}

func (b *MemBroker) Close() error { return nil }

func removeChan(list []chan Message, ch chan Message) []chan Message {
	out := list[:0]
	for _, c := range list {
		if c != ch {
			out = append(out, c)
		}
	}
	return out
}
