package integration

import "sync"

// StreamBroker 按用户分发通知给 SSE 订阅者
type StreamBroker struct {
	mu          sync.RWMutex
	subscribers map[int64]map[chan []byte]struct{}
}

// NewStreamBroker 创建 SSE 分发器
func NewStreamBroker() *StreamBroker {
	return &StreamBroker{subscribers: make(map[int64]map[chan []byte]struct{})}
}

// Subscribe 订阅用户通知,调用返回的函数取消订阅
func (b *StreamBroker) Subscribe(userID int64) (<-chan []byte, func()) {
	ch := make(chan []byte, 64)

	b.mu.Lock()
	if b.subscribers[userID] == nil {
		b.subscribers[userID] = make(map[chan []byte]struct{})
	}
	b.subscribers[userID][ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subscribers[userID], ch)
			if len(b.subscribers[userID]) == 0 {
				delete(b.subscribers, userID)
			}
			close(ch)
		})
	}
}

// SendToUser 向用户的订阅者推送,订阅者处理不过来时丢弃该条消息
func (b *StreamBroker) SendToUser(userID int64, message []byte) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	delivered := 0
	for ch := range b.subscribers[userID] {
		select {
		case ch <- message:
			delivered++
		default:
		}
	}
	return delivered
}

// SubscriberCount 用户当前的订阅数
func (b *StreamBroker) SubscriberCount(userID int64) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[userID])
}
