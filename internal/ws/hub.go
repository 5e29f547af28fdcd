package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/abroadly/abroadly-backend/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

const redisPubSubChannel = "chat_events"

var (
	wsConnectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ws_connected_clients",
		Help: "Number of currently connected WebSocket clients",
	})
	wsActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ws_active_rooms",
		Help: "Number of rooms with at least one member",
	})
	wsEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ws_events_total",
		Help: "Total WebSocket events published to rooms",
	}, []string{"event"})
)

// Hub manages WebSocket clients and their room memberships. A room
// corresponds 1:1 with a conversation id; every client is also a member
// of a personal room keyed by its own user id.
type Hub struct {
	// room id -> members
	rooms map[string]map[*Client]bool
	// reverse index for cleanup on disconnect
	memberships map[*Client]map[string]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *roomEvent

	mu          sync.RWMutex
	redisClient *redis.Client
	ctx         context.Context
	cancel      context.CancelFunc
}

// roomEvent targets one room; Exclude skips the originating client for
// relays such as typing indicators
type roomEvent struct {
	Room    string
	Exclude *Client
	Data    []byte
}

// redisEnvelope carries a room event between instances
type redisEnvelope struct {
	Room string          `json:"room"`
	Data json.RawMessage `json:"data"`
}

// NewHub creates a new Hub. redisClient may be nil, in which case
// events fan out to local connections only.
func NewHub(redisClient *redis.Client) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		rooms:       make(map[string]map[*Client]bool),
		memberships: make(map[*Client]map[string]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan *roomEvent, 256),
		redisClient: redisClient,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	if h.redisClient != nil {
		go h.subscribeRedis()
	}

	for {
		select {
		case client := <-h.register:
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client)

		case ev := <-h.broadcast:
			h.deliver(ev)

		case <-h.ctx.Done():
			return
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.memberships[client]; ok {
		return
	}
	h.memberships[client] = make(map[string]bool)
	wsConnectedClients.Inc()

	// Personal room for identity-targeted pushes
	h.joinLocked(client, personalRoom(client.user.ID))
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rooms, ok := h.memberships[client]
	if !ok {
		return
	}
	for room := range rooms {
		h.leaveLocked(client, room)
	}
	delete(h.memberships, client)
	close(client.send)
	wsConnectedClients.Dec()
}

// JoinRoom adds the client to a room. Membership is released
// implicitly on disconnect.
func (h *Hub) JoinRoom(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.memberships[client]; !ok {
		return
	}
	h.joinLocked(client, room)
}

// LeaveRoom removes the client from a room
func (h *Hub) LeaveRoom(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(client, room)
}

func (h *Hub) joinLocked(client *Client, room string) {
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Client]bool)
		wsActiveRooms.Inc()
	}
	h.rooms[room][client] = true
	if h.memberships[client] != nil {
		h.memberships[client][room] = true
	}
}

func (h *Hub) leaveLocked(client *Client, room string) {
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, client)
	if len(members) == 0 {
		delete(h.rooms, room)
		wsActiveRooms.Dec()
	}
	if h.memberships[client] != nil {
		delete(h.memberships[client], room)
	}
}

// Publish sends an event to every member of a room, locally and (when
// Redis is configured) on every other instance. Implements
// service.Notifier; fire-and-forget, failures are logged only.
func (h *Hub) Publish(room, event string, payload interface{}) {
	data, err := json.Marshal(&Event{Event: event, Payload: payload})
	if err != nil {
		logger.GetLogger().Error().Err(err).Str("event", event).Msg("failed to marshal ws event")
		return
	}
	wsEventsTotal.WithLabelValues(event).Inc()

	h.broadcast <- &roomEvent{Room: room, Data: data}

	if h.redisClient != nil {
		env := &redisEnvelope{Room: room, Data: data}
		raw, err := json.Marshal(env)
		if err == nil {
			h.redisClient.Publish(h.ctx, redisPubSubChannel, raw) //nolint:errcheck
		}
	}
}

// Relay sends an event to every member of a room except the sender.
// Local-only and ephemeral; used for typing indicators.
func (h *Hub) Relay(room, event string, sender *Client, payload interface{}) {
	data, err := json.Marshal(&Event{Event: event, Payload: payload})
	if err != nil {
		return
	}
	wsEventsTotal.WithLabelValues(event).Inc()
	h.broadcast <- &roomEvent{Room: room, Exclude: sender, Data: data}
}

func (h *Hub) deliver(ev *roomEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	members, ok := h.rooms[ev.Room]
	if !ok {
		return
	}
	for client := range members {
		if client == ev.Exclude {
			continue
		}
		select {
		case client.send <- ev.Data:
		default:
			// Slow consumer: drop the event, the client reconciles
			// through listMessages on its next fetch
		}
	}
}

// subscribeRedis listens for room events published by other instances
func (h *Hub) subscribeRedis() {
	pubsub := h.redisClient.Subscribe(h.ctx, redisPubSubChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env redisEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err == nil {
				// Local broadcast only; never re-publish to Redis
				h.broadcast <- &roomEvent{Room: env.Room, Data: env.Data}
			}
		case <-h.ctx.Done():
			return
		}
	}
}

// Stop gracefully shuts down the hub
func (h *Hub) Stop() {
	h.cancel()
}

// personalRoom returns the implicit per-user room id
func personalRoom(userID string) string {
	return "user_" + userID
}
