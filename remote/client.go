package remote

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Config represents realtime WebSocket configuration.
type Config struct {
	Key       string `json:"key"`
	Host      string `json:"host"`
	Port      int    `json:"port"`
	Channel   string `json:"channel"`
	Encrypted bool   `json:"encrypted,omitempty"` // Use WSS instead of WS
}

// Message represents a realtime protocol message.
type Message struct {
	Event   string          `json:"event"`
	Data    json.RawMessage `json:"data"`
	Channel string          `json:"channel,omitempty"`
}

// MessageHandler defines the callback function for handling realtime events.
type MessageHandler func(message Message)

// connectionEstablishedData represents the connection established event data.
type connectionEstablishedData struct {
	SocketID        string `json:"socket_id"`
	ActivityTimeout int    `json:"activity_timeout"`
}

// InstallEvent is the payload of a realtime "install" event.
type InstallEvent struct {
	Packages []InstallPackage `json:"packages"`
}

// InstallPackage names one package to ensure installed.
type InstallPackage struct {
	Name string `json:"name"`
	Dev  bool   `json:"dev,omitempty"`
}

// DecodeInstallEvent parses the double-encoded JSON payload of an install
// event message.
func DecodeInstallEvent(msg Message) (*InstallEvent, error) {
	var ev InstallEvent
	if err := unmarshalMessageData(msg.Data, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

// Client manages the realtime WebSocket connection that delivers install
// events to the agent.
type Client struct {
	config         *Config
	userAgent      string
	verbose        bool
	conn           *websocket.Conn
	socketID       string
	isConnected    bool
	isConnecting   bool
	reconnectTimer *time.Timer
	stopChan       chan struct{}
	eventHandlers  map[string]MessageHandler
	pingTicker     *time.Ticker
	mu             sync.RWMutex
}

// NewClient creates a new realtime client. Returns nil when no config is
// provided.
func NewClient(cfg *Config, userAgent string, verbose bool) *Client {
	if cfg == nil {
		return nil
	}

	return &Client{
		config:        cfg,
		userAgent:     userAgent,
		verbose:       verbose,
		stopChan:      make(chan struct{}),
		eventHandlers: make(map[string]MessageHandler),
	}
}

// Connect establishes the WebSocket connection.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.isConnected || c.isConnecting {
		return nil
	}

	c.isConnecting = true

	dialer := websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	conn, _, err := dialer.Dial(c.buildWebSocketURL(), map[string][]string{
		"User-Agent": {c.userAgent},
	})
	if err != nil {
		c.isConnecting = false
		return fmt.Errorf("failed to connect to WebSocket: %w", err)
	}

	c.conn = conn
	c.isConnecting = false

	log.Printf("[realtime] Connected to %s", c.config.Host)

	go c.handleMessages()

	return nil
}

// IsConnected returns the current connection status.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isConnected
}

// OnEvent registers an event handler for a specific event type.
func (c *Client) OnEvent(eventType string, handler MessageHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.eventHandlers[eventType] = handler
}

// Disconnect closes the realtime connection and stops reconnection.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.stopChan:
		// Already closed
	default:
		close(c.stopChan)
	}

	if c.pingTicker != nil {
		c.pingTicker.Stop()
		c.pingTicker = nil
	}

	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}

	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}

	c.isConnected = false
	c.isConnecting = false

	log.Printf("[realtime] Disconnected")
}

func (c *Client) buildWebSocketURL() string {
	scheme := "ws"
	if c.config.Encrypted {
		scheme = "wss"
	}

	return fmt.Sprintf("%s://%s:%d/app/%s?protocol=7&client=depflow&version=1.0.0",
		scheme, c.config.Host, c.config.Port, c.config.Key)
}

// handleMessages reads incoming WebSocket messages until the connection
// drops or the client is stopped.
func (c *Client) handleMessages() {
	defer func() {
		c.mu.Lock()
		c.isConnected = false
		if c.conn != nil {
			c.conn.Close()
			c.conn = nil
		}
		c.mu.Unlock()

		select {
		case <-c.stopChan:
			return
		default:
			if c.verbose {
				log.Printf("[realtime] Connection lost, scheduling reconnect...")
			}
			c.scheduleReconnect()
		}
	}()

	for {
		select {
		case <-c.stopChan:
			return
		default:
		}

		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			log.Printf("[realtime] Failed to read message: %v", err)
			return
		}

		c.handleProtocolMessage(msg)
	}
}

func (c *Client) handleProtocolMessage(msg Message) {
	if c.verbose {
		log.Printf("[realtime] %s => %s", msg.Event, msg.Data)
	}

	switch msg.Event {
	case "pusher:connection_established":
		var data connectionEstablishedData
		if err := unmarshalMessageData(msg.Data, &data); err != nil {
			log.Printf("[realtime] Failed to parse connection established data: %v", err)
			return
		}

		c.mu.Lock()
		c.socketID = data.SocketID
		c.isConnected = true
		c.mu.Unlock()

		if c.verbose {
			log.Printf("[realtime] Connection established, socket ID: %s", data.SocketID)
		}

		c.startPingTicker(data.ActivityTimeout)

		go func() {
			if err := c.subscribeToChannel(); err != nil {
				log.Printf("[realtime] Failed to subscribe to channel: %v", err)
			}
		}()

	case "pusher:ping":
		c.sendMessage(Message{Event: "pusher:pong"})

	case "pusher:pong":
		// Keepalive response, nothing to do

	case "pusher:error":
		log.Printf("[realtime] Received error: %s", string(msg.Data))

	case "pusher_internal:subscription_succeeded":
		if c.verbose {
			log.Printf("[realtime] Successfully subscribed to channel: %s", msg.Channel)
		}

	default:
		if !c.notifyEventListeners(msg) {
			log.Printf("[realtime] Received unhandled event: %s", msg.Event)
		}
	}
}

// unmarshalMessageData handles double-encoded JSON payloads.
func unmarshalMessageData(data json.RawMessage, v interface{}) error {
	var dataStr string

	if err := json.Unmarshal(data, &dataStr); err != nil {
		return fmt.Errorf("failed to unmarshal data string: %w", err)
	}

	if err := json.Unmarshal([]byte(dataStr), v); err != nil {
		return fmt.Errorf("failed to unmarshal data: %w", err)
	}

	return nil
}

func (c *Client) startPingTicker(activityTimeout int) {
	if activityTimeout <= 0 {
		activityTimeout = 60
	}

	c.mu.Lock()
	if c.pingTicker != nil {
		c.pingTicker.Stop()
	}
	c.pingTicker = time.NewTicker(time.Duration(activityTimeout) * time.Second)
	ticker := c.pingTicker
	c.mu.Unlock()

	go func() {
		for {
			select {
			case <-ticker.C:
				c.sendMessage(Message{Event: "pusher:ping"})
			case <-c.stopChan:
				return
			}
		}
	}()
}

func (c *Client) sendMessage(msg Message) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return fmt.Errorf("not connected")
	}

	if msg.Data == nil {
		msg.Data = json.RawMessage(`{}`)
	}

	encoded, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	return conn.WriteMessage(websocket.TextMessage, encoded)
}

// subscribeToChannel subscribes to the configured channel.
func (c *Client) subscribeToChannel() error {
	if c.config.Channel == "" {
		return fmt.Errorf("no channel configured")
	}

	data, _ := json.Marshal(map[string]interface{}{
		"channel": c.config.Channel,
	})

	if err := c.sendMessage(Message{Event: "pusher:subscribe", Data: data}); err != nil {
		return fmt.Errorf("failed to send subscribe message: %w", err)
	}

	if c.verbose {
		log.Printf("[realtime] Subscribing to channel: %s", c.config.Channel)
	}

	return nil
}

func (c *Client) notifyEventListeners(msg Message) bool {
	handled := false

	c.mu.RLock()
	for eventType, handler := range c.eventHandlers {
		if eventType == msg.Event {
			go handler(msg)
			handled = true
		}
	}
	c.mu.RUnlock()

	return handled
}

// scheduleReconnect schedules a reconnection attempt.
func (c *Client) scheduleReconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.stopChan:
		return
	default:
	}

	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
	}

	c.reconnectTimer = time.AfterFunc(5*time.Second, func() {
		select {
		case <-c.stopChan:
			return
		default:
			if c.verbose {
				log.Printf("[realtime] Attempting to reconnect...")
			}

			if err := c.Connect(); err != nil {
				log.Printf("[realtime] Reconnection failed: %v", err)
				c.scheduleReconnect()
			}
		}
	})
}
