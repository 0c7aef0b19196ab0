package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"chalet-planner/internal/quantity"
	"chalet-planner/internal/shopping"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024 // 512KB
)

// feedMessage is the wire format shared by inbound events and outbound
// commands on the trip feed.
type feedMessage struct {
	Type     string                `json:"type"`
	TripID   string                `json:"tripId,omitempty"`
	Date     string                `json:"date,omitempty"`
	ItemID   string                `json:"itemId,omitempty"`
	Checked  bool                  `json:"checked,omitempty"`
	Quantity *float64              `json:"quantity,omitempty"`
	Unit     string                `json:"unit,omitempty"`
	Item     *shopping.SourceItem  `json:"item,omitempty"`
	Items    []shopping.SourceItem `json:"items,omitempty"`
}

// Feed is a websocket client for the shared trip backend. The backend
// pushes the full item collection on join and incremental events after
// that; Feed keeps the latest snapshot in memory and sends write commands
// over the same connection.
type Feed struct {
	url    string
	tripID string
	conn   *websocket.Conn

	mu    sync.RWMutex
	items []shopping.SourceItem
	ready chan struct{}
	once  sync.Once

	writeMu sync.Mutex
	done    chan struct{}
}

// NewFeed creates a disconnected feed client.
func NewFeed(url, tripID string) *Feed {
	return &Feed{
		url:    url,
		tripID: tripID,
		ready:  make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Connect dials the backend, joins the trip, and starts the read loop.
func (f *Feed) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("failed to dial trip feed %s: %w", f.url, err)
	}
	f.conn = conn

	if err := f.send(feedMessage{Type: "JOIN_TRIP", TripID: f.tripID}); err != nil {
		conn.Close()
		return fmt.Errorf("failed to join trip: %w", err)
	}

	go f.readPump()
	go f.pingLoop()
	return nil
}

// Close tears the connection down.
func (f *Feed) Close() error {
	close(f.done)
	if f.conn != nil {
		return f.conn.Close()
	}
	return nil
}

// readPump applies pushed events to the in-memory snapshot.
func (f *Feed) readPump() {
	f.conn.SetReadLimit(maxMessageSize)
	f.conn.SetReadDeadline(time.Now().Add(pongWait))
	f.conn.SetPongHandler(func(string) error {
		f.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := f.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg feedMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		f.apply(msg)
	}
}

func (f *Feed) apply(msg feedMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch msg.Type {
	case "SNAPSHOT":
		f.items = msg.Items
		f.once.Do(func() { close(f.ready) })
	case "ITEM_ADDED":
		if msg.Item != nil {
			f.items = append(f.items, *msg.Item)
		}
	case "ITEM_REMOVED":
		kept := f.items[:0]
		for _, item := range f.items {
			if item.ItemID != msg.ItemID || item.Date != msg.Date {
				kept = append(kept, item)
			}
		}
		f.items = kept
	case "ITEM_TOGGLED":
		for i := range f.items {
			if f.items[i].ItemID == msg.ItemID && f.items[i].Date == msg.Date {
				f.items[i].Checked = msg.Checked
			}
		}
	case "ITEM_QUANTITY":
		for i := range f.items {
			if f.items[i].ItemID == msg.ItemID && f.items[i].Date == msg.Date {
				f.items[i].Quantity = msg.Quantity
				f.items[i].Unit = quantity.Unit(msg.Unit)
			}
		}
	}
}

func (f *Feed) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			f.writeMu.Lock()
			f.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := f.conn.WriteMessage(websocket.PingMessage, nil)
			f.writeMu.Unlock()
			if err != nil {
				return
			}
		case <-f.done:
			return
		}
	}
}

func (f *Feed) send(msg feedMessage) error {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()
	f.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return f.conn.WriteJSON(msg)
}

// Snapshot returns a copy of the latest pushed item collection. It blocks
// until the backend has delivered the initial snapshot.
func (f *Feed) Snapshot(ctx context.Context) ([]shopping.SourceItem, error) {
	select {
	case <-f.ready:
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for trip snapshot: %w", ctx.Err())
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]shopping.SourceItem, len(f.items))
	copy(out, f.items)
	return out, nil
}

// AddItem sends an add command. The id is generated client-side so the
// caller gets the stored item back without waiting for the echo.
func (f *Feed) AddItem(ctx context.Context, item shopping.SourceItem) (shopping.SourceItem, error) {
	if item.ItemID == "" {
		item.ItemID = uuid.NewString()
	}
	if err := f.send(feedMessage{Type: "ADD_ITEM", TripID: f.tripID, Item: &item}); err != nil {
		return shopping.SourceItem{}, fmt.Errorf("failed to send add command: %w", err)
	}
	return item, nil
}

// RemoveItem sends a remove command for one item.
func (f *Feed) RemoveItem(ctx context.Context, date, itemID string) error {
	if err := f.send(feedMessage{Type: "REMOVE_ITEM", TripID: f.tripID, Date: date, ItemID: itemID}); err != nil {
		return fmt.Errorf("failed to send remove command: %w", err)
	}
	return nil
}

// ToggleItem sends a toggle command for one item.
func (f *Feed) ToggleItem(ctx context.Context, date, itemID string, checked bool) error {
	if err := f.send(feedMessage{Type: "TOGGLE_ITEM", TripID: f.tripID, Date: date, ItemID: itemID, Checked: checked}); err != nil {
		return fmt.Errorf("failed to send toggle command: %w", err)
	}
	return nil
}

// SetQuantity sends a quantity update for one item.
func (f *Feed) SetQuantity(ctx context.Context, date, itemID string, qty *float64, unit quantity.Unit) error {
	msg := feedMessage{Type: "SET_QUANTITY", TripID: f.tripID, Date: date, ItemID: itemID, Quantity: qty, Unit: string(unit)}
	if err := f.send(msg); err != nil {
		return fmt.Errorf("failed to send quantity command: %w", err)
	}
	return nil
}
