package websocket

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"facedetect/internal/config"
	"facedetect/internal/dto"
	"facedetect/internal/logger"

	"github.com/gorilla/websocket"
	"gocv.io/x/gocv"
)

const writeWait = 2 * time.Second

// HubService fans annotated frames out to connected preview viewers.
// Only Run touches the connections; the capture loop only reads atomics and
// queues messages, so a slow viewer never holds it up.
type HubService struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	done       chan struct{}
	mutex      sync.Mutex
	logger     *logger.Logger
	camera     string
	count      atomic.Int64
	dropped    atomic.Int64
}

// NewHubService creates a hub for the configured camera.
func NewHubService(config *config.Config, logger *logger.Logger) *HubService {
	return &HubService{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, 1),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		logger:     logger,
		camera:     fmt.Sprintf("device-%d", config.DeviceIndex),
	}
}

// Run serves registrations and broadcasts until ctx is done, then disconnects every viewer.
func (h *HubService) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for _, client := range h.snapshot() {
				h.remove(client)
			}
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mutex.Unlock()
			h.count.Store(int64(total))
			h.logger.Info("Viewer connected. Total: %d", total)

		case client := <-h.unregister:
			total := h.remove(client)
			h.logger.Info("Viewer disconnected. Total: %d", total)

		case message := <-h.broadcast:
			// written without the lock held; Run is the only writer
			for _, client := range h.snapshot() {
				client.SetWriteDeadline(time.Now().Add(writeWait))
				if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
					h.logger.Warning("Error sending frame to viewer: %v", err)
					h.remove(client)
				}
			}
		}
	}
}

func (h *HubService) snapshot() []*websocket.Conn {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	clients := make([]*websocket.Conn, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	return clients
}

// remove closes and forgets client. It returns the remaining viewer count.
func (h *HubService) remove(client *websocket.Conn) int {
	h.mutex.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		client.Close()
	}
	total := len(h.clients)
	h.mutex.Unlock()
	h.count.Store(int64(total))
	return total
}

// Register adds a viewer. It returns false once the hub has stopped.
func (h *HubService) Register(client *websocket.Conn) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a viewer and closes its connection.
func (h *HubService) Unregister(client *websocket.Conn) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast queues message for every viewer. A message is dropped when the
// previous one has not been sent yet.
func (h *HubService) Broadcast(message []byte) bool {
	select {
	case h.broadcast <- message:
		return true
	default:
		h.dropped.Add(1)
		return false
	}
}

// ClientCount returns the number of connected viewers.
func (h *HubService) ClientCount() int {
	return int(h.count.Load())
}

// Dropped returns how many frames were discarded because the hub was busy.
func (h *HubService) Dropped() int64 {
	return h.dropped.Load()
}

// Observe sends the annotated frame to viewers. Nothing is encoded while nobody watches.
func (h *HubService) Observe(frame gocv.Mat, report dto.FrameReport) error {
	if h.ClientCount() == 0 {
		return nil
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, frame)
	if err != nil {
		return fmt.Errorf("failed to encode preview frame: %w", err)
	}
	defer buf.Close()

	msg, err := json.Marshal(dto.PreviewMessage{
		Camera:    h.camera,
		Seq:       report.Seq,
		Faces:     report.Faces,
		Regions:   report.Regions,
		ElapsedMs: report.ElapsedMs,
		Image:     base64.StdEncoding.EncodeToString(buf.GetBytes()),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal preview message: %w", err)
	}

	h.Broadcast(msg)
	return nil
}
