// Package notify pushes export completion messages to registered UDP
// listeners. Render farms and desktop pollers register once and get a
// datagram when an artifact lands, instead of polling the HTTP API.
package notify

import (
	"encoding/json"
	"errors"
	"log"
	"net"
	"sync"
)

const (
	RegisterMessageType   = "register"
	ExportDoneMessageType = "export_done"
)

type RegisterMessage struct {
	Type     string `json:"type"`
	ClientID string `json:"client_id"`
}

type ExportDoneMessage struct {
	Type       string `json:"type"`
	StoryID    string `json:"story_id"`
	Path       string `json:"path"`
	DurationMs int64  `json:"duration_ms"`
}

type Client struct {
	ClientID string
	Addr     *net.UDPAddr
}

type Registry struct {
	mu      sync.RWMutex
	clients map[string]Client
}

func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]Client)}
}

func (r *Registry) Register(clientID string, addr *net.UDPAddr) {
	if clientID == "" || addr == nil {
		return
	}
	r.mu.Lock()
	r.clients[clientID] = Client{ClientID: clientID, Addr: addr}
	r.mu.Unlock()
}

func (r *Registry) Remove(clientID string) {
	r.mu.Lock()
	delete(r.clients, clientID)
	r.mu.Unlock()
}

func (r *Registry) Snapshot() []Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	clients := make([]Client, 0, len(r.clients))
	for _, client := range r.clients {
		clients = append(clients, client)
	}
	return clients
}

type Server struct {
	addr     string
	registry *Registry
	logger   *log.Logger
	conn     *net.UDPConn
}

func NewServer(addr string, registry *Registry, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{addr: addr, registry: registry, logger: logger}
}

// Close stops the receive loop. Safe before Run.
func (s *Server) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

func (s *Server) Run() error {
	udpAddr, err := net.ResolveUDPAddr("udp", s.addr)
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return err
	}
	s.conn = conn
	defer conn.Close()

	s.logger.Printf("UDP notify server listening on %s", s.addr)

	buffer := make([]byte, 2048)
	for {
		n, addr, err := conn.ReadFromUDP(buffer)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		msg, err := parseRegisterMessage(buffer[:n])
		if err != nil {
			s.logger.Printf("invalid UDP message from %s: %v", addr, err)
			continue
		}
		if msg.Type != RegisterMessageType {
			continue
		}
		s.registry.Register(msg.ClientID, addr)
		s.logger.Printf("registered UDP client %s (%s)", msg.ClientID, addr)
	}
}

// BroadcastExportDone tells every registered client that storyID's
// artifact is ready at path.
func (s *Server) BroadcastExportDone(storyID, path string, durationMs int64) {
	if s.conn == nil {
		s.logger.Printf("UDP notify server not running")
		return
	}
	payload, err := json.Marshal(ExportDoneMessage{
		Type:       ExportDoneMessageType,
		StoryID:    storyID,
		Path:       path,
		DurationMs: durationMs,
	})
	if err != nil {
		s.logger.Printf("failed to marshal broadcast: %v", err)
		return
	}

	clients := s.registry.Snapshot()
	for _, client := range clients {
		s.sendWithRetry(client, payload)
	}
}

func (s *Server) sendWithRetry(client Client, payload []byte) {
	if err := s.sendOnce(client, payload); err == nil {
		return
	}
	if err := s.sendOnce(client, payload); err != nil {
		s.logger.Printf("failed to notify client %s at %s: %v", client.ClientID, client.Addr, err)
		s.registry.Remove(client.ClientID)
	}
}

func (s *Server) sendOnce(client Client, payload []byte) error {
	if client.Addr == nil {
		return errors.New("missing client address")
	}
	_, err := s.conn.WriteToUDP(payload, client.Addr)
	return err
}

func parseRegisterMessage(data []byte) (RegisterMessage, error) {
	var msg RegisterMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, err
	}
	if msg.ClientID == "" || msg.Type == "" {
		return msg, errors.New("missing required fields")
	}
	return msg, nil
}
