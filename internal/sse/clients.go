// Package sse keeps track of browsers watching elements for committed changes.
package sse

import (
	"sync"

	"github.com/debemdeboas/site-builder/internal/model"
)

type Client struct {
	Msg       chan string
	ElementId model.ElementId
}

func NewClient(elementId model.ElementId) *Client {
	return &Client{
		Msg:       make(chan string, 1),
		ElementId: elementId,
	}
}

type SSEClients struct {
	clients map[*Client]bool
	mu      sync.RWMutex
}

func NewSSEClients() *SSEClients {
	return &SSEClients{
		clients: make(map[*Client]bool),
	}
}

func (s *SSEClients) Add(client *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[client] = true
}

func (s *SSEClients) Delete(client *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[client]; !ok {
		return
	}
	delete(s.clients, client)
	close(client.Msg)
}

func (s *SSEClients) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Broadcast sends msg to every client watching elementId. Clients that are
// not ready to receive miss the message.
func (s *SSEClients) Broadcast(elementId model.ElementId, msg string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for client := range s.clients {
		if client.ElementId == elementId {
			select {
			case client.Msg <- msg:
			default:
			}
		}
	}
}
