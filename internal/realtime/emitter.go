package realtime

import (
	"context"
	"sync"

	"ms-karaoke/internal/models"
)

// Emitter fans row-change events out to every client subscribed to an
// event instance: the coordinator console, the TV display and the voting
// phones all hold one subscription each.
type Emitter struct {
	clients     map[string][]chan models.ChangeEvent
	clientMutex sync.RWMutex
}

func NewEmitter() *Emitter {
	return &Emitter{
		clients: make(map[string][]chan models.ChangeEvent),
	}
}

// Subscribe adds a client to an instance's change feed. The returned
// channel is closed and removed when ctx is cancelled.
func (e *Emitter) Subscribe(ctx context.Context, instanceID string) chan models.ChangeEvent {
	clientChan := make(chan models.ChangeEvent, 16)

	e.clientMutex.Lock()
	e.clients[instanceID] = append(e.clients[instanceID], clientChan)
	e.clientMutex.Unlock()

	go func() {
		<-ctx.Done()
		e.removeClient(instanceID, clientChan)
	}()

	return clientChan
}

// Publish broadcasts a change event to all clients of its instance.
func (e *Emitter) Publish(event models.ChangeEvent) {
	e.clientMutex.RLock()
	clients := e.clients[event.InstanceID]
	e.clientMutex.RUnlock()

	for _, clientChan := range clients {
		// Non-blocking send: a stalled client must not hold up the event.
		select {
		case clientChan <- event:
		default:
		}
	}
}

func (e *Emitter) removeClient(instanceID string, clientChan chan models.ChangeEvent) {
	e.clientMutex.Lock()
	defer e.clientMutex.Unlock()

	clients := e.clients[instanceID]
	for i, ch := range clients {
		if ch == clientChan {
			e.clients[instanceID] = append(clients[:i], clients[i+1:]...)
			close(clientChan)
			break
		}
	}

	if len(e.clients[instanceID]) == 0 {
		delete(e.clients, instanceID)
	}
}

// ClientCount returns the number of clients currently subscribed to an
// instance.
func (e *Emitter) ClientCount(instanceID string) int {
	e.clientMutex.RLock()
	defer e.clientMutex.RUnlock()
	return len(e.clients[instanceID])
}
