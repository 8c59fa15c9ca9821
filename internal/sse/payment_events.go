package sse

import (
	"context"
	"sync"

	"ms-raffle/internal/models"
)

// PaymentEventEmitter manages SSE connections and event broadcasting for
// payment settlements. Checkout pages subscribe per order to flip from the QR
// code to the allocated numbers the moment the PIX lands; admin dashboards
// subscribe per raffle.
type PaymentEventEmitter struct {
	// key: orderID
	orderClients     map[string][]chan models.PaymentEvent
	orderClientMutex sync.RWMutex

	// key: raffleID
	raffleClients     map[string][]chan models.PaymentEvent
	raffleClientMutex sync.RWMutex
}

func NewPaymentEventEmitter() *PaymentEventEmitter {
	return &PaymentEventEmitter{
		orderClients:  make(map[string][]chan models.PaymentEvent),
		raffleClients: make(map[string][]chan models.PaymentEvent),
	}
}

// SubscribeToOrder adds a client waiting on a single order's settlement.
func (e *PaymentEventEmitter) SubscribeToOrder(ctx context.Context, orderID string) chan models.PaymentEvent {
	clientChan := make(chan models.PaymentEvent, 10)

	e.orderClientMutex.Lock()
	e.orderClients[orderID] = append(e.orderClients[orderID], clientChan)
	e.orderClientMutex.Unlock()

	// Remove client when context is done
	go func() {
		<-ctx.Done()
		e.removeOrderClient(orderID, clientChan)
	}()

	return clientChan
}

// SubscribeToRaffle adds a client watching every settlement in a raffle.
func (e *PaymentEventEmitter) SubscribeToRaffle(ctx context.Context, raffleID string) chan models.PaymentEvent {
	clientChan := make(chan models.PaymentEvent, 10)

	e.raffleClientMutex.Lock()
	e.raffleClients[raffleID] = append(e.raffleClients[raffleID], clientChan)
	e.raffleClientMutex.Unlock()

	go func() {
		<-ctx.Done()
		e.removeRaffleClient(raffleID, clientChan)
	}()

	return clientChan
}

// EmitPaymentEvent broadcasts a settlement to all subscribed clients.
func (e *PaymentEventEmitter) EmitPaymentEvent(event models.PaymentEvent) {
	e.orderClientMutex.RLock()
	clients := e.orderClients[event.OrderID]
	e.orderClientMutex.RUnlock()

	for _, clientChan := range clients {
		// Non-blocking send so a slow client never stalls settlement.
		select {
		case clientChan <- event:
		default:
		}
	}

	e.raffleClientMutex.RLock()
	raffleClients := e.raffleClients[event.RaffleID]
	e.raffleClientMutex.RUnlock()

	for _, clientChan := range raffleClients {
		select {
		case clientChan <- event:
		default:
		}
	}
}

func (e *PaymentEventEmitter) removeOrderClient(orderID string, clientChan chan models.PaymentEvent) {
	e.orderClientMutex.Lock()
	defer e.orderClientMutex.Unlock()

	clients := e.orderClients[orderID]
	for i, ch := range clients {
		if ch == clientChan {
			e.orderClients[orderID] = append(clients[:i], clients[i+1:]...)
			close(clientChan)
			break
		}
	}

	if len(e.orderClients[orderID]) == 0 {
		delete(e.orderClients, orderID)
	}
}

func (e *PaymentEventEmitter) removeRaffleClient(raffleID string, clientChan chan models.PaymentEvent) {
	e.raffleClientMutex.Lock()
	defer e.raffleClientMutex.Unlock()

	clients := e.raffleClients[raffleID]
	for i, ch := range clients {
		if ch == clientChan {
			e.raffleClients[raffleID] = append(clients[:i], clients[i+1:]...)
			close(clientChan)
			break
		}
	}

	if len(e.raffleClients[raffleID]) == 0 {
		delete(e.raffleClients, raffleID)
	}
}

// GetOrderClientCount returns the number of clients watching an order.
func (e *PaymentEventEmitter) GetOrderClientCount(orderID string) int {
	e.orderClientMutex.RLock()
	defer e.orderClientMutex.RUnlock()
	return len(e.orderClients[orderID])
}

// GetRaffleClientCount returns the number of clients watching a raffle.
func (e *PaymentEventEmitter) GetRaffleClientCount(raffleID string) int {
	e.raffleClientMutex.RLock()
	defer e.raffleClientMutex.RUnlock()
	return len(e.raffleClients[raffleID])
}
