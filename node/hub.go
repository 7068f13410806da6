package node

import "fmt"

// InMemoryHub is a loopback stand-in for the external TCP transport: it
// gives every simulated peer an inbox channel and fans outbound sends and
// broadcasts out to the right inboxes, prepending the "<src>:" hop prefix
// the wire format requires. Sends never block: a message for a full inbox
// is dropped. It exists for tests and the demo entrypoint; it is not a
// production transport.
type InMemoryHub struct {
	inboxes []chan []byte
}

// NewInMemoryHub builds a hub wiring n peers, each inbox buffered to
// bufSize entries.
func NewInMemoryHub(n, bufSize int) *InMemoryHub {
	h := &InMemoryHub{inboxes: make([]chan []byte, n)}
	for i := range h.inboxes {
		h.inboxes[i] = make(chan []byte, bufSize)
	}
	return h
}

// Inbox exposes peer id's inbound channel for a dispatch loop to range
// over.
func (h *InMemoryHub) Inbox(id int) <-chan []byte {
	return h.inboxes[id]
}

// Transport returns the Transport a peer with the given id should be
// constructed with.
func (h *InMemoryHub) Transport(self int) Transport {
	return &hubTransport{self: self, hub: h}
}

type hubTransport struct {
	self int
	hub  *InMemoryHub
}

func (t *hubTransport) Send(payload []byte, dest int) {
	select {
	case t.hub.inboxes[dest] <- framed(t.self, payload):
	default:
	}
}

func (t *hubTransport) Broadcast(payload []byte) {
	framedPayload := framed(t.self, payload)
	for i, ch := range t.hub.inboxes {
		if i == t.self {
			continue
		}
		select {
		case ch <- framedPayload:
		default:
		}
	}
}

func framed(src int, payload []byte) []byte {
	return []byte(fmt.Sprintf("%d:%s", src, payload))
}
