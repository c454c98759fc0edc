package vmc

import (
	"sync"

	"github.com/google/uuid"

	"github.com/kilianp07/vmc/core/protocol"
	"github.com/kilianp07/vmc/core/registry"
)

// replyObserver is a one-shot observer standing in for an HTTP requester.
// It keeps the first message addressed to it and is never registered, so it
// receives no broadcasts.
type replyObserver struct {
	id     string
	mu     sync.Mutex
	reply  protocol.Message
	closed bool
}

var _ registry.Observer = (*replyObserver)(nil)

func newReplyObserver() *replyObserver {
	return &replyObserver{id: "http-" + uuid.NewString()}
}

func (o *replyObserver) ID() string { return o.id }

func (o *replyObserver) Send(msg protocol.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return registry.ErrObserverClosed
	}
	if o.reply == nil {
		o.reply = msg
	}
	return nil
}

func (o *replyObserver) Close() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
}

func (o *replyObserver) Reply() protocol.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.reply
}
