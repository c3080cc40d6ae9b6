package hqplayer

import (
	"context"
	"errors"
	"sync"
	"time"
)

// requestTimeout bounds how long a command waits for its matching response
// line before the connection is considered desynced and torn down.
const requestTimeout = 3 * time.Second

var errTimeout = errors.New("hqplayer: request timed out waiting for response")
var errDesync = errors.New("hqplayer: response did not match the outstanding request")

// pendingSlot holds the one outstanding command a connection may have in
// flight at a time. HQPlayer's wire protocol has no request tag/sequence
// number: exactly one command is ever in flight per TCP connection, and the
// reply is recognized by its root XML element name. The pending table is
// therefore a single slot, not a map — which makes "match the right
// request" a type-level certainty rather than a lookup that could pick the
// wrong entry among several.
type pendingSlot struct {
	mu      sync.Mutex
	inUse   bool
	want    string // expected response root element name
	replyCh chan rawResponse
}

type rawResponse struct {
	element string
	body    []byte
}

func newPendingSlot() *pendingSlot {
	return &pendingSlot{}
}

// begin reserves the slot for a command expecting a response whose root
// element is wantElement. It returns an error if a request is already in
// flight (the caller serializes via its own send mutex, so this should
// never happen in practice; it exists as a correctness backstop).
func (p *pendingSlot) begin(wantElement string) (chan rawResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inUse {
		return nil, errors.New("hqplayer: a request is already in flight on this connection")
	}
	p.inUse = true
	p.want = wantElement
	p.replyCh = make(chan rawResponse, 1)
	return p.replyCh, nil
}

// deliver hands a received line to the outstanding request if its root
// element matches what was expected. There is nothing to "find" here: a
// connection has at most one waiter, and deliver checks its expected
// element name exactly rather than handing the line to whichever request
// happens to be first.
func (p *pendingSlot) deliver(r rawResponse) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.inUse {
		return
	}
	if r.element != p.want && r.element != "Error" {
		return
	}
	ch := p.replyCh
	p.inUse = false
	p.want = ""
	p.replyCh = nil
	select {
	case ch <- r:
	default:
	}
}

// cancel releases the slot without a response, used when the connection is
// torn down while a request is outstanding.
func (p *pendingSlot) cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inUse {
		close(p.replyCh)
	}
	p.inUse = false
	p.replyCh = nil
}

// wait blocks for a response or timeout/cancellation, whichever comes
// first, and always clears the slot on exit.
func (p *pendingSlot) wait(ctx context.Context, ch chan rawResponse) (rawResponse, error) {
	select {
	case r, ok := <-ch:
		if !ok {
			return rawResponse{}, errDesync
		}
		if r.element == "Error" {
			return r, nil
		}
		return r, nil
	case <-time.After(requestTimeout):
		p.mu.Lock()
		if p.replyCh == ch {
			p.inUse = false
			p.replyCh = nil
		}
		p.mu.Unlock()
		return rawResponse{}, errTimeout
	case <-ctx.Done():
		p.mu.Lock()
		if p.replyCh == ch {
			p.inUse = false
			p.replyCh = nil
		}
		p.mu.Unlock()
		return rawResponse{}, ctx.Err()
	}
}
