package httptransport

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chordring/chord"
	"github.com/chordring/chord/chorderr"
	"github.com/chordring/chord/logging"
)

// fakeHandler answers the transport.Handler contract with canned replies so
// the client/server pair can be exercised over a real loopback connection.
type fakeHandler struct {
	pong     chord.Message
	succs    []string
	inserted []chord.Record
	insertErr error
}

func (f *fakeHandler) HandleMessage(msg chord.Message) chord.Message { return f.pong }
func (f *fakeHandler) Successors() []string                          { return f.succs }
func (f *fakeHandler) Insert(records []chord.Record) error {
	f.inserted = append(f.inserted, records...)
	return f.insertErr
}

func newTestServer(h *fakeHandler) *httptest.Server {
	return httptest.NewServer(NewServer(h, logging.Nop{}))
}

func TestSendRoundTripsOverHTTP(t *testing.T) {
	h := &fakeHandler{pong: chord.Message{Kind: chord.KindPong, Ok: true, NodeID: "n:1"}}
	srv := newTestServer(h)
	defer srv.Close()

	c := New(logging.Nop{})
	reply, err := c.Send(srv.Listener.Addr().String(), chord.Message{Kind: chord.KindPing})
	require.NoError(t, err)
	assert.Equal(t, chord.KindPong, reply.Kind)
	assert.Equal(t, "n:1", reply.NodeID)
}

func TestGetSuccessorsRoundTripsOverHTTP(t *testing.T) {
	h := &fakeHandler{succs: []string{"a:1", "b:2"}}
	srv := newTestServer(h)
	defer srv.Close()

	c := New(logging.Nop{})
	succs, err := c.GetSuccessors(srv.Listener.Addr().String())
	require.NoError(t, err)
	assert.Equal(t, []string{"a:1", "b:2"}, succs)
}

func TestInsertRoundTripsOverHTTP(t *testing.T) {
	h := &fakeHandler{}
	srv := newTestServer(h)
	defer srv.Close()

	c := New(logging.Nop{})
	records := []chord.Record{{Key: "k", Value: "v"}}
	err := c.Insert(srv.Listener.Addr().String(), records)
	require.NoError(t, err)
	require.Len(t, h.inserted, 1)
	assert.Equal(t, "k", h.inserted[0].Key)
}

func TestPingReturnsFalseOnUnreachableEndpoint(t *testing.T) {
	c := New(logging.Nop{})
	assert.False(t, c.Ping("127.0.0.1:1"))
}

func TestPingReturnsTrueForLocallyRegisteredEndpoint(t *testing.T) {
	c := New(logging.Nop{})
	h := &fakeHandler{}
	c.Register("self:1", h)
	assert.True(t, c.Ping("self:1"))
}

func TestSendPrefersLocalRegistrationOverNetwork(t *testing.T) {
	c := New(logging.Nop{})
	h := &fakeHandler{pong: chord.Message{Kind: chord.KindPong}}
	c.Register("127.0.0.1:1", h)

	reply, err := c.Send("127.0.0.1:1", chord.Message{Kind: chord.KindPing})
	require.NoError(t, err)
	assert.Equal(t, chord.KindPong, reply.Kind)

	c.Deregister("127.0.0.1:1")
	// Now an actual network dial is attempted against a closed address and
	// must fail instead of silently resolving via the removed local entry.
	_, err = c.Send("127.0.0.1:1", chord.Message{Kind: chord.KindPing})
	assert.Error(t, err)
}

func TestSendRetriesAndWrapsTransportError(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(logging.Nop{})
	_, err := c.Send(srv.Listener.Addr().String(), chord.Message{Kind: chord.KindPing})
	require.Error(t, err)
	assert.True(t, errors.Is(err, chorderr.ErrTransport))
	assert.Equal(t, int32(maxAttempts), attempts.Load())
}

func TestInsertPropagatesHandlerError(t *testing.T) {
	h := &fakeHandler{insertErr: errors.New("store is full")}
	srv := newTestServer(h)
	defer srv.Close()

	c := New(logging.Nop{})
	err := c.Insert(srv.Listener.Addr().String(), []chord.Record{{Key: "k", Value: "v"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, chorderr.ErrTransport))
}
