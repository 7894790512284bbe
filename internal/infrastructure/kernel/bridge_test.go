package kernel

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reactant-dev/reactant/internal/domain"
)

func TestFrameRoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	sent := &Request{
		NotebookID: "nb",
		CellID:     "cell",
		ExecutionCells: []ExecutionCell{{
			ID:         "cell",
			Statements: []Statement{{Kind: "execute", Content: "a = 1"}},
			Bindings:   []string{"a"},
		}},
		LocalsOfDeps: []map[string]domain.LocalValue{{}},
	}

	go func() {
		_ = writeFrame(client, sent)
	}()

	var got Request
	require.NoError(t, readFrame(server, &got))
	assert.Equal(t, sent.NotebookID, got.NotebookID)
	assert.Equal(t, sent.CellID, got.CellID)
	require.Len(t, got.ExecutionCells, 1)
	assert.Equal(t, "a = 1", got.ExecutionCells[0].Statements[0].Content)
}

type captureSink struct {
	replies chan *Reply
}

func (s *captureSink) Deliver(reply *Reply) {
	s.replies <- reply
}

// fakeEvaluator accepts the bridge's two connections, decodes one request and
// streams canned replies back.
func fakeEvaluator(t *testing.T, replies []*Reply) (requestAddr, streamAddr string) {
	t.Helper()

	reqListener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	streamListener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() {
		reqListener.Close()
		streamListener.Close()
	})

	go func() {
		reqConn, err := reqListener.Accept()
		if err != nil {
			return
		}
		streamConn, err := streamListener.Accept()
		if err != nil {
			return
		}
		defer reqConn.Close()
		defer streamConn.Close()

		var req Request
		if err := readFrame(reqConn, &req); err != nil {
			return
		}
		for _, reply := range replies {
			if err := writeFrame(streamConn, reply); err != nil {
				return
			}
		}
	}()

	return reqListener.Addr().String(), streamListener.Addr().String()
}

func TestBridge_StreamsRepliesToSink(t *testing.T) {
	replies := []*Reply{
		{NotebookID: "nb", CellID: "c1", Locals: map[string]domain.LocalValue{"a": {Value: "1", Type: "int"}}},
		{NotebookID: "nb", CellID: "c1", Ended: true},
	}
	requestAddr, streamAddr := fakeEvaluator(t, replies)

	bridge := NewBridge(requestAddr, streamAddr)
	defer bridge.Close()

	var observed []*Reply
	bridge.SetReplyObserver(func(reply *Reply) {
		observed = append(observed, reply)
	})

	sink := &captureSink{replies: make(chan *Reply, 4)}
	bridge.RegisterSink("nb", sink)
	go bridge.Run()

	require.NoError(t, bridge.Enqueue(&Request{NotebookID: "nb", CellID: "c1"}))

	first := waitReply(t, sink)
	assert.Equal(t, "1", first.Locals["a"].Value)
	assert.False(t, first.Ended)

	second := waitReply(t, sink)
	assert.True(t, second.Ended)

	assert.Len(t, observed, 2)
}

func TestBridge_TransportFailureSynthesizesErrorReply(t *testing.T) {
	// Nothing listens on these addresses; dialing fails immediately.
	bridge := NewBridge("127.0.0.1:1", "127.0.0.1:1")
	defer bridge.Close()

	sink := &captureSink{replies: make(chan *Reply, 1)}
	bridge.RegisterSink("nb", sink)
	go bridge.Run()

	require.NoError(t, bridge.Enqueue(&Request{NotebookID: "nb", CellID: "c1"}))

	reply := waitReply(t, sink)
	assert.True(t, reply.Ended)
	assert.NotEmpty(t, reply.Error)
	assert.Equal(t, "c1", reply.CellID)
}

func TestBridge_EnqueueAfterClose(t *testing.T) {
	bridge := NewBridge("127.0.0.1:1", "127.0.0.1:1")
	require.NoError(t, bridge.Close())
	assert.Error(t, bridge.Enqueue(&Request{NotebookID: "nb"}))
}

func waitReply(t *testing.T, sink *captureSink) *Reply {
	t.Helper()
	select {
	case reply := <-sink.replies:
		return reply
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reply")
		return nil
	}
}
