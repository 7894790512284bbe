package coordinator

import (
	"encoding/binary"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/reactant-dev/reactant/internal/domain"
	"github.com/reactant-dev/reactant/internal/infrastructure/kernel"
	"github.com/reactant-dev/reactant/internal/infrastructure/storage"
)

// The evaluator side of the wire protocol, reimplemented from the contract:
// 4-byte big-endian length followed by a msgpack body.
func readWireFrame(t *testing.T, conn net.Conn, v any) {
	t.Helper()
	var header [4]byte
	_, err := io.ReadFull(conn, header[:])
	require.NoError(t, err)
	payload := make([]byte, binary.BigEndian.Uint32(header[:]))
	_, err = io.ReadFull(conn, payload)
	require.NoError(t, err)
	require.NoError(t, msgpack.Unmarshal(payload, v))
}

func writeWireFrame(t *testing.T, conn net.Conn, v any) {
	t.Helper()
	payload, err := msgpack.Marshal(v)
	require.NoError(t, err)
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	_, err = conn.Write(header[:])
	require.NoError(t, err)
	_, err = conn.Write(payload)
	require.NoError(t, err)
}

type recordingSink struct {
	replies chan *kernel.Reply
}

func (s *recordingSink) Deliver(reply *kernel.Reply) {
	s.replies <- reply
}

// TestRunCellEndToEnd drives the whole loop: run request -> bridge -> wire ->
// fake evaluator -> streamed replies -> locals folded into the cell and the
// session sink notified.
func TestRunCellEndToEnd(t *testing.T) {
	reqListener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer reqListener.Close()
	streamListener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer streamListener.Close()

	requests := make(chan *kernel.Request, 1)
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

		var req kernel.Request
		readWireFrame(t, reqConn, &req)
		requests <- &req

		// One locals delta per executed cell, then the terminator.
		for _, cell := range req.ExecutionCells {
			locals := map[string]domain.LocalValue{}
			for _, name := range cell.Bindings {
				locals[name] = domain.LocalValue{Value: "42", Type: "int"}
			}
			writeWireFrame(t, streamConn, &kernel.Reply{
				NotebookID: req.NotebookID,
				CellID:     cell.ID,
				Locals:     locals,
			})
		}
		writeWireFrame(t, streamConn, &kernel.Reply{
			NotebookID: req.NotebookID,
			CellID:     req.CellID,
			Ended:      true,
		})
	}()

	bridge := kernel.NewBridge(reqListener.Addr().String(), streamListener.Addr().String())
	defer bridge.Close()
	c := New(bridge, storage.NewMemoryStore(), slog.Default())
	go bridge.Run()

	nb, err := c.CreateNotebook("e2e")
	require.NoError(t, err)
	a, err := c.AddCell(nb.Notebook.ID, domain.CellKindReactiveCode, "a = 1")
	require.NoError(t, err)
	b, err := c.AddCell(nb.Notebook.ID, domain.CellKindReactiveCode, "b = a + 1")
	require.NoError(t, err)

	sink := &recordingSink{replies: make(chan *kernel.Reply, 8)}
	bridge.RegisterSink(nb.Notebook.ID, sink)

	require.NoError(t, c.RunCell(nb.Notebook.ID, a.ID, a.Source))

	var req *kernel.Request
	select {
	case req = <-requests:
	case <-time.After(5 * time.Second):
		t.Fatal("evaluator saw no request")
	}
	require.Len(t, req.ExecutionCells, 2)
	assert.Equal(t, a.ID, req.ExecutionCells[0].ID)
	assert.Equal(t, b.ID, req.ExecutionCells[1].ID)

	var ended bool
	for !ended {
		select {
		case reply := <-sink.replies:
			ended = reply.Ended
		case <-time.After(5 * time.Second):
			t.Fatal("sink saw no terminator")
		}
	}

	snapshot, err := c.Snapshot(nb.Notebook.ID)
	require.NoError(t, err)
	for _, cell := range snapshot.Cells {
		for name := range cell.Bindings {
			assert.Equal(t, "42", cell.Locals[name].Value,
				"cell %s local %s", cell.ID, name)
		}
	}
}
