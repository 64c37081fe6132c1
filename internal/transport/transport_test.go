package transport_test

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Raikerian/go-voice-mesh/internal/transport"
)

type recorder struct {
	mu         sync.Mutex
	states     []transport.State
	received   [][]byte
	candidates []string
	done       int
}

func (r *recorder) OnStateChanged(s transport.State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *recorder) OnCandidate(c string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.candidates = append(r.candidates, c)
}

func (r *recorder) OnGatheringDone() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.done++
}

func (r *recorder) OnReceive(data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.received = append(r.received, data)
}

func TestPipeDelivery(t *testing.T) {
	a, b := transport.Pipe()
	ra, rb := &recorder{}, &recorder{}
	a.Attach(ra)
	b.Attach(rb)

	assert.ErrorIs(t, a.Send([]byte("early")), transport.ErrNotConnected)

	a.Up()
	assert.Equal(t, []transport.State{transport.StateConnected}, ra.states)
	assert.Equal(t, []transport.State{transport.StateConnected}, rb.states)

	msg := []byte("hello")
	require.NoError(t, a.Send(msg))
	msg[0] = 'j'
	assert.Equal(t, [][]byte{[]byte("hello")}, rb.received)
	assert.Empty(t, ra.received)

	b.Down()
	assert.Equal(t, transport.StateDisconnected, ra.states[1])
	assert.ErrorIs(t, b.Send(msg), transport.ErrNotConnected)
}

func TestPipeFilter(t *testing.T) {
	a, b := transport.Pipe()
	rb := &recorder{}
	b.Attach(rb)
	a.Up()

	a.SetFilter(func(data []byte) bool { return data[0] != 'x' })
	require.NoError(t, a.Send([]byte("xdrop")))
	require.NoError(t, a.Send([]byte("keep")))
	assert.Equal(t, [][]byte{[]byte("keep")}, rb.received)
}

func TestPipeClose(t *testing.T) {
	a, b := transport.Pipe()
	rb := &recorder{}
	b.Attach(rb)
	a.Up()

	require.NoError(t, b.Close())
	require.NoError(t, a.Send([]byte("lost")))
	assert.Empty(t, rb.received)
	assert.ErrorIs(t, b.Send([]byte("x")), transport.ErrClosed)

	a.Down()
	assert.Equal(t, []transport.State{transport.StateConnected}, rb.states)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "connected", transport.StateConnected.String())
	assert.Equal(t, "failed", transport.StateFailed.String())
	assert.Equal(t, "state(9)", transport.State(9).String())
}

func TestICERejectsInvalidSTUNServer(t *testing.T) {
	_, err := transport.NewICE(transport.ICEConfig{STUNServers: []string{"http://example.com"}}, &recorder{}, zap.NewNop())
	assert.Error(t, err)
}

func TestICEDescription(t *testing.T) {
	tr, err := transport.NewICE(transport.ICEConfig{}, &recorder{}, zap.NewNop())
	require.NoError(t, err)
	defer tr.Close()

	desc, err := tr.LocalDescription()
	require.NoError(t, err)
	ufrag, pwd, ok := strings.Cut(desc, ":")
	require.True(t, ok)
	assert.NotEmpty(t, ufrag)
	assert.NotEmpty(t, pwd)

	assert.ErrorIs(t, tr.SetRemoteDescription("nocolon"), transport.ErrInvalidDescription)
	assert.ErrorIs(t, tr.Send([]byte("x")), transport.ErrNotConnected)

	require.NoError(t, tr.Close())
	assert.ErrorIs(t, tr.Send([]byte("x")), transport.ErrClosed)
	assert.NoError(t, tr.Close())
}
