package port_reader

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLine hands out queued chunks, one per Read, then reports a timeout.
type fakeLine struct {
	chunks  [][]byte
	written bytes.Buffer
	readErr error
	closed  bool
}

func (f *fakeLine) Read(p []byte) (int, error) {
	if len(f.chunks) == 0 {
		if f.readErr != nil {
			return 0, f.readErr
		}
		return 0, io.EOF
	}
	n := copy(p, f.chunks[0])
	if n < len(f.chunks[0]) {
		f.chunks[0] = f.chunks[0][n:]
	} else {
		f.chunks = f.chunks[1:]
	}
	return n, nil
}

func (f *fakeLine) Write(p []byte) (int, error) { return f.written.Write(p) }

func (f *fakeLine) Close() error {
	f.closed = true
	return nil
}

func TestHandshake(t *testing.T) {
	line := &fakeLine{chunks: [][]byte{[]byte("OK\r\n")}}
	p := NewSensorPort(line, 43)

	reply, err := p.Handshake("AT+AutoSend=60", 100)
	require.NoError(t, err)
	assert.Equal(t, "OK\r\n", string(reply))
	assert.Equal(t, "AT+AutoSend=60", line.written.String())
}

func TestHandshakeNoReply(t *testing.T) {
	p := NewSensorPort(&fakeLine{}, 43)
	_, err := p.Handshake("AT+AutoSend=60", 100)
	assert.ErrorIs(t, err, ErrNoResponse)
}

func TestReadFrameAssemblesChunks(t *testing.T) {
	frame := []byte("$+21.3055.403.2270012.51013.200000.012.1!\r\n")
	line := &fakeLine{chunks: [][]byte{frame[:10], frame[10:30], frame[30:], []byte("$next")}}
	p := NewSensorPort(line, len(frame))

	got, err := p.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, frame, got)

	got, err = p.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, "$next", string(got))

	got, err = p.ReadFrame()
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReadFrameError(t *testing.T) {
	boom := errors.New("device unplugged")
	p := NewSensorPort(&fakeLine{readErr: boom}, 43)
	_, err := p.ReadFrame()
	assert.ErrorIs(t, err, boom)
}

func TestClose(t *testing.T) {
	line := &fakeLine{}
	p := NewSensorPort(line, 43)
	require.NoError(t, p.Close())
	assert.True(t, line.closed)

	_, err := p.ReadFrame()
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.NoError(t, p.Close())
}

func TestInterCharacterTimeout(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want uint
	}{
		{0, 100},
		{50 * time.Millisecond, 100},
		{2 * time.Second, 2000},
		{MaxReadTimeout, 25500},
		{30 * time.Second, 25500},
		{time.Hour, 25500},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, interCharacterTimeout(tt.in), tt.in.String())
	}
}
