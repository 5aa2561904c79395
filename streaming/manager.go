package streaming

import "context"

// MessageStreamManager defers the HTTP request of a streaming call until
// Start, so a call site can construct the stream and decide scope separately:
//
//	mgr := client.Messages.NewStreaming(params)
//	stream, err := mgr.Start(ctx)
//	if err != nil {
//	    return err
//	}
//	defer mgr.Close()
//
// Close is safe to call whether or not Start succeeded.
type MessageStreamManager struct {
	open   func(ctx context.Context) (*MessageStream, error)
	stream *MessageStream
}

// NewMessageStreamManager wraps the deferred request. open is invoked once,
// on the first Start call.
func NewMessageStreamManager(open func(ctx context.Context) (*MessageStream, error)) *MessageStreamManager {
	return &MessageStreamManager{open: open}
}

// Start issues the request and returns the live stream. Subsequent calls
// return the same stream.
func (m *MessageStreamManager) Start(ctx context.Context) (*MessageStream, error) {
	if m.stream != nil {
		return m.stream, nil
	}
	stream, err := m.open(ctx)
	if err != nil {
		return nil, err
	}
	m.stream = stream
	return stream, nil
}

// Close releases the stream's transport resources. A manager that was never
// started has nothing to release.
func (m *MessageStreamManager) Close() error {
	if m.stream == nil {
		return nil
	}
	return m.stream.Close()
}
