package ws

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithReadLimit caps the size of a single inbound message in bytes.
func WithReadLimit(limit int64) Option {
	return func(s *Server) {
		if limit > 0 {
			s.readLimit = limit
		}
	}
}

// WithSendBuffer sets the per-connection outbound buffer size.
func WithSendBuffer(size int) Option {
	return func(s *Server) {
		if size > 0 {
			s.sendBuffer = size
		}
	}
}
