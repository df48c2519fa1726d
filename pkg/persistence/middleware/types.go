package middleware

import "github.com/venuekit/sessiontrack/pkg/ports"

// Middleware allows wrapping a SessionRepository to add behavior.
type Middleware func(ports.SessionRepository) ports.SessionRepository
