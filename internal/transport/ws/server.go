package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"brickforge.ai/internal/lattice/catalogs"
	"brickforge.ai/internal/protocol"
)

// Engine answers decoded requests.
type Engine interface {
	Handle(ctx context.Context, req protocol.Request) protocol.Response
	Catalogs() *catalogs.Catalogs
}

type Server struct {
	engine   Engine
	maxUnits int
	log      *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(e Engine, maxUnits int, logger *log.Logger) *Server {
	s := &Server{
		engine:   e,
		maxUnits: maxUnits,
		log:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
	return s
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.SetReadLimit(32 << 20)

		sessionID, maxInFlight := s.handshake(conn)
		if sessionID == "" {
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		out := make(chan []byte, maxInFlight)
		writerDone := make(chan struct{})

		// Writer goroutine.
		go func() {
			defer close(writerDone)
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop. At most maxInFlight requests run at once per session.
		sem := make(chan struct{}, maxInFlight)
		var inflight sync.WaitGroup
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
			}
			if ctx.Err() != nil {
				break
			}
			inflight.Add(1)
			go func() {
				defer inflight.Done()
				defer func() { <-sem }()
				resp := s.respond(ctx, msg)
				b, err := json.Marshal(resp)
				if err != nil {
					s.printf("session %s: marshal response: %v", sessionID, err)
					return
				}
				select {
				case out <- b:
				case <-ctx.Done():
				}
			}()
		}

		// Let running requests deliver before closing the writer.
		inflight.Wait()
		close(out)
		<-writerDone
	}
}

func (s *Server) respond(ctx context.Context, msg []byte) protocol.Response {
	req, err := protocol.DecodeRequest(msg)
	if err != nil {
		base, _ := protocol.DecodeBase(msg)
		return protocol.Response{
			Type:            protocol.TypeResult,
			ProtocolVersion: protocol.Version,
			RequestID:       base.RequestID,
			For:             base.Type,
			Code:            protocol.ErrBadRequest,
			Error:           err.Error(),
		}
	}
	return s.engine.Handle(ctx, req)
}

func (s *Server) handshake(conn *websocket.Conn) (sessionID string, maxInFlight int) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", 0
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return "", 0
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return "", 0
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return "", 0
	}

	maxInFlight = hello.MaxInFlight
	if maxInFlight <= 0 {
		maxInFlight = 4
	}
	if maxInFlight > 32 {
		maxInFlight = 32
	}

	cats := s.engine.Catalogs()
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       uuid.NewString(),
		Catalogs: protocol.CatalogDigests{
			Archetypes: protocol.DigestRef{Digest: cats.Archetypes.Digest, Count: len(cats.Archetypes.IDs)},
			Colors:     protocol.DigestRef{Digest: cats.Colors.Digest, Count: len(cats.Colors.Palette)},
		},
		MaxUnits:     s.maxUnits,
		RequestTypes: protocol.RequestTypes,
	}
	if err := writeJSON(conn, welcome); err != nil {
		return "", 0
	}
	if hello.ClientName != "" {
		s.printf("session %s: hello from %s", welcome.SessionID, hello.ClientName)
	}
	return welcome.SessionID, maxInFlight
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}

func (s *Server) printf(format string, args ...any) {
	if s.log != nil {
		s.log.Printf(format, args...)
	}
}
