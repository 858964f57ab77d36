package streamsim

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/planetforge/engine/internal/adapters/ws"
	"github.com/planetforge/engine/internal/domain/model"
	"github.com/planetforge/engine/pkg/logger"
)

// responseTimeout bounds the wait for a single server response.
const responseTimeout = 10 * time.Second

// client drives one simulated developer over a WebSocket connection.
type client struct {
	userID  string
	conn    *websocket.Conn
	verbose bool
	stats   *Stats
}

// dial opens the WebSocket connection, authenticating with the user id as
// token (the service's development identity mode).
func dial(ctx context.Context, baseURL, userID string) (*client, error) {
	wsURL := strings.Replace(baseURL, "http", "ws", 1) + "/ws?token=" + url.QueryEscape(userID)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", wsURL, err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return &client{userID: userID, conn: conn}, nil
}

func (c *client) close() {
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = c.conn.Close()
}

// send writes one protocol envelope.
func (c *client) send(msgType string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling %s payload: %w", msgType, err)
	}
	env := ws.Envelope{Type: msgType, Payload: raw}
	if err := c.conn.WriteJSON(env); err != nil {
		return fmt.Errorf("writing %s: %w", msgType, err)
	}
	return nil
}

// recv reads envelopes until one of the wanted types arrives, counting
// pushes along the way.
func (c *client) recv(ctx context.Context, wanted ...string) (ws.Envelope, error) {
	deadline := time.Now().Add(responseTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.conn.SetReadDeadline(deadline)

	for {
		var env ws.Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			return ws.Envelope{}, fmt.Errorf("reading response: %w", err)
		}

		switch env.Type {
		case ws.TypePlanetEvolution:
			c.stats.add(func(s *Stats) { s.StageChanges++ })
			if c.verbose {
				logger.Get().Info(ctx, "planet evolved", logger.String("user_id", c.userID))
			}
			continue
		case ws.TypeAchievementUnlocked:
			c.stats.add(func(s *Stats) { s.Achievements++ })
			continue
		case ws.TypeError:
			var p ws.ErrorPayload
			_ = json.Unmarshal(env.Payload, &p)
			return env, fmt.Errorf("server error %s: %s", p.Code, p.Message)
		}

		for _, w := range wanted {
			if env.Type == w {
				return env, nil
			}
		}
		// Unsolicited message of another type; keep reading.
	}
}

// run performs one full session: start, stream, end.
func (c *client) run(ctx context.Context, cfg *Config, persona int) error {
	if err := c.send(ws.TypeStartSession, ws.StartSessionPayload{
		Language:    languages[persona%len(languages)],
		ProjectName: "simulated-project",
	}); err != nil {
		return err
	}
	env, err := c.recv(ctx, ws.TypeSessionStarted)
	if err != nil {
		return err
	}
	var started ws.SessionStartedPayload
	if err := json.Unmarshal(env.Payload, &started); err != nil {
		return fmt.Errorf("decoding session_started: %w", err)
	}
	c.stats.add(func(s *Stats) { s.SessionsStarted++ })

	for i := 0; i < cfg.SamplesPerUser; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.send(ws.TypeCodeStream, ws.CodeStreamPayload{
			SessionID: started.SessionID,
			Metrics:   generateSample(persona),
		}); err != nil {
			return err
		}
		c.stats.add(func(s *Stats) { s.SamplesSent++ })

		if _, err := c.recv(ctx, ws.TypeAnalysisUpdate); err != nil {
			return err
		}
		c.stats.add(func(s *Stats) { s.UpdatesReceived++ })

		if cfg.SampleInterval > 0 {
			time.Sleep(cfg.SampleInterval)
		}
	}

	if err := c.send(ws.TypeEndSession, ws.EndSessionPayload{SessionID: started.SessionID}); err != nil {
		return err
	}
	if _, err := c.recv(ctx, ws.TypeSessionEnded); err != nil {
		return err
	}
	return nil
}

// planetOf fetches the user's planet over REST for verification.
func planetOf(ctx context.Context, cfg *Config, userID string) (*model.Planet, error) {
	return getJSON[*model.Planet](ctx, cfg, "/api/v1/planet?user_id="+url.QueryEscape(userID))
}
