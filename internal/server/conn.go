package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"casino-gateway/internal/events"
	"casino-gateway/internal/game"
	"casino-gateway/internal/metrics"
	"casino-gateway/internal/model"
	"casino-gateway/internal/session"
)

const (
	sendBuffer      = 64
	inboundBuffer   = 16
	writeWait       = 10 * time.Second
	defaultPongWait = 120 * time.Second
)

// ResponseConnected is pushed once when a connection is ready.
const ResponseConnected = "connected"

type conn struct {
	server  *Server
	ws      *websocket.Conn
	send    chan []byte
	done    chan struct{}
	once    sync.Once
	sess    *session.Session
	limiter *rate.Limiter
}

func (c *conn) serve(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	metrics.SessionOpened()
	defer metrics.SessionClosed()

	logger := log.With().Str("conn", c.sess.ID).Str("account", c.sess.PublicKey()).Logger()

	stream, err := c.server.streams.OpenAccount(ctx, c.sess.PublicKey())
	if err != nil {
		// waits on an idle hub time out, so submissions degrade to optimistic
		logger.Warn().Err(err).Msg("Failed to open account stream")
		stream = events.NewHub()
	}
	c.sess.SetAccountStream(stream)

	if err := c.server.accounts.Restore(ctx, c.sess); err != nil {
		logger.Warn().Err(err).Msg("Failed to restore account state")
	}

	c.server.sessions.Put(c.sess)
	defer func() {
		c.server.sessions.Remove(c.sess)
		c.sess.Close()
		c.close()
	}()

	go c.writePump()
	go c.watch(ctx, stream)

	chips, seq := c.sess.Balance()
	c.push(Frame("", model.OK(map[string]any{
		"type":       ResponseConnected,
		"sessionId":  c.sess.ID,
		"publicKey":  c.sess.PublicKey(),
		"registered": c.sess.Registered(),
		"balance":    chips,
		"balanceSeq": seq,
	})))
	logger.Info().Msg("Client connected")

	inbound := make(chan game.Message, inboundBuffer)
	dispatched := make(chan struct{})
	go func() {
		defer close(dispatched)
		c.dispatchPump(ctx, inbound)
	}()

	c.readPump(inbound)
	cancel()
	<-dispatched
	logger.Info().Msg("Client disconnected")
}

// readPump reads frames until the socket fails. Handlers run on
// dispatchPump so a slow one never stalls pong processing.
func (c *conn) readPump(inbound chan<- game.Message) {
	defer close(inbound)

	pongWait := c.server.pongWait
	if limit := c.server.cfg.ReadLimitBytes; limit > 0 {
		c.ws.SetReadLimit(limit)
	}
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("conn", c.sess.ID).Msg("Websocket read error")
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))

		msg, refused := c.admit(data)
		if refused != nil {
			c.push(refused)
			continue
		}
		select {
		case inbound <- msg:
		default:
			metrics.RecordMessage(msg.Type, false)
			c.push(Frame(msg.RequestID, model.Fail(model.CodeRateLimited, "too many pending requests")))
		}
	}
}

// admit rate limits and parses one inbound frame. It returns the error
// frame to send back when the frame is refused.
func (c *conn) admit(data []byte) (game.Message, []byte) {
	if !c.limiter.Allow() {
		requestID := gjson.GetBytes(data, "requestId").String()
		metrics.RecordMessage(gjson.GetBytes(data, "type").String(), false)
		return game.Message{}, Frame(requestID, model.Fail(model.CodeRateLimited, "too many requests"))
	}

	msg, err := game.ParseMessage(data)
	if err != nil {
		metrics.RecordMessage("", false)
		return game.Message{}, Frame(gjson.GetBytes(data, "requestId").String(), model.Fail(model.CodeInvalidMessage, err.Error()))
	}
	return msg, nil
}

// dispatchPump handles admitted messages one at a time, in arrival order.
func (c *conn) dispatchPump(ctx context.Context, inbound <-chan game.Message) {
	for msg := range inbound {
		c.push(c.respond(ctx, msg))
	}
}

// respond turns one message into one outbound frame.
func (c *conn) respond(ctx context.Context, msg game.Message) []byte {
	res := c.dispatch(ctx, msg)
	metrics.RecordMessage(msg.Type, res.Success)
	if !res.Success {
		log.Debug().
			Str("conn", c.sess.ID).
			Str("type", msg.Type).
			Str("code", string(res.ErrorCode())).
			Msg("Message failed")
	}
	return Frame(msg.RequestID, res)
}

func (c *conn) dispatch(ctx context.Context, msg game.Message) model.HandleResult {
	if c.server.accounts.Handles(msg.Type) {
		return c.server.accounts.HandleMessage(ctx, c.sess, msg)
	}
	return c.server.registry.Dispatch(ctx, c.sess, msg)
}

// watch settles game events that arrive while no handler is waiting for
// them, such as a result or rejection that came after the wait timed out.
func (c *conn) watch(ctx context.Context, stream events.Stream) {
	ch, cancel := stream.Listen(events.Kinds(model.EventStarted, model.EventCompleted, model.EventError))
	defer cancel()
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if frame := c.reconcile(ctx, ev); frame != nil {
				c.push(frame)
			}
		case <-ctx.Done():
			return
		case <-c.done:
			return
		}
	}
}

// reconcile applies an event no request is waiting for to the active game
// and returns the frame to push, if any.
func (c *conn) reconcile(ctx context.Context, ev model.Event) []byte {
	if c.sess.Awaiting() || c.sess.Settled(ev) {
		return nil
	}
	id, gt, ok := c.sess.ActiveGame()
	if !ok {
		return nil
	}
	switch ev.Kind {
	case model.EventStarted:
		if ev.SessionID == id {
			c.sess.ConfirmGame(id)
		}
		return nil
	case model.EventError:
		return c.reconcileRejection(id, gt, ev)
	case model.EventCompleted:
		if ev.SessionID == id {
			return c.reconcileResult(ctx, id, gt, ev)
		}
	}
	return nil
}

// reconcileRejection settles a late error. A round the backend never
// confirmed is rolled back. A confirmed round stays open and the client
// learns its last move was refused.
func (c *conn) reconcileRejection(id uint64, gt model.GameType, ev model.Event) []byte {
	confirmed := c.sess.GameConfirmed()
	if ev.SessionID != id && (confirmed || ev.SessionID != 0) {
		return nil
	}

	res := game.RejectedByEvent(ev, "transaction rejected")
	res.Response = map[string]any{
		"sessionId":  id,
		"gameType":   gt.String(),
		"reconciled": true,
		"gameEnded":  false,
	}
	if !confirmed {
		if !c.sess.EndGameIf(id) {
			return nil
		}
		c.sess.CloseSessionStream()
		res.Response["gameEnded"] = true
	}
	log.Info().
		Str("conn", c.sess.ID).
		Uint64("session_id", id).
		Bool("game_ended", !confirmed).
		Str("reason", res.Error.Message).
		Msg("Reconciled late rejection")
	return Frame("", res)
}

func (c *conn) reconcileResult(ctx context.Context, id uint64, gt model.GameType, ev model.Event) []byte {
	if !c.sess.EndGameIf(id) {
		return nil
	}
	c.sess.CloseSessionStream()

	if h := c.server.history; h != nil {
		if err := h.SaveCompleted(ctx, id, ev.Payout, ev.FinalChips, time.Now()); err != nil {
			log.Warn().Err(err).Uint64("session_id", id).Msg("Failed to record game result")
		}
	}

	resp := map[string]any{
		"type":       model.ResponseGameResult,
		"sessionId":  id,
		"gameType":   gt.String(),
		"payout":     ev.Payout,
		"outcome":    game.Outcome(ev.Payout),
		"reconciled": true,
	}
	if chips, ok := ev.Chips(); ok {
		resp["balance"] = chips
		resp["balanceSeq"] = c.sess.SetBalance(chips)
	}
	log.Info().
		Str("conn", c.sess.ID).
		Uint64("session_id", id).
		Int64("payout", ev.Payout).
		Msg("Reconciled late game result")
	return Frame("", model.OK(resp))
}

func (c *conn) writePump() {
	ticker := time.NewTicker(c.server.pongWait / 4)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.drain()
			return
		}
	}
}

// drain flushes queued frames before the socket closes.
func (c *conn) drain() {
	for {
		select {
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		default:
			_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *conn) push(frame []byte) {
	select {
	case c.send <- frame:
	case <-c.done:
	default:
		log.Warn().Str("conn", c.sess.ID).Msg("Send buffer full, dropping frame")
	}
}

func (c *conn) close() {
	c.once.Do(func() { close(c.done) })
}

// Frame renders a result as {requestId?, success, ...response} or
// {requestId?, success:false, error:{code,message}}.
func Frame(requestID string, res model.HandleResult) []byte {
	out := make(map[string]any, len(res.Response)+3)
	for k, v := range res.Response {
		out[k] = v
	}
	if requestID != "" {
		out["requestId"] = requestID
	}
	out["success"] = res.Success
	if !res.Success && res.Error != nil {
		out["error"] = res.Error
	}

	b, err := json.Marshal(out)
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode response frame")
		b, _ = json.Marshal(map[string]any{
			"requestId": requestID,
			"success":   false,
			"error":     model.HandleError{Code: model.CodeInvalidMessage, Message: "unencodable response"},
		})
	}
	return b
}
