// Package feed places overlays from a websocket stream of coordinates or IP
// addresses.
package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/sudorandom/mandala-map/pkg/geoip"
	"github.com/sudorandom/mandala-map/pkg/logging"
	"github.com/sudorandom/mandala-map/pkg/metrics"
	"github.com/sudorandom/mandala-map/pkg/overlay"
)

var ErrInvalidMessage = errors.New("feed: invalid message")

const (
	DefaultMinBackoff = time.Second
	DefaultMaxBackoff = 60 * time.Second
)

// Message is one placement request. Either Lng/Lat or IP must be set.
type Message struct {
	Lng *float64 `json:"lng,omitempty"`
	Lat *float64 `json:"lat,omitempty"`
	IP  string   `json:"ip,omitempty"`
}

// Decode parses a frame holding a single message or an array of them.
func Decode(frame []byte) ([]Message, error) {
	frame = bytes.TrimSpace(frame)
	if len(frame) == 0 {
		return nil, fmt.Errorf("%w: empty frame", ErrInvalidMessage)
	}
	if frame[0] == '[' {
		var msgs []Message
		if err := json.Unmarshal(frame, &msgs); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
		}
		return msgs, nil
	}
	var msg Message
	if err := json.Unmarshal(frame, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	return []Message{msg}, nil
}

// Anchor resolves a message to a coordinate, looking IPs up with loc.
func (m Message) Anchor(loc geoip.Locator) (overlay.LngLat, error) {
	if m.Lng != nil && m.Lat != nil {
		ll := overlay.LngLat{Lng: *m.Lng, Lat: *m.Lat}
		if math.IsNaN(ll.Lng) || math.IsNaN(ll.Lat) || math.Abs(ll.Lng) > 180 || math.Abs(ll.Lat) > 90 {
			return overlay.LngLat{}, fmt.Errorf("%w: coordinate out of range %s", ErrInvalidMessage, ll)
		}
		return ll, nil
	}
	if m.IP != "" {
		if loc == nil {
			return overlay.LngLat{}, fmt.Errorf("%w: ip messages need a geoip database", ErrInvalidMessage)
		}
		l, err := loc.Locate(m.IP)
		if err != nil {
			return overlay.LngLat{}, err
		}
		return l.Anchor, nil
	}
	return overlay.LngLat{}, fmt.Errorf("%w: no coordinate or ip", ErrInvalidMessage)
}

// Poster runs fn on the goroutine that owns the overlay manager.
type Poster interface {
	Post(fn func())
}

// Placer is the overlay manager as seen by the feed.
type Placer interface {
	Place(anchor overlay.LngLat) (overlay.ID, error)
}

type Config struct {
	URL        string
	MinBackoff time.Duration
	MaxBackoff time.Duration
}

// Client keeps a websocket connection open and forwards placements.
type Client struct {
	cfg     Config
	loop    Poster
	placer  Placer
	locator geoip.Locator
	logger  logging.Logger
	clock   clockwork.Clock
	dialer  *websocket.Dialer
}

// New builds a client. locator may be nil, in which case IP messages are
// dropped.
func New(cfg Config, loop Poster, placer Placer, locator geoip.Locator, logger logging.Logger, clock clockwork.Clock) *Client {
	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = DefaultMinBackoff
	}
	if cfg.MaxBackoff < cfg.MinBackoff {
		cfg.MaxBackoff = max(DefaultMaxBackoff, cfg.MinBackoff)
	}
	if logger == nil {
		logger = logging.Nop{}
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Client{
		cfg:     cfg,
		loop:    loop,
		placer:  placer,
		locator: locator,
		logger:  logger,
		clock:   clock,
		dialer:  websocket.DefaultDialer,
	}
}

// Run connects and reads until ctx is cancelled, reconnecting with
// exponential backoff. Every reconnect waits, whether the dial failed or an
// open connection dropped; the backoff resets once a connection has stayed
// up for MaxBackoff.
func (c *Client) Run(ctx context.Context) error {
	backoff := c.cfg.MinBackoff
	for {
		c.logger.Info("connecting to placement feed", logging.String("url", c.cfg.URL))
		conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn("feed dial failed", logging.Err(err), logging.Duration("retry_in", backoff))
		} else {
			connectedAt := c.clock.Now()
			err = c.read(ctx, conn)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if c.clock.Since(connectedAt) >= c.cfg.MaxBackoff {
				backoff = c.cfg.MinBackoff
			}
			c.logger.Warn("feed read failed, reconnecting", logging.Err(err), logging.Duration("retry_in", backoff))
		}

		metrics.FeedReconnects.Inc()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.clock.After(backoff):
		}
		backoff = min(backoff*2, c.cfg.MaxBackoff)
	}
}

func (c *Client) read(ctx context.Context, conn *websocket.Conn) error {
	metrics.FeedConnected.Set(1)
	defer metrics.FeedConnected.Set(0)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()
	defer conn.Close()

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		msgs, err := Decode(frame)
		if err != nil {
			metrics.FeedMessages.WithLabelValues("invalid").Inc()
			c.logger.Debug("dropping feed frame", logging.Err(err))
			continue
		}
		for _, m := range msgs {
			c.handle(m)
		}
	}
}

func (c *Client) handle(m Message) {
	anchor, err := m.Anchor(c.locator)
	if err != nil {
		result := "unresolved"
		if errors.Is(err, ErrInvalidMessage) {
			result = "invalid"
		}
		metrics.FeedMessages.WithLabelValues(result).Inc()
		c.logger.Debug("dropping feed message", logging.Err(err))
		return
	}
	metrics.FeedMessages.WithLabelValues("accepted").Inc()
	c.loop.Post(func() {
		// rejection is already logged by the manager
		_, _ = c.placer.Place(anchor)
	})
}
