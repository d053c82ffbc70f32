package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/streadway/amqp"
)

// redialInterval spaces out dial attempts while the broker is down.
const redialInterval = 2 * time.Second

var (
	ErrPublisherClosed   = errors.New("publisher is closed")
	ErrBrokerUnavailable = errors.New("amqp broker unavailable")
)

type publishChannel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// session is one broker connection with its publishing channel. Either side
// closing, a broker restart included, marks the session dead.
type session struct {
	ch         publishChannel
	closers    []io.Closer
	connClosed <-chan *amqp.Error
	chClosed   <-chan *amqp.Error
}

func (s *session) alive() bool {
	select {
	case <-s.connClosed:
		return false
	case <-s.chClosed:
		return false
	default:
		return true
	}
}

func (s *session) close() error {
	var first error
	for _, c := range s.closers {
		if err := c.Close(); err != nil && first == nil && !errors.Is(err, amqp.ErrClosed) {
			first = err
		}
	}
	return first
}

func dialSession(url, exchange string) (*session, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to amqp broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}
	// Buffered: the library blocks on delivering the close notification.
	return &session{
		ch:         ch,
		closers:    []io.Closer{ch, conn},
		connClosed: conn.NotifyClose(make(chan *amqp.Error, 1)),
		chClosed:   ch.NotifyClose(make(chan *amqp.Error, 1)),
	}, nil
}

// AMQPPublisher sends JSON events to a durable topic exchange. A lost
// connection is redialed on the next publish.
type AMQPPublisher struct {
	mu         sync.Mutex
	exchange   string
	dial       func() (*session, error)
	sess       *session
	lastFailed time.Time
	closed     bool
	now        func() time.Time
	log        zerolog.Logger
}

// NewAMQPPublisher dials once up front so a bad URL fails at startup.
func NewAMQPPublisher(url, exchange string, log zerolog.Logger) (*AMQPPublisher, error) {
	p := newPublisher(exchange, func() (*session, error) { return dialSession(url, exchange) }, log)
	sess, err := p.dial()
	if err != nil {
		return nil, err
	}
	p.sess = sess
	return p, nil
}

func newPublisher(exchange string, dial func() (*session, error), log zerolog.Logger) *AMQPPublisher {
	return &AMQPPublisher{exchange: exchange, dial: dial, now: time.Now, log: log}
}

// Message builds the AMQP message for payload.
func Message(payload any, now time.Time) (amqp.Publishing, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("failed to marshal event: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.New().String(),
		Timestamp:    now,
		Body:         body,
	}, nil
}

// current returns a live session, redialing when the last one died.
// Callers hold p.mu.
func (p *AMQPPublisher) current() (*session, error) {
	if p.closed {
		return nil, ErrPublisherClosed
	}
	if p.sess != nil && p.sess.alive() {
		return p.sess, nil
	}
	p.drop()
	if !p.lastFailed.IsZero() && p.now().Sub(p.lastFailed) < redialInterval {
		return nil, ErrBrokerUnavailable
	}
	sess, err := p.dial()
	if err != nil {
		p.lastFailed = p.now()
		p.log.Warn().Err(err).Str("exchange", p.exchange).Msg("amqp redial failed")
		return nil, fmt.Errorf("%w: %v", ErrBrokerUnavailable, err)
	}
	p.lastFailed = time.Time{}
	p.sess = sess
	p.log.Info().Str("exchange", p.exchange).Msg("amqp connection established")
	return sess, nil
}

func (p *AMQPPublisher) drop() {
	if p.sess == nil {
		return
	}
	_ = p.sess.close()
	p.sess = nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, routingKey string, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := Message(payload, time.Now().UTC())
	if err != nil {
		return err
	}

	// A channel must not be used for concurrent publishes.
	p.mu.Lock()
	defer p.mu.Unlock()
	for attempt := 0; ; attempt++ {
		sess, err := p.current()
		if err != nil {
			return fmt.Errorf("failed to publish %s: %w", routingKey, err)
		}
		err = sess.ch.Publish(p.exchange, routingKey, false, false, msg)
		if err == nil {
			return nil
		}
		// The close notification can trail the failed write; retry once on a fresh session.
		p.drop()
		if attempt > 0 {
			return fmt.Errorf("failed to publish %s: %w", routingKey, err)
		}
	}
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	if p.sess == nil {
		return nil
	}
	err := p.sess.close()
	p.sess = nil
	return err
}
