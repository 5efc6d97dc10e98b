// Package events publishes analysis lifecycle messages to RabbitMQ.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/streadway/amqp"

	"github.com/toxiscan/backend/internal/domain"
)

// EventAnalysisCompleted is the message type header of completed-analysis events
const EventAnalysisCompleted = "analysis.completed"

// channel is the subset of *amqp.Channel the publisher uses
type channel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// dialFunc opens a channel with the exchange declared, plus a closer for its connection
type dialFunc func(amqpURL, exchange string) (channel, func() error, error)

// Publisher implements domain.EventPublisher on a durable direct exchange
type Publisher struct {
	mu         sync.Mutex
	amqpURL    string
	exchange   string
	routingKey string
	dial       dialFunc
	ch         channel
	closeConn  func() error
}

// NewPublisher connects to RabbitMQ and declares the exchange
func NewPublisher(amqpURL, exchange, routingKey string) (*Publisher, error) {
	return newPublisher(amqpURL, exchange, routingKey, dialAMQP)
}

func newPublisher(amqpURL, exchange, routingKey string, dial dialFunc) (*Publisher, error) {
	p := &Publisher{
		amqpURL:    amqpURL,
		exchange:   exchange,
		routingKey: routingKey,
		dial:       dial,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.connectLocked(); err != nil {
		return nil, err
	}
	return p, nil
}

// PublishAnalysisCompleted sends event as a persistent JSON message.
// A closed connection is reopened once before giving up.
func (p *Publisher) PublishAnalysisCompleted(ctx context.Context, event *domain.AnalysisCompletedEvent) error {
	msg, err := newPublishing(event)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == nil {
		if err := p.connectLocked(); err != nil {
			return err
		}
	}

	err = p.ch.Publish(p.exchange, p.routingKey, false, false, msg)
	if err != nil && isConnClosedErr(err) {
		log.WithError(err).Warn("[EVENTS] connection closed, reconnecting")
		p.closeLocked()
		if connErr := p.connectLocked(); connErr != nil {
			return fmt.Errorf("failed to publish message: %w (reconnect failed: %v)", err, connErr)
		}
		err = p.ch.Publish(p.exchange, p.routingKey, false, false, msg)
	}
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context done while publishing message: %w", err)
	}

	log.WithFields(log.Fields{
		"id":       event.AnalysisID,
		"exchange": p.exchange,
		"key":      p.routingKey,
	}).Debug("[EVENTS] published analysis.completed")
	return nil
}

// Close closes the channel and connection
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var err error
	if p.ch != nil {
		if chErr := p.ch.Close(); chErr != nil {
			err = chErr
		}
		p.ch = nil
	}
	if p.closeConn != nil {
		if connErr := p.closeConn(); connErr != nil && err == nil {
			err = connErr
		}
		p.closeConn = nil
	}
	return err
}

func (p *Publisher) connectLocked() error {
	ch, closeConn, err := p.dial(p.amqpURL, p.exchange)
	if err != nil {
		return err
	}
	p.ch = ch
	p.closeConn = closeConn
	return nil
}

func (p *Publisher) closeLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.closeConn != nil {
		_ = p.closeConn()
		p.closeConn = nil
	}
}

func newPublishing(event *domain.AnalysisCompletedEvent) (amqp.Publishing, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("failed to marshal event: %w", err)
	}

	return amqp.Publishing{
		ContentType:  "application/json",
		Type:         EventAnalysisCompleted,
		MessageId:    event.AnalysisID,
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
	}, nil
}

func dialAMQP(amqpURL, exchange string) (channel, func() error, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, "direct", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return ch, conn.Close, nil
}

func isConnClosedErr(err error) bool {
	if errors.Is(err, amqp.ErrClosed) {
		return true
	}
	return strings.Contains(err.Error(), "channel/connection is not open")
}
