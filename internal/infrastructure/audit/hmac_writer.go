// Package audit writes a tamper-evident trail of authorization
// decisions. Events are JSON lines, each carrying an HMAC-SHA256
// signature that covers the event and the previous event's signature,
// so deleting or rewriting any line breaks the chain from that point
// on.
package audit

import (
	"bufio"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chainvault/walletgate/pkg/constants"
	"github.com/chainvault/walletgate/pkg/logger"
)

// Trail records authorization events. The execution gate works against
// this interface so audit can be disabled without branching.
type Trail interface {
	Record(ctx context.Context, eventType constants.AuditEventType, actor string, details map[string]any) error
	Close() error
}

// Event is one line of the audit trail.
type Event struct {
	Sequence int64                    `json:"sequence"`
	Type     constants.AuditEventType `json:"type"`
	At       time.Time                `json:"at"`
	Actor    string                   `json:"actor"`
	Details  map[string]any           `json:"details,omitempty"`
	PrevMAC  string                   `json:"prev_mac"`
	MAC      string                   `json:"mac"`
}

// sign computes the event signature over its JSON form with the MAC
// field blanked.
func sign(event Event, secret []byte) (string, error) {
	event.MAC = ""
	payload, err := json.Marshal(event)
	if err != nil {
		return "", err
	}

	h := hmac.New(sha256.New, secret)
	h.Write(payload)
	return base64.StdEncoding.EncodeToString(h.Sum(nil)), nil
}

// TrailWriter appends HMAC-chained events to a JSON-lines file.
type TrailWriter struct {
	mu      sync.Mutex
	out     io.Writer
	closer  io.Closer
	secret  []byte
	prevMAC string
	seq     int64
	logger  logger.Logger
}

// NewTrailWriter opens (or creates) the trail file at path in append
// mode. The file is 0600 since actor addresses are sensitive.
func NewTrailWriter(path, secret string, log logger.Logger) (*TrailWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit trail: %w", err)
	}

	w := NewTrailWriterTo(f, secret, log)
	w.closer = f
	return w, nil
}

// NewTrailWriterTo writes the trail to an arbitrary writer. Used by
// tests and by deployments that ship audit lines to a collector.
func NewTrailWriterTo(out io.Writer, secret string, log logger.Logger) *TrailWriter {
	return &TrailWriter{
		out:    out,
		secret: []byte(secret),
		logger: log.WithComponent("audit"),
	}
}

// Record appends one signed event. Failures are returned but callers
// treat the trail as best-effort; an authorization never fails because
// the audit disk is full.
func (w *TrailWriter) Record(ctx context.Context, eventType constants.AuditEventType, actor string, details map[string]any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.seq++
	event := Event{
		Sequence: w.seq,
		Type:     eventType,
		At:       time.Now().UTC(),
		Actor:    actor,
		Details:  details,
		PrevMAC:  w.prevMAC,
	}

	mac, err := sign(event, w.secret)
	if err != nil {
		return fmt.Errorf("failed to sign audit event: %w", err)
	}
	event.MAC = mac

	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode audit event: %w", err)
	}
	line = append(line, '\n')

	if _, err := w.out.Write(line); err != nil {
		w.logger.Error(ctx, "Failed to append audit event", err,
			logger.String("event_type", string(eventType)),
		)
		return fmt.Errorf("failed to write audit event: %w", err)
	}

	w.prevMAC = mac
	return nil
}

// Close closes the underlying file, if any.
func (w *TrailWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}

// VerifyTrail replays a trail and checks every signature and chain
// link. It returns the number of valid events and the first
// inconsistency found.
func VerifyTrail(r io.Reader, secret string) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	key := []byte(secret)
	prevMAC := ""
	count := 0

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var event Event
		if err := json.Unmarshal(line, &event); err != nil {
			return count, fmt.Errorf("event %d is not valid JSON: %w", count+1, err)
		}

		if event.PrevMAC != prevMAC {
			return count, fmt.Errorf("event %d breaks the chain", event.Sequence)
		}

		expected, err := sign(event, key)
		if err != nil {
			return count, err
		}
		if !hmac.Equal([]byte(expected), []byte(event.MAC)) {
			return count, fmt.Errorf("event %d has an invalid signature", event.Sequence)
		}

		prevMAC = event.MAC
		count++
	}
	if err := scanner.Err(); err != nil {
		return count, err
	}
	return count, nil
}

// NoopTrail discards every event. Used when audit is disabled.
type NoopTrail struct{}

// Record discards the event.
func (NoopTrail) Record(context.Context, constants.AuditEventType, string, map[string]any) error {
	return nil
}

// Close is a no-op.
func (NoopTrail) Close() error { return nil }
