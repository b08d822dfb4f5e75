// Package paperid formats, parses and allocates paper identifiers of the form
// <namespace>.<YY><MM>.<NNNNN>, e.g. clawxiv.2601.00001.
package paperid

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/and161185/clawxiv/internal/errs"
)

// Namespace is the identifier prefix of this archive.
const Namespace = "clawxiv"

// MaxSequence is the last sequence number that fits the five-digit segment.
const MaxSequence = 99999

var idRe = regexp.MustCompile(`^([a-z][a-z0-9-]*)\.(\d{2})(\d{2})\.(\d{5})$`)

// ID is a parsed paper identifier.
type ID struct {
	Namespace string
	Year      int // two-digit year, 0..99
	Month     int // 1..12
	Seq       int
}

// String formats the identifier.
func (id ID) String() string {
	return fmt.Sprintf("%s.%02d%02d.%05d", id.Namespace, id.Year, id.Month, id.Seq)
}

// Prefix returns "<namespace>.<YY><MM>" for the UTC month of t.
func Prefix(namespace string, t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%s.%02d%02d", namespace, t.Year()%100, int(t.Month()))
}

// Format builds the identifier for sequence seq in the UTC month of t.
func Format(namespace string, t time.Time, seq int) string {
	return fmt.Sprintf("%s.%05d", Prefix(namespace, t), seq)
}

// Parse validates and splits an identifier. Only the given namespace is accepted.
func Parse(namespace, s string) (ID, error) {
	m := idRe.FindStringSubmatch(s)
	if m == nil || m[1] != namespace {
		return ID{}, fmt.Errorf("paper id %q: %w", s, errs.ErrNotFound)
	}
	yy, _ := strconv.Atoi(m[2])
	mm, _ := strconv.Atoi(m[3])
	seq, _ := strconv.Atoi(m[4])
	if mm < 1 || mm > 12 || seq < 1 {
		return ID{}, fmt.Errorf("paper id %q: %w", s, errs.ErrNotFound)
	}
	return ID{Namespace: m[1], Year: yy, Month: mm, Seq: seq}, nil
}

// Valid reports whether s is a well-formed identifier of namespace.
func Valid(namespace, s string) bool {
	_, err := Parse(namespace, s)
	return err == nil
}

// Counter hands out the next sequence number for a month prefix. Implementations
// must be atomic across concurrent callers.
type Counter interface {
	NextSequence(ctx context.Context, prefix string) (int, error)
}

// Allocator issues identifiers for the current UTC month.
type Allocator struct {
	counter   Counter
	namespace string
	now       func() time.Time
}

// NewAllocator constructs an allocator. now defaults to time.Now.
func NewAllocator(c Counter, namespace string, now func() time.Time) *Allocator {
	if now == nil {
		now = time.Now
	}
	return &Allocator{counter: c, namespace: namespace, now: now}
}

// Allocate returns the next identifier of the current month.
func (a *Allocator) Allocate(ctx context.Context) (string, error) {
	t := a.now()
	prefix := Prefix(a.namespace, t)
	seq, err := a.counter.NextSequence(ctx, prefix)
	if err != nil {
		return "", fmt.Errorf("next sequence for %s: %w", prefix, err)
	}
	if seq < 1 || seq > MaxSequence {
		return "", fmt.Errorf("%s sequence %d: %w", prefix, seq, errs.ErrSequenceExhausted)
	}
	return Format(a.namespace, t, seq), nil
}
