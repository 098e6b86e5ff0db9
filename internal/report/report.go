// Package report renders one tick as the human-readable console table.
package report

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"cloudpico-sensorsim/internal/generator"
	"cloudpico-sensorsim/internal/types"
)

const (
	rule       = "=================================================="
	timeLayout = "2006-01-02 15:04:05"
)

var channelLabels = map[types.Channel]string{
	types.ChannelMQTTTelemetry:  "MQTT to ThingsBoard:",
	types.ChannelHTTPTelemetry:  "HTTP to ThingsBoard:",
	types.ChannelHTTPAttributes: "Attributes to TB:",
	types.ChannelBackend:        "Direct to Backend:",
}

type Reporter struct {
	mu         sync.Mutex
	w          io.Writer
	quantities []generator.Quantity
	now        func() time.Time
}

// New returns a Reporter that lists readings in the order of quantities.
func New(w io.Writer, quantities []generator.Quantity) *Reporter {
	return &Reporter{
		w:          w,
		quantities: append([]generator.Quantity(nil), quantities...),
		now:        time.Now,
	}
}

// Report writes the banner, the readings table and one line per outcome.
func (r *Reporter) Report(tickID string, readings types.ReadingSet, outcomes []types.Outcome) error {
	var b strings.Builder

	fmt.Fprintf(&b, "\n%s\n", rule)
	fmt.Fprintf(&b, "📊 Sensor Data - %s\n", r.now().Format(timeLayout))
	if tickID != "" {
		fmt.Fprintf(&b, "   tick %s\n", tickID)
	}
	fmt.Fprintf(&b, "%s\n", rule)

	seen := make(map[string]bool, len(readings))
	for _, q := range r.quantities {
		v, ok := readings[q.Name]
		if !ok {
			continue
		}
		seen[q.Name] = true
		fmt.Fprintf(&b, "  %-15s : %6.1f %s\n", Title(q.Name), v, q.Unit)
	}
	// Readings without a configured quantity still show, unitless.
	for _, name := range slices.Sorted(maps.Keys(readings)) {
		if !seen[name] {
			fmt.Fprintf(&b, "  %-15s : %6.1f\n", Title(name), readings[name])
		}
	}
	fmt.Fprintf(&b, "%s\n", rule)

	for _, o := range outcomes {
		label, ok := channelLabels[o.Channel]
		if !ok {
			label = string(o.Channel) + ":"
		}
		mark := "✅"
		if !o.OK {
			mark = "❌"
		}
		fmt.Fprintf(&b, "  %-20s %s\n", label, mark)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := io.WriteString(r.w, b.String())
	return err
}

// Title turns a snake_case quantity name into "Snake Case".
func Title(name string) string {
	words := strings.FieldsFunc(name, func(r rune) bool { return r == '_' || r == ' ' })
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + strings.ToLower(w[size:])
	}
	return strings.Join(words, " ")
}
