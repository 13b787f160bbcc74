// Package harness runs declarative replay scenarios: YAML feed fixtures
// folded through the real codec and replay engine, checked with
// assertions and golden state bytes.
package harness

import (
	"fmt"

	"github.com/roach88/palaver/internal/codec"
	"github.com/roach88/palaver/internal/event"
	"github.com/roach88/palaver/internal/replay"
)

// Result carries the folded state plus its canonical encoding.
type Result struct {
	State     *event.CommunityState
	Canonical []byte
	Skipped   int // records the codec refused to decode
}

// Run executes a scenario: encode each record's payload, decode through
// the codec (undecodable payloads are counted and skipped, mirroring
// production), fold, and canonically encode the result.
func Run(sc *Scenario) (*Result, error) {
	records := make([]replay.Record, 0, len(sc.Records))
	skipped := 0
	for i, step := range sc.Records {
		payload, err := step.PayloadJSON()
		if err != nil {
			return nil, fmt.Errorf("scenario %s record %d: %w", sc.Name, i, err)
		}
		ev, ok := codec.DecodeControl(payload)
		if !ok {
			skipped++
			continue
		}
		records = append(records, replay.Record{
			Sender: step.Sender,
			SentAt: step.SentAt,
			Event:  ev,
		})
	}

	st := replay.Fold(records)
	canonical, err := codec.EncodeState(st)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: encode state: %w", sc.Name, err)
	}
	return &Result{State: st, Canonical: canonical, Skipped: skipped}, nil
}
