// Package sandbox provides a synthetic RingCentral-shaped provider used for
// local development and as a fixture in client tests.
package sandbox

import (
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/aerocall/backend/internal/types"
	"github.com/google/uuid"
)

// Outcome is one weighted call result the generator can produce.
type Outcome struct {
	Result      string
	Type        string
	MinDuration int
	MaxDuration int
	Weight      float64
}

// Extension is a weighted call owner. A nil Info yields records without an
// extension.
type Extension struct {
	Info   *types.ExtensionInfo
	Weight float64
}

// Generator synthesizes call-log records. It is not safe for concurrent use.
type Generator struct {
	rng           *rand.Rand
	outcomes      []Outcome
	extensions    []Extension
	inboundWeight float64
	recordingRate float64
}

// NewGenerator creates a generator with the default call mix.
func NewGenerator(seed int64) *Generator {
	return &Generator{
		rng:           rand.New(rand.NewSource(seed)),
		outcomes:      defaultOutcomes(),
		extensions:    defaultExtensions(),
		inboundWeight: 0.6,
		recordingRate: 0.5,
	}
}

func defaultOutcomes() []Outcome {
	return []Outcome{
		{Result: "Call connected", Type: "Voice", MinDuration: 20, MaxDuration: 900, Weight: 6},
		{Result: "Missed", Type: "Voice", Weight: 2.5},
		{Result: "Voicemail", Type: types.RawTypeVoicemail, MinDuration: 8, MaxDuration: 90, Weight: 1.5},
	}
}

func defaultExtensions() []Extension {
	return []Extension{
		{Info: &types.ExtensionInfo{ID: "101", Name: "Jane Doe"}, Weight: 4},
		{Info: &types.ExtensionInfo{ID: "102", Name: "John Smith"}, Weight: 3},
		{Info: &types.ExtensionInfo{ID: "103", Name: "Maria Garcia"}, Weight: 2},
		{Info: &types.ExtensionInfo{ID: "104", Name: "Alex Chen"}, Weight: 2},
		{Info: nil, Weight: 1},
	}
}

var contacts = []types.PartyInfo{
	{PhoneNumber: "+14155550101", Name: "Acme Corp"},
	{PhoneNumber: "+14155550102", Name: "Globex"},
	{PhoneNumber: "+14155550103"},
	{PhoneNumber: "+12125550104", Name: "Initech"},
	{PhoneNumber: "+12125550105"},
	{PhoneNumber: "+13105550106", Name: "Umbrella"},
}

const companyNumber = "+16505550100"

// Generate returns count records with start times spread over [from, to),
// newest first as the live API returns them.
func (g *Generator) Generate(count int, from, to time.Time) []types.RawCallRecord {
	span := to.Sub(from)
	if span <= 0 {
		span = time.Hour
	}

	records := make([]types.RawCallRecord, 0, count)
	for i := 0; i < count; i++ {
		start := from.Add(time.Duration(g.rng.Int63n(int64(span))))
		records = append(records, g.record(start))
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].StartTime > records[j].StartTime
	})
	return records
}

func (g *Generator) record(start time.Time) types.RawCallRecord {
	id, err := uuid.NewRandomFromReader(g.rng)
	if err != nil {
		id = uuid.New()
	}

	outcome := pickOutcome(g.rng, g.outcomes)
	duration := 0
	if outcome.MaxDuration > outcome.MinDuration {
		duration = outcome.MinDuration + g.rng.Intn(outcome.MaxDuration-outcome.MinDuration)
	}

	ext := pickExtension(g.rng, g.extensions)
	contact := contacts[g.rng.Intn(len(contacts))]
	company := types.PartyInfo{PhoneNumber: companyNumber}
	if ext != nil {
		company.Name = ext.Name
		company.ExtensionNumber = ext.ID
	}

	rec := types.RawCallRecord{
		ID:        id.String(),
		Result:    outcome.Result,
		Type:      outcome.Type,
		Duration:  duration,
		StartTime: start.UTC().Format(time.RFC3339Nano),
		Extension: ext,
	}

	if g.rng.Float64() < g.inboundWeight {
		rec.Direction = "Inbound"
		rec.From, rec.To = &contact, &company
	} else {
		rec.Direction = "Outbound"
		rec.From, rec.To = &company, &contact
	}

	if outcome.Result != types.RawResultMissed && g.rng.Float64() < g.recordingRate {
		recID := fmt.Sprintf("%d", 100000+g.rng.Intn(900000))
		rec.Recording = &types.RecordingInfo{
			ID:         recID,
			ContentURI: recordingPath(recID),
		}
	}

	return rec
}

func recordingPath(id string) string {
	return "/restapi/v1.0/account/~/recording/" + id + "/content"
}

func pickOutcome(rng *rand.Rand, outcomes []Outcome) Outcome {
	var total float64
	for _, o := range outcomes {
		total += o.Weight
	}

	r := rng.Float64() * total
	for _, o := range outcomes {
		r -= o.Weight
		if r <= 0 {
			return o
		}
	}
	return outcomes[len(outcomes)-1]
}

func pickExtension(rng *rand.Rand, exts []Extension) *types.ExtensionInfo {
	var total float64
	for _, e := range exts {
		total += e.Weight
	}

	r := rng.Float64() * total
	for _, e := range exts {
		r -= e.Weight
		if r <= 0 {
			return e.Info
		}
	}
	return exts[len(exts)-1].Info
}
