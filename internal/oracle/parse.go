package oracle

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/yourusername/quant-ninja/internal/models"
)

// Extraction is the parsed answer to a candidate request
type Extraction struct {
	// Valid is false when the image was not a betting dashboard
	Valid      bool
	Candidates []models.Observation
	// Rejected counts records dropped for missing, mistyped or out-of-range fields
	Rejected int
}

// Parser turns untyped oracle text into validated domain values
type Parser struct {
	validate *validator.Validate
}

// NewParser creates a parser with its own validator
func NewParser() *Parser {
	return &Parser{validate: validator.New()}
}

// ParseExtraction parses the {"isValid", "bets"} object returned for a screenshot
func (p *Parser) ParseExtraction(text string) (*Extraction, error) {
	var envelope struct {
		IsValid *bool             `json:"isValid"`
		Bets    []json.RawMessage `json:"bets"`
	}
	if err := json.Unmarshal([]byte(stripCodeFence(text)), &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if envelope.IsValid == nil {
		return nil, fmt.Errorf("%w: missing isValid", ErrInvalidResponse)
	}
	if !*envelope.IsValid {
		return &Extraction{Valid: false}, nil
	}

	candidates, rejected := p.ParseCandidates(envelope.Bets)
	return &Extraction{Valid: true, Candidates: candidates, Rejected: rejected}, nil
}

// ParseCandidateList parses a bare JSON array of bet records. An object with a
// "bets" array is accepted too.
func (p *Parser) ParseCandidateList(text string) (*Extraction, error) {
	body := stripCodeFence(text)

	var records []json.RawMessage
	if err := json.Unmarshal([]byte(body), &records); err != nil {
		var envelope struct {
			Bets []json.RawMessage `json:"bets"`
		}
		if err2 := json.Unmarshal([]byte(body), &envelope); err2 != nil || envelope.Bets == nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
		}
		records = envelope.Bets
	}

	candidates, rejected := p.ParseCandidates(records)
	return &Extraction{Valid: true, Candidates: candidates, Rejected: rejected}, nil
}

// ParseCandidates converts raw records into observations, dropping any record
// that fails parsing or validation
func (p *Parser) ParseCandidates(records []json.RawMessage) ([]models.Observation, int) {
	out := make([]models.Observation, 0, len(records))
	rejected := 0
	for _, rec := range records {
		obs, err := p.parseRecord(rec)
		if err != nil {
			rejected++
			continue
		}
		out = append(out, obs)
	}
	return out, rejected
}

func (p *Parser) parseRecord(rec json.RawMessage) (models.Observation, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(rec, &fields); err != nil {
		return models.Observation{}, fmt.Errorf("%w: record is not an object", models.ErrInvalidObservation)
	}

	var (
		obs models.Observation
		err error
	)
	if obs.Event, err = stringField(fields, "event", true); err != nil {
		return obs, err
	}
	if obs.Market, err = stringField(fields, "market", true); err != nil {
		return obs, err
	}
	if obs.Bookie, err = stringField(fields, "bookie", false); err != nil {
		return obs, err
	}
	if obs.Odds, err = numberField(fields, "odds"); err != nil {
		return obs, err
	}
	if obs.EdgePercent, err = numberField(fields, "ev"); err != nil {
		return obs, err
	}

	obs.Normalize()
	if err := p.validate.Struct(obs); err != nil {
		return obs, fmt.Errorf("%w: %v", models.ErrInvalidObservation, err)
	}
	return obs, nil
}

func stringField(fields map[string]json.RawMessage, key string, required bool) (string, error) {
	raw, ok := fields[key]
	if !ok || string(raw) == "null" {
		if required {
			return "", fmt.Errorf("%w: missing %s", models.ErrInvalidObservation, key)
		}
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("%w: %s is not a string", models.ErrInvalidObservation, key)
	}
	return s, nil
}

// numberField accepts a JSON number or a numeric string such as "4.2%" or "+3.1"
func numberField(fields map[string]json.RawMessage, key string) (float64, error) {
	raw, ok := fields[key]
	if !ok || string(raw) == "null" {
		return 0, fmt.Errorf("%w: missing %s", models.ErrInvalidObservation, key)
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, fmt.Errorf("%w: %s is not a number", models.ErrInvalidObservation, key)
		}
		s = strings.TrimSpace(s)
		s = strings.TrimSuffix(s, "%")
		s = strings.TrimPrefix(strings.TrimSpace(s), "+")
		n, err = strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %s is not a number", models.ErrInvalidObservation, key)
		}
	}

	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, fmt.Errorf("%w: %s is not finite", models.ErrInvalidObservation, key)
	}
	return n, nil
}

// ParseVerdict reads "WON | details", "LOST | details" or anything else as
// PENDING. Details are the second "|" segment; later segments are dropped.
func ParseVerdict(text string) (models.Status, string) {
	parts := strings.Split(strings.TrimSpace(text), "|")
	var details string
	if len(parts) > 1 {
		details = strings.TrimSpace(parts[1])
	}
	switch status := models.Status(strings.TrimSpace(parts[0])); status {
	case models.StatusWon, models.StatusLost:
		return status, details
	default:
		return models.StatusPending, ""
	}
}

// stripCodeFence removes a surrounding ```json fence some models add
func stripCodeFence(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
