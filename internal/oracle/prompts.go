package oracle

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/yourusername/quant-ninja/internal/models"
)

const extractPrompt = `You are a sports betting analyst looking at a screenshot.

Decide first whether the image is a sports betting dashboard or +EV tool that shows a table of bet lines.
A valid dashboard shows at least an event or matchup, a market or line, and odds; an EV% column is expected.

If it is valid, read every row that is a +EV bet and report:
event, market, odds (decimal), bookie and ev (percent).
Only report rows with a positive EV.

Answer with a JSON object: {"isValid": boolean, "bets": [{"event", "market", "odds", "ev", "bookie"}]}`

const searchPromptTemplate = `Current time: %s

Search the web for live or upcoming sports bets with positive expected value.

Only return bets that can still be placed now, for events that have not started.
Discard anything for a game already in progress or finished; check the game status with search when unsure.
Prefer fresh odds aggregators such as Crazy Ninja Odds or OddsJam.

Answer with a JSON array of objects: {"event": string, "market": string, "odds": number, "bookie": string, "ev": number}`

const verifyPromptTemplate = `Verify the result of the bet "%s" in "%s", placed on %s.
Answer in the form WON | details or LOST | details.
If the game has not finished, answer PENDING.`

var betSchema = map[string]interface{}{
	"type": "OBJECT",
	"properties": map[string]interface{}{
		"event":  map[string]string{"type": "STRING"},
		"market": map[string]string{"type": "STRING"},
		"odds":   map[string]string{"type": "NUMBER"},
		"ev":     map[string]string{"type": "NUMBER"},
		"bookie": map[string]string{"type": "STRING"},
	},
	"required": []string{"event", "market", "odds", "ev", "bookie"},
}

var (
	extractSchema = mustSchema(map[string]interface{}{
		"type": "OBJECT",
		"properties": map[string]interface{}{
			"isValid": map[string]string{"type": "BOOLEAN"},
			"bets": map[string]interface{}{
				"type":  "ARRAY",
				"items": betSchema,
			},
		},
		"required": []string{"isValid", "bets"},
	})

	searchSchema = mustSchema(map[string]interface{}{
		"type":  "ARRAY",
		"items": betSchema,
	})
)

func mustSchema(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("oracle: invalid response schema: %v", err))
	}
	return data
}

func searchPrompt(now time.Time) string {
	return fmt.Sprintf(searchPromptTemplate, now.UTC().Format(time.RFC3339))
}

func verifyPrompt(p models.Position) string {
	return fmt.Sprintf(verifyPromptTemplate, p.Market, p.Event, p.CreatedAt.UTC().Format("2006-01-02"))
}
