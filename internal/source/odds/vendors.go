package odds

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/timmy/sportsclips/internal/domain"
)

type draftKings struct{}

func (draftKings) Kind() domain.SourceType { return domain.SourceTypeDraftKingsAPI }

func (draftKings) Endpoint(baseURL, sport, league string) string {
	if league == "" {
		return fmt.Sprintf("%s/sports/%s/events", baseURL, sport)
	}
	return fmt.Sprintf("%s/sports/%s/leagues/%s/events", baseURL, sport, league)
}

type dkResponse struct {
	Events []struct {
		EventID        string `json:"eventId"`
		Name           string `json:"name"`
		StartEventDate string `json:"startEventDate"`
		HomeTeam       string `json:"homeTeam"`
		AwayTeam       string `json:"awayTeam"`
		Offers         []struct {
			Label    string `json:"label"`
			Outcomes []struct {
				Label        string   `json:"label"`
				Line         *float64 `json:"line"`
				OddsAmerican string   `json:"oddsAmerican"`
			} `json:"outcomes"`
		} `json:"offers"`
	} `json:"events"`
}

// Decode maps DraftKings offers to markets. Outcomes with a line use it, others use American odds.
func (draftKings) Decode(body []byte) ([]Event, error) {
	var resp dkResponse
	if err := decodeJSON(body, &resp); err != nil {
		return nil, err
	}
	events := make([]Event, 0, len(resp.Events))
	for _, e := range resp.Events {
		ev := Event{
			ID:       e.EventID,
			Name:     e.Name,
			HomeTeam: e.HomeTeam,
			AwayTeam: e.AwayTeam,
			StartsAt: parseTime(e.StartEventDate),
			Markets:  map[string]map[string]float64{},
		}
		for _, offer := range e.Offers {
			market := strings.ToLower(strings.TrimSpace(offer.Label))
			if market == "" {
				continue
			}
			outcomes := map[string]float64{}
			for _, o := range offer.Outcomes {
				if o.Line != nil {
					outcomes[o.Label] = *o.Line
					continue
				}
				american := strings.ReplaceAll(o.OddsAmerican, "−", "-")
				if v, err := strconv.ParseFloat(strings.TrimPrefix(american, "+"), 64); err == nil {
					outcomes[o.Label] = v
				}
			}
			if len(outcomes) > 0 {
				ev.Markets[market] = outcomes
			}
		}
		events = append(events, ev)
	}
	return events, nil
}

type sportsGrid struct{}

func (sportsGrid) Kind() domain.SourceType { return domain.SourceTypeSportsGridAPI }

func (sportsGrid) Endpoint(baseURL, sport, league string) string {
	if league == "" {
		league = sport
	}
	return fmt.Sprintf("%s/odds/%s/%s", baseURL, sport, league)
}

type sgResponse struct {
	Data []struct {
		ID        string `json:"id"`
		Home      string `json:"home"`
		Away      string `json:"away"`
		StartTime string `json:"start_time"`
		Markets   struct {
			Spread    map[string]float64 `json:"spread"`
			Moneyline map[string]float64 `json:"moneyline"`
			Total     *float64           `json:"total"`
		} `json:"markets"`
	} `json:"data"`
}

// Decode maps SportsGrid home/away keyed markets onto team names.
func (sportsGrid) Decode(body []byte) ([]Event, error) {
	var resp sgResponse
	if err := decodeJSON(body, &resp); err != nil {
		return nil, err
	}
	events := make([]Event, 0, len(resp.Data))
	for _, d := range resp.Data {
		ev := Event{
			ID:       d.ID,
			HomeTeam: d.Home,
			AwayTeam: d.Away,
			StartsAt: parseTime(d.StartTime),
			Markets:  map[string]map[string]float64{},
		}
		side := map[string]string{"home": d.Home, "away": d.Away}
		for name, lines := range map[string]map[string]float64{"spread": d.Markets.Spread, "moneyline": d.Markets.Moneyline} {
			outcomes := map[string]float64{}
			for k, v := range lines {
				if team, ok := side[k]; ok && team != "" {
					outcomes[team] = v
				}
			}
			if len(outcomes) > 0 {
				ev.Markets[name] = outcomes
			}
		}
		if d.Markets.Total != nil {
			ev.Markets["total"] = map[string]float64{"over/under": *d.Markets.Total}
		}
		events = append(events, ev)
	}
	return events, nil
}
