package rules

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"
)

// EventCode is one entry in the club event code directory
type EventCode struct {
	Code      string `json:"code"`
	ClubName  string `json:"club_name"`
	EventName string `json:"event_name"`
}

// EventCodeDirectory indexes the event codes treasurers assign to club
// activities. Codes are matched case-insensitively.
type EventCodeDirectory struct {
	codes  []EventCode
	byCode map[string]EventCode
}

func emptyEventCodeDirectory() *EventCodeDirectory {
	return &EventCodeDirectory{byCode: map[string]EventCode{}}
}

// loadEventCodes reads a CSV with header event_code,club_name,event_name
func loadEventCodes(path string) (*EventCodeDirectory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("invalid CSV: %w", err)
	}
	if len(records) == 0 {
		return emptyEventCodeDirectory(), nil
	}

	dir := emptyEventCodeDirectory()
	for _, row := range records[1:] { // skip header
		if len(row) < 3 {
			continue
		}
		code := EventCode{
			Code:      strings.TrimSpace(row[0]),
			ClubName:  strings.TrimSpace(row[1]),
			EventName: strings.TrimSpace(row[2]),
		}
		if code.Code == "" {
			continue
		}
		dir.codes = append(dir.codes, code)
		dir.byCode[strings.ToUpper(code.Code)] = code
	}

	return dir, nil
}

// Len returns the number of codes in the directory
func (d *EventCodeDirectory) Len() int { return len(d.codes) }

// Lookup finds an event code by its code value
func (d *EventCodeDirectory) Lookup(code string) (EventCode, bool) {
	found, ok := d.byCode[strings.ToUpper(strings.TrimSpace(code))]
	return found, ok
}

// Suggestion is an event code proposed for a request, with the heuristic
// confidence of the match
type Suggestion struct {
	Code       EventCode `json:"code"`
	Confidence float64   `json:"confidence"`
}

// Suggest proposes an event code for a club, preferring a code whose event
// name matches the given event, then the club's operating-costs code, then
// any code registered for the club.
func (d *EventCodeDirectory) Suggest(clubName, eventName string) (Suggestion, bool) {
	if clubName == "" || len(d.codes) == 0 {
		return Suggestion{}, false
	}

	var clubCodes []EventCode
	for _, code := range d.codes {
		if strings.EqualFold(code.ClubName, clubName) {
			clubCodes = append(clubCodes, code)
		}
	}
	if len(clubCodes) == 0 {
		return Suggestion{}, false
	}

	if eventName != "" {
		for _, code := range clubCodes {
			if strings.Contains(strings.ToLower(code.EventName), strings.ToLower(eventName)) {
				return Suggestion{Code: code, Confidence: 0.95}, true
			}
		}
	}

	for _, code := range clubCodes {
		name := strings.ToLower(code.EventName)
		if strings.Contains(name, "operating") || strings.Contains(name, "general") || strings.Contains(name, "costs") {
			return Suggestion{Code: code, Confidence: 0.8}, true
		}
	}

	return Suggestion{Code: clubCodes[0], Confidence: 0.75}, true
}
