// Package ticket defines the prediction record shared by the queue, the
// ledger and the scoring engine.
package ticket

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Status is the ticket lifecycle state. AUDITED is terminal.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusAudited Status = "AUDITED"
)

// Note values distinguish how a ticket's numbers were admitted.
const (
	NoteNormal        = "normal"
	NoteDissident     = "dissident"
	NoteLowConfidence = "low_confidence"
)

// Ticket is one persisted prediction for a specific game and target draw.
type Ticket struct {
	ID          int64     `json:"id"`
	GeneratedAt time.Time `json:"generated_at"`
	Game        string    `json:"game"`
	Numbers     []int     `json:"numbers"`
	TargetDraw  int64     `json:"target_draw"`
	Status      Status    `json:"status"`
	Hits        int       `json:"hits"`
	Score       float64   `json:"score"` // affinity 0-100; consensus confidence until audited
	Algorithm   string    `json:"algorithm"`
	Note        string    `json:"note"`
}

// Hour returns the hour of day the ticket was generated, the key used by
// the hourly ranking.
func (t Ticket) Hour() int { return t.GeneratedAt.Hour() }

// Validate checks the fields a consumer relies on. Parsing is fail-closed:
// a ticket that does not validate is skipped, never reinterpreted.
func (t Ticket) Validate() error {
	if t.ID <= 0 {
		return fmt.Errorf("ticket id %d: must be positive", t.ID)
	}
	if t.Game == "" {
		return fmt.Errorf("ticket %d: missing game", t.ID)
	}
	if len(t.Numbers) == 0 {
		return fmt.Errorf("ticket %d: empty numbers", t.ID)
	}
	switch t.Status {
	case StatusPending, StatusAudited:
	default:
		return fmt.Errorf("ticket %d: invalid status %q", t.ID, t.Status)
	}
	return nil
}

// CSVHeader is the ledger column order.
var CSVHeader = []string{
	"id", "generated_at", "game", "numbers", "target_draw",
	"status", "hits", "score", "algorithm", "note",
}

// MarshalCSV renders the ticket as one ledger row.
func (t Ticket) MarshalCSV() []string {
	nums, _ := json.Marshal(t.Numbers)
	return []string{
		strconv.FormatInt(t.ID, 10),
		t.GeneratedAt.Format(time.RFC3339),
		t.Game,
		string(nums),
		strconv.FormatInt(t.TargetDraw, 10),
		string(t.Status),
		strconv.Itoa(t.Hits),
		strconv.FormatFloat(t.Score, 'f', 2, 64),
		t.Algorithm,
		t.Note,
	}
}

// UnmarshalCSV parses one ledger row. Any malformed field fails the whole
// row; callers skip and log rather than guessing.
func UnmarshalCSV(row []string) (Ticket, error) {
	if len(row) != len(CSVHeader) {
		return Ticket{}, fmt.Errorf("row has %d columns, want %d", len(row), len(CSVHeader))
	}
	id, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return Ticket{}, fmt.Errorf("bad id %q: %w", row[0], err)
	}
	genAt, err := time.Parse(time.RFC3339, row[1])
	if err != nil {
		return Ticket{}, fmt.Errorf("bad generated_at %q: %w", row[1], err)
	}
	nums, err := ParseNumbers(row[3])
	if err != nil {
		return Ticket{}, fmt.Errorf("ticket %d: %w", id, err)
	}
	target, err := strconv.ParseInt(row[4], 10, 64)
	if err != nil {
		return Ticket{}, fmt.Errorf("bad target_draw %q: %w", row[4], err)
	}
	hits, err := strconv.Atoi(row[6])
	if err != nil {
		return Ticket{}, fmt.Errorf("bad hits %q: %w", row[6], err)
	}
	score, err := strconv.ParseFloat(row[7], 64)
	if err != nil {
		return Ticket{}, fmt.Errorf("bad score %q: %w", row[7], err)
	}
	t := Ticket{
		ID:          id,
		GeneratedAt: genAt,
		Game:        row[2],
		Numbers:     nums,
		TargetDraw:  target,
		Status:      Status(row[5]),
		Hits:        hits,
		Score:       score,
		Algorithm:   row[8],
		Note:        row[9],
	}
	if err := t.Validate(); err != nil {
		return Ticket{}, err
	}
	return t, nil
}

// ParseNumbers decodes a JSON integer array. The historical pipeline
// accepted half a dozen ad-hoc encodings here; this one rejects anything
// that is not a strict JSON array of integers.
func ParseNumbers(s string) ([]int, error) {
	var nums []int
	if err := json.Unmarshal([]byte(s), &nums); err != nil {
		return nil, fmt.Errorf("numbers %q: %w", s, err)
	}
	if len(nums) == 0 {
		return nil, fmt.Errorf("numbers %q: empty", s)
	}
	return nums, nil
}
