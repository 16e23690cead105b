package domain

import (
	"strconv"

	"github.com/cockroachdb/errors"
)

// AisleMarker may appear in a seat map's letter run to render a gap in the
// cabin layout. It is never a bookable column.
const AisleMarker = ' '

// SeatMap is the fixed cabin geometry for a deployment: rows 1..maxRow and
// an ordered run of column letters. Built once at startup, read-only after.
type SeatMap struct {
	maxRow   int
	letters  []rune
	bookable map[rune]struct{}
}

func NewSeatMap(maxRow int, letters string) (*SeatMap, error) {
	if maxRow <= 0 {
		return nil, errors.Newf("seat map: max row must be positive, got %d", maxRow)
	}
	m := &SeatMap{maxRow: maxRow, bookable: make(map[rune]struct{})}
	for _, r := range letters {
		m.letters = append(m.letters, r)
		if r != AisleMarker {
			m.bookable[r] = struct{}{}
		}
	}
	if len(m.bookable) == 0 {
		return nil, errors.New("seat map: no bookable letters")
	}
	return m, nil
}

func (m *SeatMap) MaxRow() int { return m.maxRow }

// IsValid reports whether seatID parses as <row><letter> with the row in
// 1..maxRow and the letter a bookable column. It is a total predicate:
// malformed input returns false, never an error.
func (m *SeatMap) IsValid(seatID string) bool {
	runes := []rune(seatID)
	if len(runes) < 2 {
		return false
	}
	letter := runes[len(runes)-1]
	if _, ok := m.bookable[letter]; !ok {
		return false
	}
	for _, r := range runes[:len(runes)-1] {
		if r < '0' || r > '9' {
			return false
		}
	}
	row, err := strconv.Atoi(string(runes[:len(runes)-1]))
	if err != nil {
		return false
	}
	return row >= 1 && row <= m.maxRow
}

// AllSeatIDs returns every bookable seat id in row-major, then letter order.
// The result is deterministic for a given geometry.
func (m *SeatMap) AllSeatIDs() []string {
	ids := make([]string, 0, m.maxRow*len(m.bookable))
	for row := 1; row <= m.maxRow; row++ {
		for _, letter := range m.letters {
			if letter == AisleMarker {
				continue
			}
			ids = append(ids, strconv.Itoa(row)+string(letter))
		}
	}
	return ids
}
