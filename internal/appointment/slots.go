package appointment

import "fmt"

// SlotPolicy describes the clinic day that availability is computed against.
type SlotPolicy struct {
	Open  ClockTime
	Close ClockTime
	Width int // minutes

	// CancelledBlocks keeps cancelled appointments occupying their window,
	// both for availability and for booking conflicts.
	CancelledBlocks bool
}

func DefaultSlotPolicy() SlotPolicy {
	return SlotPolicy{
		Open:            9 * 60,
		Close:           17 * 60,
		Width:           30,
		CancelledBlocks: true,
	}
}

// NewSlotPolicy builds a policy from configuration values.
func NewSlotPolicy(openAt, closeAt string, width int, cancelledBlocks bool) (SlotPolicy, error) {
	o, err := ParseClock(openAt)
	if err != nil {
		return SlotPolicy{}, fmt.Errorf("clinic open: %w", err)
	}
	c, err := ParseClock(closeAt)
	if err != nil {
		return SlotPolicy{}, fmt.Errorf("clinic close: %w", err)
	}
	if c <= o {
		return SlotPolicy{}, fmt.Errorf("%w: clinic closes at %s before opening at %s", ErrInvalidInput, c, o)
	}
	if width <= 0 {
		return SlotPolicy{}, fmt.Errorf("%w: slot width %d", ErrInvalidInput, width)
	}
	return SlotPolicy{Open: o, Close: c, Width: width, CancelledBlocks: cancelledBlocks}, nil
}

// Blocks reports whether a occupies its window under this policy.
func (p SlotPolicy) Blocks(a Appointment) bool {
	return p.CancelledBlocks || a.Status != StatusCancelled
}

type Slot struct {
	Interval
	Available bool
}

func (s Slot) Label() string {
	return s.Start.String()
}

// Slots walks the clinic day in Width steps and tags each step booked when
// it intersects a blocking appointment. A trailing step that would run past
// Close is not offered.
func (p SlotPolicy) Slots(existing []Appointment) []Slot {
	var out []Slot
	width := ClockTime(p.Width)
	for cur := p.Open; cur+width <= p.Close; cur += width {
		slot := Slot{Interval: Interval{Start: cur, End: cur + width}, Available: true}
		for _, a := range existing {
			if p.Blocks(a) && slot.Overlaps(a.Interval()) {
				slot.Available = false
				break
			}
		}
		out = append(out, slot)
	}
	return out
}

// Conflict returns the first blocking appointment in existing that overlaps
// candidate, skipping candidate itself.
func (p SlotPolicy) Conflict(candidate Appointment, existing []Appointment) (*Appointment, bool) {
	if !p.Blocks(candidate) {
		return nil, false
	}
	window := candidate.Interval()
	for i := range existing {
		e := existing[i]
		if e.ID == candidate.ID || !p.Blocks(e) {
			continue
		}
		if window.Overlaps(e.Interval()) {
			return &e, true
		}
	}
	return nil, false
}
