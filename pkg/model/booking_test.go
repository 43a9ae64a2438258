package model

import (
	"testing"
	"time"
)

func mkBooking(start, end string) *Booking {
	day := "2030-05-01T"
	s, _ := time.Parse(time.RFC3339, day+start+":00Z")
	e, _ := time.Parse(time.RFC3339, day+end+":00Z")
	return &Booking{StartDate: s, EndDate: e}
}

func TestOverlaps(t *testing.T) {
	cases := []struct {
		name     string
		a, b     *Booking
		overlaps bool
	}{
		{"identical", mkBooking("09:00", "10:00"), mkBooking("09:00", "10:00"), true},
		{"partial tail", mkBooking("09:00", "10:00"), mkBooking("09:30", "10:30"), true},
		{"partial head", mkBooking("09:30", "10:30"), mkBooking("09:00", "10:00"), true},
		{"contained", mkBooking("09:00", "11:00"), mkBooking("09:30", "10:00"), true},
		{"touching end", mkBooking("09:00", "10:00"), mkBooking("10:00", "11:00"), false},
		{"touching start", mkBooking("10:00", "11:00"), mkBooking("09:00", "10:00"), false},
		{"disjoint", mkBooking("08:00", "09:00"), mkBooking("10:00", "11:00"), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.a.Overlaps(tc.b); got != tc.overlaps {
				t.Errorf("Overlaps(%v-%v, %v-%v) = %v, want %v",
					tc.a.StartDate, tc.a.EndDate, tc.b.StartDate, tc.b.EndDate, got, tc.overlaps)
			}
			// overlap is symmetric
			if got := tc.b.Overlaps(tc.a); got != tc.overlaps {
				t.Errorf("Overlaps is not symmetric for case %q", tc.name)
			}
		})
	}
}

func TestCorrelation(t *testing.T) {
	booked := time.Date(2030, 5, 1, 8, 0, 0, 0, time.UTC)
	private := &Booking{ID: "aaa", EquipmentID: "eq1", UserID: "u1", BookedAt: booked}
	public := &Booking{ID: "bbb", EquipmentID: "eq1", UserID: "u1", BookedAt: booked}

	if private.Correlation() != public.Correlation() {
		t.Error("copies of the same logical booking must share a correlation key")
	}

	other := &Booking{ID: "ccc", EquipmentID: "eq1", UserID: "u1", BookedAt: booked.Add(time.Second)}
	if private.Correlation() == other.Correlation() {
		t.Error("bookings created at different times must not correlate")
	}
}
