package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseDateRoundTrip(t *testing.T) {
	d, err := ParseDate("2023-05-10")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if d != (Date{Year: 2023, Month: time.May, Day: 10}) {
		t.Fatalf("unexpected date %+v", d)
	}
	if d.String() != "2023-05-10" {
		t.Fatalf("unexpected string %q", d.String())
	}
	if _, err := ParseDate("2023-13-01"); err == nil {
		t.Fatalf("expected invalid month to fail")
	}
}

func TestDateOrderingAndArithmetic(t *testing.T) {
	end := MustParseDate("2019-12-31")
	next := end.AddDays(1)
	if next != MustParseDate("2020-01-01") {
		t.Fatalf("expected year rollover, got %s", next)
	}
	if !end.Before(next) || !next.After(end) || end.Compare(end) != 0 {
		t.Fatalf("ordering mismatch between %s and %s", end, next)
	}
	if NewDate(2024, time.February, 30) != MustParseDate("2024-03-01") {
		t.Fatalf("expected NewDate to normalise overflow")
	}
}

func TestDateJSON(t *testing.T) {
	type wrapper struct {
		When Date `json:"when"`
	}
	data, err := json.Marshal(wrapper{When: MustParseDate("2021-07-04")})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"when":"2021-07-04"}` {
		t.Fatalf("unexpected json %s", data)
	}
	var decoded wrapper
	if err := json.Unmarshal([]byte(`{"when":null}`), &decoded); err != nil {
		t.Fatalf("unmarshal null: %v", err)
	}
	if !decoded.When.IsZero() {
		t.Fatalf("expected zero date from null")
	}
	if err := json.Unmarshal([]byte(`{"when":"bad"}`), &decoded); err == nil {
		t.Fatalf("expected malformed date to fail")
	}
}

func TestDateScanAndValue(t *testing.T) {
	cases := []struct {
		name string
		src  any
		want Date
	}{
		{"time", time.Date(2022, 3, 4, 0, 0, 0, 0, time.UTC), MustParseDate("2022-03-04")},
		{"string", "2022-03-04", MustParseDate("2022-03-04")},
		{"bytes", []byte("2022-03-04"), MustParseDate("2022-03-04")},
		{"timestamp", "2022-03-04T00:00:00Z", MustParseDate("2022-03-04")},
		{"nil", nil, Date{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var d Date
			if err := d.Scan(tc.src); err != nil {
				t.Fatalf("scan: %v", err)
			}
			if d != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, d)
			}
		})
	}
	var d Date
	if err := d.Scan(42); err == nil {
		t.Fatalf("expected unsupported type error")
	}
	v, err := MustParseDate("2022-03-04").Value()
	if err != nil || v != "2022-03-04" {
		t.Fatalf("unexpected value %v err %v", v, err)
	}
	if v, _ := (Date{}).Value(); v != nil {
		t.Fatalf("expected nil value for zero date")
	}
}

func TestDateValid(t *testing.T) {
	cases := []struct {
		d    Date
		want bool
	}{
		{MustParseDate("2024-02-29"), true},
		{Date{Year: 2023, Month: 2, Day: 30}, false},
		{Date{Year: 2023, Month: 13, Day: 1}, false},
		{Date{Year: 2023, Month: 4, Day: 0}, false},
		{Date{}, false},
		{NewDate(2023, 2, 30), true},
	}
	for _, tc := range cases {
		if got := tc.d.Valid(); got != tc.want {
			t.Fatalf("Valid(%+v)=%v want %v", tc.d, got, tc.want)
		}
	}
	if _, err := (Date{Year: 2023, Month: 2, Day: 30}).Value(); err == nil {
		t.Fatal("expected driver value error for non-calendar date")
	}
}
