package reducer

import (
	"reflect"
	"testing"
	"time"

	"SectorCycles/internal/model"
)

func day(s string) time.Time {
	t, err := model.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

func series(start string, closes ...float64) model.RawSeries {
	d := day(start)
	out := make(model.RawSeries, len(closes))
	for i, c := range closes {
		out[i] = model.OHLCV{Time: d.AddDate(0, 0, i), Close: c + 1, AdjClose: c}
	}
	return out
}

var p1 = model.Period{Name: "p1", Start: day("2020-01-01"), End: day("2020-01-05")}

func TestReduce_OneSuccessOneFailure(t *testing.T) {
	result := model.FetchResult{"p1": {"A": series("2020-01-01", 10, 11, 12)}}

	table := Reduce(result, []string{"A", "B"}, []model.Period{p1})

	frame, ok := table["p1"]
	if !ok {
		t.Fatal("expected frame for p1")
	}
	if got := frame.Tickers(); !reflect.DeepEqual(got, []string{"A"}) {
		t.Fatalf("columns = %v, want [A]", got)
	}
	if len(frame.Dates) != 3 {
		t.Fatalf("rows = %d, want 3", len(frame.Dates))
	}
	col, _ := frame.Column("A")
	for i, want := range []float64{10, 11, 12} {
		v, ok := col.At(i)
		if !ok || v != want {
			t.Errorf("row %d: got (%v, %v), want %v", i, v, ok, want)
		}
	}
}

func TestReduce_AllFailedHasEmptyFrame(t *testing.T) {
	result := model.FetchResult{"p1": {}}
	table := Reduce(result, []string{"A", "B"}, []model.Period{p1})

	frame, ok := table["p1"]
	if !ok {
		t.Fatal("every configured period must have a frame")
	}
	if len(frame.Columns) != 0 {
		t.Errorf("expected zero columns, got %v", frame.Tickers())
	}
	if len(frame.Dates) != 0 {
		t.Errorf("expected zero rows, got %d", len(frame.Dates))
	}
}

func TestReduce_PeriodMissingFromResult(t *testing.T) {
	table := Reduce(model.FetchResult{}, []string{"A"}, []model.Period{p1})
	if _, ok := table["p1"]; !ok {
		t.Fatal("expected frame for p1 even when result lacks it")
	}
}

func TestReduce_OuterJoinOnDate(t *testing.T) {
	// B lists two days later and skips 2020-01-04.
	b := series("2020-01-03", 50, 51, 52)
	b = append(b[:1], b[2:]...)
	result := model.FetchResult{"p1": {
		"A": series("2020-01-01", 10, 11, 12, 13),
		"B": b,
	}}

	frame := Reduce(result, []string{"A", "B"}, []model.Period{p1})["p1"]

	wantDates := []time.Time{day("2020-01-01"), day("2020-01-02"), day("2020-01-03"), day("2020-01-04"), day("2020-01-05")}
	if !reflect.DeepEqual(frame.Dates, wantDates) {
		t.Fatalf("dates = %v, want %v", frame.Dates, wantDates)
	}
	colB, _ := frame.Column("B")
	wantValid := []bool{false, false, true, false, true}
	if !reflect.DeepEqual(colB.Valid, wantValid) {
		t.Errorf("B valid = %v, want %v", colB.Valid, wantValid)
	}
	colA, _ := frame.Column("A")
	if _, ok := colA.At(4); ok {
		t.Error("A has no row on 2020-01-05")
	}
	if v, ok := colB.Last(); !ok || v != 52 {
		t.Errorf("B last = (%v, %v), want 52", v, ok)
	}
}

func TestReduce_ColumnOrderFollowsTickers(t *testing.T) {
	result := model.FetchResult{"p1": {
		"Z": series("2020-01-01", 1),
		"A": series("2020-01-01", 2),
		"M": series("2020-01-01", 3),
	}}
	frame := Reduce(result, []string{"M", "A", "Z"}, []model.Period{p1})["p1"]
	if got := frame.Tickers(); !reflect.DeepEqual(got, []string{"M", "A", "Z"}) {
		t.Errorf("columns = %v, want [M A Z]", got)
	}
}

func TestReduce_TwoPeriodsIndependent(t *testing.T) {
	p2 := model.Period{Name: "p2", Start: day("2021-01-01"), End: day("2021-01-03")}
	result := model.FetchResult{
		"p1": {"A": series("2020-01-01", 10, 11, 12)},
		"p2": {"A": series("2021-01-01", 20, 21)},
	}

	table := Reduce(result, []string{"A"}, []model.Period{p1, p2})

	if len(table) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(table))
	}
	if n := len(table["p1"].Dates); n != 3 {
		t.Errorf("p1 rows = %d, want 3", n)
	}
	if n := len(table["p2"].Dates); n != 2 {
		t.Errorf("p2 rows = %d, want 2", n)
	}
	for _, d := range table["p2"].Dates {
		if !p2.Contains(d) {
			t.Errorf("p2 frame has row %s from another period", d.Format(model.DateLayout))
		}
	}
}

func TestReduce_Deterministic(t *testing.T) {
	result := model.FetchResult{"p1": {
		"A": series("2020-01-01", 10, 11, 12),
		"B": series("2020-01-02", 5, 6),
		"C": series("2020-01-03", 7),
	}}
	tickers := []string{"A", "B", "C"}

	first := Reduce(result, tickers, []model.Period{p1})
	for i := 0; i < 10; i++ {
		if again := Reduce(result, tickers, []model.Period{p1}); !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d differs from first run", i)
		}
	}
}
