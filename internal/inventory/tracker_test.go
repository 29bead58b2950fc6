package inventory

import (
	"math"
	"testing"

	"github.com/quietridge/boxmaker/pkg/boxtypes"
)

func TestSkewClassification(t *testing.T) {
	tr := New(1.2, nil)

	tr.GetOrCreate("m1", "yes-1", "no-1")
	tr.RecordFill("m1", boxtypes.Fill{Outcome: boxtypes.OutcomeYes, Side: boxtypes.SideBuy, Price: 0.40, Size: 15})
	tr.RecordFill("m1", boxtypes.Fill{Outcome: boxtypes.OutcomeNo, Side: boxtypes.SideBuy, Price: 0.40, Size: 10})

	if got := tr.GetSkewRatio("m1"); math.Abs(got-1.5) > 1e-9 {
		t.Fatalf("skew ratio = %v, want 1.5", got)
	}
	if !tr.IsYesHeavy("m1") {
		t.Fatalf("expected yes-heavy")
	}
	yesAdj, noAdj := tr.AdjustmentDirection("m1")
	if yesAdj != -1 || noAdj != 1 {
		t.Fatalf("adjustment = (%d, %d), want (-1, 1)", yesAdj, noAdj)
	}

	tr2 := New(1.2, nil)
	tr2.GetOrCreate("m2", "yes-2", "no-2")
	tr2.RecordFill("m2", boxtypes.Fill{Outcome: boxtypes.OutcomeYes, Side: boxtypes.SideBuy, Price: 0.40, Size: 10})
	tr2.RecordFill("m2", boxtypes.Fill{Outcome: boxtypes.OutcomeNo, Side: boxtypes.SideBuy, Price: 0.40, Size: 15})

	if !tr2.IsNoHeavy("m2") {
		t.Fatalf("expected no-heavy")
	}
	yesAdj, noAdj = tr2.AdjustmentDirection("m2")
	if yesAdj != 1 || noAdj != -1 {
		t.Fatalf("adjustment = (%d, %d), want (1, -1)", yesAdj, noAdj)
	}

	tr3 := New(1.2, nil)
	tr3.GetOrCreate("m3", "yes-3", "no-3")
	tr3.RecordFill("m3", boxtypes.Fill{Outcome: boxtypes.OutcomeYes, Side: boxtypes.SideBuy, Price: 0.40, Size: 10})
	tr3.RecordFill("m3", boxtypes.Fill{Outcome: boxtypes.OutcomeNo, Side: boxtypes.SideBuy, Price: 0.40, Size: 10})
	yesAdj, noAdj = tr3.AdjustmentDirection("m3")
	if yesAdj != 0 || noAdj != 0 {
		t.Fatalf("adjustment = (%d, %d), want (0, 0)", yesAdj, noAdj)
	}
}

func TestRecordFillIgnoresUnknownMarketAndNonBuy(t *testing.T) {
	tr := New(1.2, nil)
	tr.RecordFill("missing", boxtypes.Fill{Outcome: boxtypes.OutcomeYes, Side: boxtypes.SideBuy, Price: 0.5, Size: 1})
	if tr.GetPosition("missing") != nil {
		t.Fatalf("expected no position to be created for an unknown market")
	}

	tr.GetOrCreate("m1", "yes-1", "no-1")
	tr.RecordFill("m1", boxtypes.Fill{Outcome: boxtypes.OutcomeYes, Side: boxtypes.SideSell, Price: 0.5, Size: 1})
	if tr.GetYesQuantity("m1") != 0 {
		t.Fatalf("expected SELL fill to be ignored")
	}
}

func TestExportAndLoadPositionsRoundTrip(t *testing.T) {
	tr := New(1.2, nil)
	tr.GetOrCreate("m1", "yes-1", "no-1")
	tr.RecordFill("m1", boxtypes.Fill{Outcome: boxtypes.OutcomeYes, Side: boxtypes.SideBuy, Price: 0.4, Size: 10})

	exported := tr.ExportPositions()

	tr2 := New(1.2, nil)
	tr2.LoadFromPositions(exported)
	if tr2.GetYesQuantity("m1") != 10 {
		t.Fatalf("GetYesQuantity() after load = %v, want 10", tr2.GetYesQuantity("m1"))
	}
}
