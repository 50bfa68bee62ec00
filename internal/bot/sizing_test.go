package bot

import "testing"

func TestZeroScoreBlocksOutright(t *testing.T) {
	got := ComputePositionSize(SizingConfig{ConfiguredAmountSol: 1}, 0)
	if !got.Blocked {
		t.Fatal("score 0 must block")
	}
	if got.FinalAmountSol != 0 {
		t.Errorf("blocked size = %v, want 0", got.FinalAmountSol)
	}
}

func TestMaxPositionClamp(t *testing.T) {
	got := ComputePositionSize(SizingConfig{ConfiguredAmountSol: 1, MaxPositionSol: 0.5}, 100)
	if got.Blocked {
		t.Fatal("top score must not block")
	}
	if got.FinalAmountSol > 0.5 {
		t.Errorf("size = %v, want <= 0.5", got.FinalAmountSol)
	}
}

func TestMinPositionClamp(t *testing.T) {
	got := ComputePositionSize(SizingConfig{ConfiguredAmountSol: 1, MinPositionSol: 0.2}, 20)
	if got.Blocked {
		t.Fatal("score 20 must not block")
	}
	if got.FinalAmountSol < 0.2 {
		t.Errorf("size = %v, want >= 0.2", got.FinalAmountSol)
	}
}

func TestMultiplierMonotonicInScore(t *testing.T) {
	prev := -1.0
	for _, score := range []int{1, 20, 40, 60, 80, 100} {
		got := ComputePositionSize(SizingConfig{ConfiguredAmountSol: 1}, score)
		if got.Blocked {
			t.Fatalf("score %d unexpectedly blocked", score)
		}
		if got.Multiplier < prev {
			t.Errorf("multiplier decreased to %v at score %d", got.Multiplier, score)
		}
		prev = got.Multiplier
	}
}

func TestFullConfidenceUsesFullAmount(t *testing.T) {
	got := ComputePositionSize(SizingConfig{ConfiguredAmountSol: 2}, 100)
	if got.FinalAmountSol != 2 || got.Multiplier != 1 {
		t.Errorf("got %+v, want full amount", got)
	}
}
