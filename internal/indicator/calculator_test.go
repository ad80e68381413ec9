package indicator

import (
	"math"
	"testing"
)

func TestSMA_WarmupAndValues(t *testing.T) {
	close := []float64{1, 2, 3, 4, 5, 6}
	out, err := SMA(close, 3)
	if err != nil {
		t.Fatalf("SMA returned error: %v", err)
	}
	if len(out) != len(close) {
		t.Fatalf("output length mismatch: got %d want %d", len(out), len(close))
	}

	for i := 0; i < 2; i++ {
		if !math.IsNaN(out[i]) {
			t.Errorf("expected NaN at warmup index %d, got %v", i, out[i])
		}
	}
	want := []float64{2, 3, 4, 5}
	for i, w := range want {
		if diff := math.Abs(out[i+2] - w); diff > 1e-9 {
			t.Errorf("sma[%d]: got %v want %v", i+2, out[i+2], w)
		}
	}
}

func TestEMA_WarmupPrefix(t *testing.T) {
	close := make([]float64, 30)
	for i := range close {
		close[i] = float64(100 + i)
	}
	out, err := EMA(close, 10)
	if err != nil {
		t.Fatalf("EMA returned error: %v", err)
	}

	for i := 0; i < 9; i++ {
		if !math.IsNaN(out[i]) {
			t.Errorf("expected NaN at warmup index %d, got %v", i, out[i])
		}
	}
	for i := 9; i < len(out); i++ {
		if math.IsNaN(out[i]) {
			t.Errorf("expected defined value at index %d", i)
		}
	}
}

func TestRSI_WarmupAndBounds(t *testing.T) {
	close := make([]float64, 60)
	for i := range close {
		close[i] = 100 + 10*math.Sin(float64(i)/3)
	}
	out, err := RSI(close, 14)
	if err != nil {
		t.Fatalf("RSI returned error: %v", err)
	}

	for i := 0; i < 14; i++ {
		if !math.IsNaN(out[i]) {
			t.Errorf("expected NaN at warmup index %d, got %v", i, out[i])
		}
	}
	for i := 14; i < len(out); i++ {
		if math.IsNaN(out[i]) {
			t.Fatalf("expected defined value at index %d", i)
		}
		if out[i] < 0 || out[i] > 100 {
			t.Errorf("rsi[%d] out of [0,100]: %v", i, out[i])
		}
	}
}

func TestMomentum(t *testing.T) {
	close := []float64{100, 100, 100, 110, 121}
	out, err := Momentum(close, 3)
	if err != nil {
		t.Fatalf("Momentum returned error: %v", err)
	}

	for i := 0; i < 3; i++ {
		if !math.IsNaN(out[i]) {
			t.Errorf("expected NaN at index %d, got %v", i, out[i])
		}
	}
	if diff := math.Abs(out[3] - 0.10); diff > 1e-9 {
		t.Errorf("momentum[3]: got %v want 0.10", out[3])
	}
	if diff := math.Abs(out[4] - 0.21); diff > 1e-9 {
		t.Errorf("momentum[4]: got %v want 0.21", out[4])
	}
}

func TestDeviation(t *testing.T) {
	close := []float64{10, 10, 10, 10, 12}
	out, err := Deviation(close, 4)
	if err != nil {
		t.Fatalf("Deviation returned error: %v", err)
	}

	for i := 0; i < 3; i++ {
		if !math.IsNaN(out[i]) {
			t.Errorf("expected NaN at index %d, got %v", i, out[i])
		}
	}
	if diff := math.Abs(out[3] - 0); diff > 1e-9 {
		t.Errorf("deviation[3]: got %v want 0", out[3])
	}
	// sma(10,10,10,12)=10.5, (12-10.5)/10.5
	want := (12 - 10.5) / 10.5
	if diff := math.Abs(out[4] - want); diff > 1e-9 {
		t.Errorf("deviation[4]: got %v want %v", out[4], want)
	}
}

func TestBollinger_WarmupAndOrdering(t *testing.T) {
	close := make([]float64, 40)
	for i := range close {
		close[i] = 100 + 5*math.Sin(float64(i)/2)
	}
	upper, middle, lower, err := Bollinger(close, 20, 2)
	if err != nil {
		t.Fatalf("Bollinger returned error: %v", err)
	}

	for i := 0; i < 19; i++ {
		if !math.IsNaN(upper[i]) || !math.IsNaN(middle[i]) || !math.IsNaN(lower[i]) {
			t.Errorf("expected NaN bands at warmup index %d", i)
		}
	}
	for i := 19; i < len(close); i++ {
		if !(lower[i] <= middle[i] && middle[i] <= upper[i]) {
			t.Errorf("band ordering violated at %d: lower=%v middle=%v upper=%v",
				i, lower[i], middle[i], upper[i])
		}
	}
}

func TestRollingMinMax(t *testing.T) {
	values := []float64{5, 3, 8, 1, 9, 2}
	min, err := RollingMin(values, 3)
	if err != nil {
		t.Fatalf("RollingMin returned error: %v", err)
	}
	max, err := RollingMax(values, 3)
	if err != nil {
		t.Fatalf("RollingMax returned error: %v", err)
	}

	wantMin := []float64{3, 1, 1, 1}
	wantMax := []float64{8, 8, 9, 9}
	for i := 0; i < 2; i++ {
		if !math.IsNaN(min[i]) || !math.IsNaN(max[i]) {
			t.Errorf("expected NaN at warmup index %d", i)
		}
	}
	for i := range wantMin {
		if min[i+2] != wantMin[i] {
			t.Errorf("min[%d]: got %v want %v", i+2, min[i+2], wantMin[i])
		}
		if max[i+2] != wantMax[i] {
			t.Errorf("max[%d]: got %v want %v", i+2, max[i+2], wantMax[i])
		}
	}
}

func TestInvalidPeriods(t *testing.T) {
	if _, err := SMA([]float64{1, 2}, 0); err == nil {
		t.Errorf("expected error for sma period 0")
	}
	if _, err := RSI([]float64{1, 2}, -1); err == nil {
		t.Errorf("expected error for rsi period -1")
	}
	if _, err := Momentum([]float64{1, 2}, 0); err == nil {
		t.Errorf("expected error for momentum lookback 0")
	}
}
