package engine

import (
	"reflect"
	"testing"
)

type report struct {
	phase Phase
	pct   int
}

func TestProgressMonotonicPerPhase(t *testing.T) {
	var got []report
	p := newProgress(func(phase Phase, pct int) {
		got = append(got, report{phase, pct})
	})

	p.set(PhaseDownloading, 40)
	p.set(PhaseDownloading, 20) // regression, dropped
	p.set(PhaseDownloading, 90)
	p.set(PhaseTranslating, 10) // new phase resets the floor
	p.set(PhaseTranslating, -5) // clamped then dropped below floor
	p.finish(PhaseTranslating)

	want := []report{
		{PhaseDownloading, 40},
		{PhaseDownloading, 90},
		{PhaseTranslating, 10},
		{PhaseTranslating, 100},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("reports = %v, want %v", got, want)
	}
}

func TestProgressNilSafe(t *testing.T) {
	var p *progress
	p.set(PhaseTranslating, 50) // must not panic

	np := newProgress(nil)
	np.set(PhaseTranslating, 50)
	np.finish(PhaseTranslating)
}
