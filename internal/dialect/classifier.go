package dialect

import "failkit/internal/source"

// Classification is the result of scoring evidence for a unit.
type Classification struct {
	Framework       Framework
	Score           int
	TotalScore      int
	Confidence      float64
	RunnerUp        Framework
	RunnerUpScore   int
	ObservedSignals int
}

// Classifier scores evidence and chooses a dominant framework.
// It is intentionally simple; callers apply their own thresholds/policies.
type Classifier struct{}

func (Classifier) Classify(e *Evidence) Classification {
	if e == nil || len(e.hints) == 0 {
		return Classification{Framework: FrameworkUnknown}
	}

	var scores [frameworkCount]int
	total := 0
	observed := 0
	for _, h := range e.hints {
		observed++
		if h.Score <= 0 {
			continue
		}
		if h.Framework <= FrameworkUnknown || h.Framework >= frameworkCount {
			continue
		}
		scores[h.Framework] += h.Score
		total += h.Score
	}

	bestKind := FrameworkUnknown
	bestScore := 0
	runnerKind := FrameworkUnknown
	runnerScore := 0
	for k := FrameworkLangChain; k < frameworkCount; k++ {
		score := scores[k]
		if score > bestScore {
			runnerKind, runnerScore = bestKind, bestScore
			bestKind, bestScore = k, score
			continue
		}
		if score > runnerScore {
			runnerKind, runnerScore = k, score
		}
	}

	conf := 0.0
	if total > 0 {
		conf = float64(bestScore) / float64(total)
	}

	return Classification{
		Framework:       bestKind,
		Score:           bestScore,
		TotalScore:      total,
		Confidence:      conf,
		RunnerUp:        runnerKind,
		RunnerUpScore:   runnerScore,
		ObservedSignals: observed,
	}
}

// Detect collects import and construct evidence for the unit and classifies
// it in one call.
func Detect(u *source.Unit) Classification {
	e := NewEvidence()
	RecordImports(e, u)
	RecordConstructs(e, u)
	return Classifier{}.Classify(e)
}
