package replay

import (
	"fmt"
	"math"

	"github.com/danielpatrickdp/qconcept/internal/concept"
	"github.com/danielpatrickdp/qconcept/internal/eval"
	"github.com/danielpatrickdp/qconcept/internal/layout"
	"github.com/danielpatrickdp/qconcept/internal/model"
)

const defaultTolerance = 1e-9

// #region types
// CaseResult captures the outcome of replaying one fixture case.
type CaseResult struct {
	Name          string
	Passed        bool
	Reason        string
	MaxDiff       float64
	Probabilities *layout.Tensor

	// Eval is nil when the case declares neither targets nor labels.
	Eval *eval.EvalResult
}

// ReplaySummary provides aggregate stats from a replay run.
type ReplaySummary struct {
	Kind       concept.Kind
	TotalCases int
	Passed     int
	Failed     int
	EvalFailed int
	MeanAcc    float64
	MeanLoss   float64

	// MeanIndexAcc averages per-concept-domain index accuracy over the
	// labelled product cases.
	MeanIndexAcc []float64

	evaluations int
	indexed     int
}

// #endregion types

// #region replay
// Replay evaluates every case of the fixture against its model:
// forward → compare with expected → score against targets.
// Configuration and shape errors abort the run.
func Replay(f *Fixture) ([]CaseResult, ReplaySummary, error) {
	cfg, err := f.ToConfig()
	if err != nil {
		return nil, ReplaySummary{}, fmt.Errorf("config: %w", err)
	}
	m, err := f.ToModel(cfg)
	if err != nil {
		return nil, ReplaySummary{}, fmt.Errorf("model: %w", err)
	}
	return ReplayModel(m, f.Cases, eval.NewEvalHarness(f.ToEvalConfig()))
}

// ReplayModel runs cases against an already built model.
func ReplayModel(m *model.Model, cases []FixtureCase, harness *eval.EvalHarness) ([]CaseResult, ReplaySummary, error) {
	results := make([]CaseResult, 0, len(cases))
	for i := range cases {
		c := &cases[i]
		batch, err := c.ToBatch()
		if err != nil {
			return nil, ReplaySummary{}, err
		}
		probs, err := m.Forward(batch, c.Indices)
		if err != nil {
			return nil, ReplaySummary{}, fmt.Errorf("case %q: %w", c.Name, err)
		}

		res := CaseResult{Name: c.Name, Passed: true, Reason: "matched", Probabilities: probs}

		// 1. Expected probabilities
		if c.Expected != nil {
			want, err := layout.FromRows(c.Expected)
			if err != nil {
				return nil, ReplaySummary{}, fmt.Errorf("case %q expected: %w", c.Name, err)
			}
			if err := layout.ExpectShape("expected", want, probs.Shape()...); err != nil {
				return nil, ReplaySummary{}, fmt.Errorf("case %q: %w", c.Name, err)
			}
			tol := c.Tolerance
			if tol == 0 {
				tol = defaultTolerance
			}
			got, exp := probs.Data(), want.Data()
			for j := range got {
				res.MaxDiff = math.Max(res.MaxDiff, math.Abs(got[j]-exp[j]))
			}
			if res.MaxDiff > tol {
				res.Passed = false
				res.Reason = fmt.Sprintf("max diff %.3g exceeds tolerance %.3g", res.MaxDiff, tol)
			}
		}

		// 2. Labels or targets
		if c.Labels != nil {
			er, err := scoreLabels(m, harness, c, batch, probs)
			if err != nil {
				return nil, ReplaySummary{}, fmt.Errorf("case %q: %w", c.Name, err)
			}
			res.Eval = &er
			if !er.Passed && res.Passed {
				res.Passed = false
				res.Reason = er.Reason
			}
		} else if c.Targets != nil {
			targets, err := layout.FromRows(c.Targets)
			if err != nil {
				return nil, ReplaySummary{}, fmt.Errorf("case %q targets: %w", c.Name, err)
			}
			er, err := harness.Run(probs, targets)
			if err != nil {
				return nil, ReplaySummary{}, fmt.Errorf("case %q: %w", c.Name, err)
			}
			res.Eval = &er
			if !er.Passed && res.Passed {
				res.Passed = false
				res.Reason = er.Reason
			}
		}

		results = append(results, res)
	}
	return results, Summarize(m.Config().Kind(), results), nil
}

// Summarize computes aggregate stats from replay results.
func Summarize(kind concept.Kind, results []CaseResult) ReplaySummary {
	s := ReplaySummary{Kind: kind, TotalCases: len(results)}
	for _, r := range results {
		if r.Passed {
			s.Passed++
		} else {
			s.Failed++
		}
		if r.Eval != nil {
			s.evaluations++
			s.MeanAcc += r.Eval.Accuracy
			s.MeanLoss += r.Eval.Loss
			if !r.Eval.Passed {
				s.EvalFailed++
			}
			if acc := r.Eval.IndexAccuracy; acc != nil {
				if s.MeanIndexAcc == nil {
					s.MeanIndexAcc = make([]float64, len(acc))
				}
				for j := range s.MeanIndexAcc {
					s.MeanIndexAcc[j] += acc[j]
				}
				s.indexed++
			}
		}
	}
	if s.evaluations > 0 {
		s.MeanAcc /= float64(s.evaluations)
		s.MeanLoss /= float64(s.evaluations)
	}
	for j := range s.MeanIndexAcc {
		s.MeanIndexAcc[j] /= float64(s.indexed)
	}
	return s
}

// Aggregate folds the summary into one eval result for gating, or nil
// when no case declared targets.
func (s ReplaySummary) Aggregate() *eval.EvalResult {
	if s.evaluations == 0 {
		return nil
	}
	res := &eval.EvalResult{
		Passed:   s.Failed == 0,
		Accuracy: s.MeanAcc,
		Loss:     s.MeanLoss,
		Reason:   "all cases passed",
	}
	if s.MeanIndexAcc != nil {
		res.IndexAccuracy = append([]float64(nil), s.MeanIndexAcc...)
	}
	if s.Failed > 0 {
		res.Reason = fmt.Sprintf("%d of %d cases failed", s.Failed, s.TotalCases)
	}
	return res
}

// scoreLabels reduces a product case to one label per instance and scores
// index recovery on the instances labelled 1.
func scoreLabels(m *model.Model, harness *eval.EvalHarness, c *FixtureCase, batch, probs *layout.Tensor) (eval.EvalResult, error) {
	cfg := m.Config()
	if cfg.Kind() != concept.KindProduct {
		return eval.EvalResult{}, fmt.Errorf("labels need a product concept, got %v: %w", cfg.Kind(), concept.ErrConfig)
	}
	b := batch.Dim(0)
	if len(c.Labels) != b {
		return eval.EvalResult{}, fmt.Errorf("%d labels for %d instances: %w", len(c.Labels), b, concept.ErrShape)
	}
	label, err := model.ProductLabel(probs)
	if err != nil {
		return eval.EvalResult{}, err
	}
	targets, err := layout.FromData(c.Labels, b, 1)
	if err != nil {
		return eval.EvalResult{}, err
	}

	var positives []int
	for i, l := range c.Labels {
		if l == 1 {
			positives = append(positives, i)
		}
	}
	var indexAcc []float64
	if len(positives) > 0 {
		d := batch.Dim(1)
		sub := layout.New(len(positives), d, layout.Weights)
		rows := make([][]int, len(positives))
		for k, i := range positives {
			for j := 0; j < d; j++ {
				for w := 0; w < layout.Weights; w++ {
					sub.Set(batch.At(i, j, w), k, j, w)
				}
			}
			if rows[k], err = cfg.AddOffset(c.Indices[i]); err != nil {
				return eval.EvalResult{}, fmt.Errorf("batch item %d: %w", i, err)
			}
		}
		if indexAcc, err = m.IndexAccuracy(sub, rows); err != nil {
			return eval.EvalResult{}, err
		}
	}
	return harness.RunProduct(label, targets, indexAcc)
}

// #endregion replay
