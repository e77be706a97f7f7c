package grading

import (
	"math"
	"strings"

	"github.com/noah-isme/nilai-go-api/internal/notebook"
)

// Canonical strategy names. Criterion names resolve onto these after
// normalization, so "Code Correctness" and "correctness" reach the same
// scorer.
const (
	StrategyCorrectness   = "correctness"
	StrategyQuality       = "quality"
	StrategyDocumentation = "documentation"
	StrategyCompleteness  = "completeness"
	StrategyCreativity    = "creativity"
)

// criterionAliases maps the normalized display names used on report cards
// onto canonical strategies.
var criterionAliases = map[string]string{
	"code correctness":         StrategyCorrectness,
	"code quality":             StrategyQuality,
	"documentation & comments": StrategyDocumentation,
	"creativity & insight":     StrategyCreativity,
}

// Engine grades normalized notebooks against weighted criteria. Construct
// with NewEngine; the zero value has no strategies registered. All built-in
// scorers are stateless, so one Engine may be shared across grading workers.
type Engine struct {
	heuristics Heuristics
	registry   map[string]Scorer
	fallback   Scorer
}

// NewEngine builds an engine with the five built-in strategies registered.
func NewEngine(h Heuristics) *Engine {
	e := &Engine{
		heuristics: h,
		registry:   make(map[string]Scorer),
		fallback:   partialCreditScorer{h: h},
	}
	e.Register(StrategyCorrectness, correctnessScorer{h: h})
	e.Register(StrategyQuality, qualityScorer{h: h})
	e.Register(StrategyDocumentation, documentationScorer{h: h})
	e.Register(StrategyCompleteness, completenessScorer{h: h})
	e.Register(StrategyCreativity, creativityScorer{h: h})
	return e
}

// Register binds a scorer to a criterion name. Registration is not safe to
// call concurrently with Grade; wire custom scorers during startup.
func (e *Engine) Register(name string, scorer Scorer) {
	e.registry[normalizeCriterionName(name)] = scorer
}

func (e *Engine) scorerFor(name string) Scorer {
	key := normalizeCriterionName(name)
	if s, ok := e.registry[key]; ok {
		return s
	}
	if alias, ok := criterionAliases[key]; ok {
		if s, ok := e.registry[alias]; ok {
			return s
		}
	}
	return e.fallback
}

// Grade evaluates one notebook against the given criteria. It never fails:
// any parsed document, including an empty one, produces a Result. Criteria
// without a registered strategy receive partial credit and a comment asking
// for manual review.
func (e *Engine) Grade(doc *notebook.Document, criteria []Criterion) Result {
	scores := make([]CriterionScore, 0, len(criteria))
	var total, maxPossible float64
	for _, criterion := range criteria {
		score := e.scorerFor(criterion.Name).Score(doc, criterion)
		scores = append(scores, score)
		total += score.PointsAwarded
		maxPossible += criterion.MaxPoints
	}

	var percentage float64
	if maxPossible > 0 {
		percentage = round2(total / maxPossible * 100)
	}
	letter := LetterGrade(percentage)

	stats := analyzeDocument(doc, e.heuristics)
	strengths, improvements := summaryFeedback(stats, e.heuristics)

	return Result{
		StudentIdentifier: notebook.StudentName(doc.SourceFileName),
		FileName:          doc.SourceFileName,
		Scores:            scores,
		TotalPoints:       round2(total),
		MaxPossible:       round2(maxPossible),
		Percentage:        percentage,
		LetterGrade:       letter,
		Feedback:          overallFeedback(percentage, letter, scores),
		Strengths:         strengths,
		Improvements:      improvements,
	}
}

func normalizeCriterionName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
