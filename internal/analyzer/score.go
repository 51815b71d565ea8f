package analyzer

// Penalty caps. Each class of issue can only drag the score down so far,
// so a page with hundreds of notices still scores above a page with a
// handful of hard errors.
const (
	errorPenaltyPerIssue   = 10
	warningPenaltyPerIssue = 3
	noticePenaltyPerIssue  = 1

	errorPenaltyCap   = 60
	warningPenaltyCap = 25
	noticePenaltyCap  = 15
)

// Breakdown itemizes how the score was computed.
type Breakdown struct {
	ErrorPenalty   int `json:"errorPenalty"`
	WarningPenalty int `json:"warningPenalty"`
	NoticePenalty  int `json:"noticePenalty"`
	TotalPenalty   int `json:"totalPenalty"`
}

// ScoreResult is the full scoring output for one audit.
type ScoreResult struct {
	Score      int       `json:"score"`
	Grade      string    `json:"grade"`
	GradeColor string    `json:"gradeColor"`
	Breakdown  Breakdown `json:"breakdown"`
	Assessment string    `json:"assessment"`
}

// Score converts raw issue counts into a 0-100 score, letter grade, and
// qualitative assessment. Pure function, total: never fails.
func Score(c Counts) ScoreResult {
	b := Breakdown{
		ErrorPenalty:   capped(c.Errors*errorPenaltyPerIssue, errorPenaltyCap),
		WarningPenalty: capped(c.Warnings*warningPenaltyPerIssue, warningPenaltyCap),
		NoticePenalty:  capped(c.Notices*noticePenaltyPerIssue, noticePenaltyCap),
	}
	b.TotalPenalty = b.ErrorPenalty + b.WarningPenalty + b.NoticePenalty

	score := 100 - b.TotalPenalty
	if score < 0 {
		score = 0
	}

	grade, color := gradeFor(score)
	return ScoreResult{
		Score:      score,
		Grade:      grade,
		GradeColor: color,
		Breakdown:  b,
		Assessment: assessmentFor(score),
	}
}

func capped(penalty, limit int) int {
	if penalty > limit {
		return limit
	}
	return penalty
}

// gradeFor maps a score to a letter grade and the display color the
// widget renders it in.
func gradeFor(score int) (string, string) {
	switch {
	case score >= 95:
		return "A+", "#0d8a3e"
	case score >= 90:
		return "A", "#4caf50"
	case score >= 80:
		return "B", "#8bc34a"
	case score >= 70:
		return "C", "#ffc107"
	case score >= 60:
		return "D", "#ff9800"
	default:
		return "F", "#f44336"
	}
}

func assessmentFor(score int) string {
	switch {
	case score >= 90:
		return "Excellent. This page follows accessibility best practices."
	case score >= 80:
		return "Good. A few issues remain, but the page is broadly accessible."
	case score >= 70:
		return "Fair. Several accessibility issues need attention."
	case score >= 60:
		return "Poor. Accessibility problems will block some users."
	case score >= 40:
		return "Bad. Significant barriers exist for users with disabilities."
	default:
		return "Critical. This page is largely inaccessible and needs urgent work."
	}
}
