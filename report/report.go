// Package report defines the structured life k-line report and its
// conversion from a parsed model document.
package report

// Placeholder values used when the model omits a field.
const (
	DefaultScore       = 5
	DefaultSummary     = "无摘要"
	DefaultPersonality = "无性格分析"
	DefaultNarrative   = "无"
	DefaultFengShui    = "建议多亲近自然，保持心境平和。"
	DefaultCrypto      = "暂无交易分析"
	DefaultCryptoYear  = "待定"
	DefaultCryptoStyle = "现货定投"
)

// KLinePoint is one year of the life chart, drawn as a candlestick.
type KLinePoint struct {
	// Age is the nominal (xusui) age.
	Age  int `json:"age" yaml:"age"`
	Year int `json:"year" yaml:"year"`
	// GanZhi is the stem-branch of the year.
	GanZhi string `json:"ganZhi" yaml:"ganZhi"`
	// DaYun is the ten-year luck pillar in effect, if the model gave one.
	DaYun  string  `json:"daYun,omitempty" yaml:"daYun,omitempty"`
	Open   float64 `json:"open" yaml:"open"`
	Close  float64 `json:"close" yaml:"close"`
	High   float64 `json:"high" yaml:"high"`
	Low    float64 `json:"low" yaml:"low"`
	Score  float64 `json:"score" yaml:"score"`
	Reason string  `json:"reason" yaml:"reason"`
}

// Analysis holds the scored narrative sections.
type Analysis struct {
	Bazi []string `json:"bazi" yaml:"bazi"`

	Summary      string  `json:"summary" yaml:"summary"`
	SummaryScore float64 `json:"summaryScore" yaml:"summaryScore"`

	Personality      string  `json:"personality" yaml:"personality"`
	PersonalityScore float64 `json:"personalityScore" yaml:"personalityScore"`

	Industry      string  `json:"industry" yaml:"industry"`
	IndustryScore float64 `json:"industryScore" yaml:"industryScore"`

	FengShui      string  `json:"fengShui" yaml:"fengShui"`
	FengShuiScore float64 `json:"fengShuiScore" yaml:"fengShuiScore"`

	Wealth      string  `json:"wealth" yaml:"wealth"`
	WealthScore float64 `json:"wealthScore" yaml:"wealthScore"`

	Marriage      string  `json:"marriage" yaml:"marriage"`
	MarriageScore float64 `json:"marriageScore" yaml:"marriageScore"`

	Health      string  `json:"health" yaml:"health"`
	HealthScore float64 `json:"healthScore" yaml:"healthScore"`

	Family      string  `json:"family" yaml:"family"`
	FamilyScore float64 `json:"familyScore" yaml:"familyScore"`

	Crypto      string  `json:"crypto" yaml:"crypto"`
	CryptoScore float64 `json:"cryptoScore" yaml:"cryptoScore"`
	CryptoYear  string  `json:"cryptoYear" yaml:"cryptoYear"`
	CryptoStyle string  `json:"cryptoStyle" yaml:"cryptoStyle"`
}

// Report is the final structured result of one generation.
type Report struct {
	ChartData []KLinePoint `json:"chartData" yaml:"chartData"`
	Analysis  Analysis     `json:"analysis" yaml:"analysis"`
}

// Section is a named narrative with its score, for display.
type Section struct {
	Name  string
	Text  string
	Score float64
}

// Sections returns the scored sections in display order.
func (a *Analysis) Sections() []Section {
	return []Section{
		{"summary", a.Summary, a.SummaryScore},
		{"personality", a.Personality, a.PersonalityScore},
		{"industry", a.Industry, a.IndustryScore},
		{"fengShui", a.FengShui, a.FengShuiScore},
		{"wealth", a.Wealth, a.WealthScore},
		{"marriage", a.Marriage, a.MarriageScore},
		{"health", a.Health, a.HealthScore},
		{"family", a.Family, a.FamilyScore},
		{"crypto", a.Crypto, a.CryptoScore},
	}
}

// DefaultAnalysis returns an Analysis with every field at its placeholder.
func DefaultAnalysis() Analysis {
	return Analysis{
		Bazi:             []string{},
		Summary:          DefaultSummary,
		SummaryScore:     DefaultScore,
		Personality:      DefaultPersonality,
		PersonalityScore: DefaultScore,
		Industry:         DefaultNarrative,
		IndustryScore:    DefaultScore,
		FengShui:         DefaultFengShui,
		FengShuiScore:    DefaultScore,
		Wealth:           DefaultNarrative,
		WealthScore:      DefaultScore,
		Marriage:         DefaultNarrative,
		MarriageScore:    DefaultScore,
		Health:           DefaultNarrative,
		HealthScore:      DefaultScore,
		Family:           DefaultNarrative,
		FamilyScore:      DefaultScore,
		Crypto:           DefaultCrypto,
		CryptoScore:      DefaultScore,
		CryptoYear:       DefaultCryptoYear,
		CryptoStyle:      DefaultCryptoStyle,
	}
}
