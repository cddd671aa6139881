// Package prompt renders the system and user prompts for a report request.
package prompt

import (
	"embed"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/RAGGA-TIME/lifekline/bazi"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.tmpl"))

// StrictJSONSuffix is appended to the system instruction.
const StrictJSONSuffix = "\n\n⚠️ 重要：必须严格按照指定的JSON结构输出，只输出纯JSON对象，不要包含任何markdown代码块标记、说明文字或其他格式内容。确保JSON语法完全正确，所有字符串用双引号，所有键名用双引号。"

// ToolFollowUp is the user turn sent after the tool result.
const ToolFollowUp = "请基于 bazi MCP 工具的计算结果（或根据工具参数进行准确计算），完成命理分析和人生K线数据生成。必须使用准确的八字四柱和大运信息。"

const (
	defaultName    = "未提供"
	childhoodDaYun = "童限"
)

// ErrInvalidInput is wrapped by BirthInput.Validate failures.
var ErrInvalidInput = errors.New("invalid birth input")

// BirthInput is what the user supplies about the subject.
type BirthInput struct {
	Name       string `json:"name,omitempty" yaml:"name,omitempty"`
	Gender     string `json:"gender" yaml:"gender"`
	Year       int    `json:"year" yaml:"year"`
	Month      int    `json:"month" yaml:"month"`
	Day        int    `json:"day" yaml:"day"`
	Hour       int    `json:"hour" yaml:"hour"`
	Minute     int    `json:"minute" yaml:"minute"`
	Calendar   string `json:"calendarType" yaml:"calendarType"`
	BirthPlace string `json:"birthPlace,omitempty" yaml:"birthPlace,omitempty"`
}

// Normalize lowercases enum fields and trims text fields. An empty calendar
// becomes solar.
func (in BirthInput) Normalize() BirthInput {
	in.Name = strings.TrimSpace(in.Name)
	in.BirthPlace = strings.TrimSpace(in.BirthPlace)
	in.Gender = strings.ToLower(strings.TrimSpace(in.Gender))
	in.Calendar = strings.ToLower(strings.TrimSpace(in.Calendar))
	if in.Calendar == "" {
		in.Calendar = bazi.CalendarSolar
	}
	return in
}

// Query converts the input to a bazi service query.
func (in BirthInput) Query() bazi.Query {
	return bazi.Query{
		Year:         in.Year,
		Month:        in.Month,
		Day:          in.Day,
		Hour:         in.Hour,
		Minute:       in.Minute,
		Gender:       in.Gender,
		CalendarType: in.Calendar,
		BirthPlace:   in.BirthPlace,
	}
}

// Validate checks the normalized input.
func (in BirthInput) Validate() error {
	if err := in.Query().Validate(); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidInput, strings.TrimPrefix(err.Error(), bazi.ErrInvalidQuery.Error()+": "))
	}
	return nil
}

// GenderLabel renders the gender for the prompt.
func (in BirthInput) GenderLabel() string {
	if in.Gender == bazi.GenderMale {
		return "男 (乾造)"
	}
	return "女 (坤造)"
}

// CalendarLabel renders the calendar type for the prompt.
func (in BirthInput) CalendarLabel() string {
	if in.Calendar == bazi.CalendarLunar {
		return "阴历"
	}
	return "阳历"
}

// TimeLabel renders the birth time as HH:MM.
func (in BirthInput) TimeLabel() string {
	return fmt.Sprintf("%02d:%02d", in.Hour, in.Minute)
}

// System returns the full system instruction.
func System() string {
	var sb strings.Builder
	if err := templates.ExecuteTemplate(&sb, "system.tmpl", nil); err != nil {
		panic(fmt.Sprintf("prompt: render system: %v", err))
	}
	return strings.TrimSpace(sb.String()) + StrictJSONSuffix
}

type userData struct {
	BirthInput
	Chart       *bazi.Chart
	UseTool     bool
	ToolName    string
	DisplayName string
	Place       string
	Sequence    string
	FirstDaYun  string
	BeforeStart int
	FirstEnd    int
}

func newUserData(in BirthInput, chart *bazi.Chart, useTool bool) userData {
	d := userData{
		BirthInput:  in,
		Chart:       chart,
		UseTool:     useTool && chart == nil,
		ToolName:    bazi.ToolName,
		DisplayName: in.Name,
	}
	if d.DisplayName == "" {
		d.DisplayName = defaultName
	}
	if in.BirthPlace != "" {
		d.Place = "\n出生地：" + in.BirthPlace
	}
	if chart != nil {
		d.Sequence = strings.Join(chart.DaYun.Sequence, " → ")
		d.BeforeStart = max(chart.DaYun.StartAge-1, 1)
		d.FirstEnd = chart.DaYun.StartAge + 9
		d.FirstDaYun = childhoodDaYun
		if len(chart.DaYun.Sequence) > 0 {
			d.FirstDaYun = chart.DaYun.Sequence[0]
		}
	}
	return d
}

func render(d userData) string {
	var sb strings.Builder
	if err := templates.ExecuteTemplate(&sb, "user.tmpl", d); err != nil {
		panic(fmt.Sprintf("prompt: render user: %v", err))
	}
	return strings.TrimSpace(sb.String())
}

// BuildUser renders the user prompt. With a chart the pillars and luck
// cycles are embedded; without one the model is asked to compute them.
func BuildUser(in BirthInput, chart *bazi.Chart) string {
	return render(newUserData(in, chart, false))
}

// BuildToolUser renders the user prompt that asks the model to call the
// get_bazi_detail tool first.
func BuildToolUser(in BirthInput) string {
	return render(newUserData(in, nil, true))
}
