package prompt

import (
	"errors"
	"strings"
	"testing"

	"github.com/RAGGA-TIME/lifekline/bazi"
)

func sampleInput() BirthInput {
	return BirthInput{Gender: "Male", Year: 1990, Month: 3, Day: 15, Hour: 8, Minute: 5, Calendar: " SOLAR "}.Normalize()
}

func assertContains(t *testing.T, got string, wants ...string) {
	t.Helper()
	for _, w := range wants {
		if !strings.Contains(got, w) {
			t.Errorf("missing %q in:\n%s", w, got)
		}
	}
}

func TestBirthInput_Normalize(t *testing.T) {
	in := sampleInput()
	if in.Gender != bazi.GenderMale || in.Calendar != bazi.CalendarSolar {
		t.Errorf("Normalize() = %+v", in)
	}
	if got := (BirthInput{}).Normalize().Calendar; got != bazi.CalendarSolar {
		t.Errorf("empty calendar normalized to %q", got)
	}
}

func TestBirthInput_Labels(t *testing.T) {
	in := sampleInput()
	if got := in.GenderLabel(); got != "男 (乾造)" {
		t.Errorf("GenderLabel() = %q", got)
	}
	if got := in.TimeLabel(); got != "08:05" {
		t.Errorf("TimeLabel() = %q", got)
	}
	if got := in.CalendarLabel(); got != "阳历" {
		t.Errorf("CalendarLabel() = %q", got)
	}

	in.Gender = bazi.GenderFemale
	in.Calendar = bazi.CalendarLunar
	if in.GenderLabel() != "女 (坤造)" || in.CalendarLabel() != "阴历" {
		t.Errorf("labels = %q %q", in.GenderLabel(), in.CalendarLabel())
	}
}

func TestBirthInput_Validate(t *testing.T) {
	if err := sampleInput().Validate(); err != nil {
		t.Fatalf("valid input rejected: %v", err)
	}
	in := sampleInput()
	in.Month = 0
	err := in.Validate()
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("Validate() = %v, want ErrInvalidInput", err)
	}
	if !strings.Contains(err.Error(), "month 0 out of range") {
		t.Errorf("message = %q", err)
	}
}

func TestBuildUser_WithoutChart(t *testing.T) {
	got := BuildUser(sampleInput(), nil)
	assertContains(t, got,
		"进行八字排盘和大运计算",
		"性别：男 (乾造)",
		"姓名：未提供",
		"出生日期：1990年 3月 15日 08:05 (阳历)",
		"【第一步：八字排盘计算】",
	)
	if strings.Contains(got, "出生地") {
		t.Error("birth place line rendered without a place")
	}
}

func TestBuildUser_WithChart(t *testing.T) {
	in := sampleInput()
	in.Name = "张三"
	in.BirthPlace = "北京市"
	chart := &bazi.Chart{
		FourPillars: bazi.FourPillars{Year: "庚午", Month: "己卯", Day: "丙寅", Hour: "壬辰"},
		DaYun:       bazi.DaYun{StartAge: 4, Direction: "顺", Sequence: []string{"庚辰", "辛巳"}},
	}

	got := BuildUser(in, chart)
	assertContains(t, got,
		"预计算的八字信息",
		"姓名：张三",
		"(阳历)\n出生地：北京市",
		"年柱：庚午",
		"时柱：壬辰",
		"大运序列：庚辰 → 辛巳",
		"Age 1 到 3：daYun = \"童限\"",
		"Age 4 到 13：daYun = \"庚辰\"",
	)
	if strings.Contains(got, "第一步：八字排盘计算") {
		t.Error("chart prompt still asks the model to compute pillars")
	}
}

func TestBuildToolUser(t *testing.T) {
	in := sampleInput()
	in.BirthPlace = "上海"
	got := BuildToolUser(in)
	assertContains(t, got,
		"先调用 bazi MCP 工具",
		"`get_bazi_detail`",
		"- hour: 8",
		"- gender: male",
		"- calendarType: solar",
		"- birthPlace: 上海",
	)
}

func TestSystem(t *testing.T) {
	got := System()
	assertContains(t, got, `"chartPoints"`, `"summaryScore"`, `"cryptoStyle"`)
	if !strings.HasSuffix(got, StrictJSONSuffix) {
		t.Error("system prompt does not end with the strict JSON suffix")
	}
}
