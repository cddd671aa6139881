package bazi

import (
	"encoding/json"

	"github.com/RAGGA-TIME/lifekline/provider"
)

// ToolName is the function name models call to request a chart.
const ToolName = "get_bazi_detail"

const failureNote = "⚠️ bazi-mcp API 调用失败，请根据工具调用参数（出生日期、时间、性别等），使用专业的八字计算方法，准确计算四柱干支和大运信息，然后基于计算结果进行命理分析。"

// ToolDefinition returns the get_bazi_detail function schema.
func ToolDefinition() provider.Tool {
	integer := func(desc string) map[string]any {
		return map[string]any{"type": "integer", "description": desc}
	}
	return provider.Tool{
		Type: "function",
		Function: provider.FunctionDef{
			Name:        ToolName,
			Description: "根据出生日期和时间计算八字四柱、大运等详细信息。这是计算八字的标准工具，必须使用此工具获取准确的八字信息，不要自行计算。",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"year":   integer("出生年份，例如：1990"),
					"month":  integer("出生月份，1-12"),
					"day":    integer("出生日期，1-31"),
					"hour":   integer("出生小时，0-23"),
					"minute": integer("出生分钟，0-59"),
					"gender": map[string]any{
						"type":        "string",
						"enum":        []string{GenderMale, GenderFemale},
						"description": "性别：male=男(乾造), female=女(坤造)",
					},
					"calendarType": map[string]any{
						"type":        "string",
						"enum":        []string{CalendarSolar, CalendarLunar},
						"description": "日历类型：solar=阳历, lunar=阴历",
					},
					"birthPlace": map[string]any{
						"type":        "string",
						"description": "出生地（可选），例如：北京市",
					},
				},
				"required": []string{"year", "month", "day", "hour", "minute", "gender", "calendarType"},
			},
		},
	}
}

type toolSuccess struct {
	Success     bool        `json:"success"`
	FourPillars FourPillars `json:"fourPillars"`
	DaYun       DaYun       `json:"daYun"`
	Metadata    Metadata    `json:"metadata"`
	Message     string      `json:"message"`
}

type toolFailure struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Note    string `json:"note"`
}

// ToolResult renders a chart as the content of a tool message.
func ToolResult(c *Chart) string {
	b, _ := json.Marshal(toolSuccess{
		Success:     true,
		FourPillars: c.FourPillars,
		DaYun:       c.DaYun,
		Metadata:    c.Metadata,
		Message:     c.Summary(),
	})
	return string(b)
}

// ToolFailure renders a lookup failure as the content of a tool message.
// The model is asked to compute the chart itself.
func ToolFailure(err error) string {
	b, _ := json.Marshal(toolFailure{Error: err.Error(), Note: failureNote})
	return string(b)
}
