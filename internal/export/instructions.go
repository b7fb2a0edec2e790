package export

import (
	"github.com/andresuchdata/stalestock/internal/domain"
)

// ExampleTable is a small sample dataset shown to users.
type ExampleTable struct {
	Title   string     `json:"title"`
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Guide describes the expected upload format and how to fix common problems.
type Guide struct {
	Prompt          string         `json:"prompt"`
	RequiredColumns []string       `json:"required_columns"`
	Examples        []ExampleTable `json:"examples"`
	Encodings       []string       `json:"encodings"`
	EncodingSteps   []GuideStep    `json:"encoding_steps"`
	LoadFailure     []string       `json:"load_failure"`
}

type GuideStep struct {
	Title   string   `json:"title"`
	Details []string `json:"details"`
}

// Instructions returns the upload guide. encodings lists the manual choices.
func Instructions(encodings []string) Guide {
	return Guide{
		Prompt:          "请上传CSV文件开始分析",
		RequiredColumns: append([]string(nil), domain.RequiredColumns...),
		Examples: []ExampleTable{
			{
				Title:   "中文列名示例",
				Columns: []string{"店铺", "品名", "产品类别", "Msku", "日均", "上月滞销", "本月滞销"},
				Rows: [][]string{
					{"店铺A", "产品A", "类别1", "MSKU001", "10", "100", "120"},
					{"店铺A", "产品B", "类别2", "MSKU002", "5", "50", "40"},
					{"店铺B", "产品C", "类别1", "MSKU003", "8", "80", "90"},
				},
			},
			{
				Title:   "英文列名示例",
				Columns: []string{"store", "product", "category", "Msku", "daily", "last_month", "this_month"},
				Rows: [][]string{
					{"StoreA", "ProductA", "Category1", "MSKU001", "10", "100", "120"},
					{"StoreA", "ProductB", "Category2", "MSKU002", "5", "50", "40"},
					{"StoreB", "ProductC", "Category1", "MSKU003", "8", "80", "90"},
				},
			},
		},
		Encodings: append([]string{"自动检测"}, encodings...),
		EncodingSteps: []GuideStep{
			{Title: "在Excel中另存为UTF-8格式", Details: []string{"文件 → 另存为", "选择\"CSV UTF-8\"格式", "保存后重新上传"}},
			{Title: "检查列名一致性", Details: []string{"确保包含所有必要列", "列名可以是中文或英文"}},
			{Title: "检查数据内容", Details: []string{"数值列不要包含文本字符", "确保没有特殊字符影响解析"}},
		},
		LoadFailure: []string{
			"检查文件编码: 在Excel中另存为时选择\"CSV UTF-8\"格式",
			"检查列名: 确保包含必要的列名",
			"检查数据格式: 确保数值列没有文本字符",
		},
	}
}
