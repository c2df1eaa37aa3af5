package verifier

import "fmt"

const promptTemplate = `任务描述：%s

请仔细观察图像，判断图像中**是否出现了**任务描述中提到的情况或内容。

判断标准：
1. 如果图像中明确出现了任务描述中的情况，返回 match = true
2. 如果图像中没有出现任务描述中的情况，返回 match = false
3. 确保判断结果与实际观察到的内容一致

请以JSON格式回答，包含以下字段：
- match: 布尔值，true表示图像中出现了描述的情况，false表示未出现
- reason: 字符串，详细说明你观察到的内容和判断依据`

// BuildPrompt renders the instruction sent alongside the image. The task is
// embedded verbatim and the output is a pure function of it.
func BuildPrompt(task string) string {
	return fmt.Sprintf(promptTemplate, task)
}
