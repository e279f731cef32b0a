package chat

import "fmt"

// systemPrompt is the fixed instruction prepended to every conversation turn.
const systemPrompt = "You are SofAI, a concise and helpful assistant. Answer the user's question directly."

// Template names. Different model families require different turn-delimiter
// conventions; unknown names fall back to TemplateGeneric.
const (
	TemplateChatML  = "chatml"
	TemplateZephyr  = "zephyr"
	TemplateGeneric = "generic"
)

// BuildPrompt renders a single-turn role-tagged prompt for the given
// template name.
func BuildPrompt(template, userMessage string) string {
	switch template {
	case TemplateChatML:
		return fmt.Sprintf("<|im_start|>system\n%s<|im_end|>\n<|im_start|>user\n%s<|im_end|>\n<|im_start|>assistant\n",
			systemPrompt, userMessage)
	case TemplateZephyr:
		return fmt.Sprintf("<|system|>\n%s</s>\n<|user|>\n%s</s>\n<|assistant|>\n",
			systemPrompt, userMessage)
	default:
		return fmt.Sprintf("### System:\n%s\n\n### User:\n%s\n\n### Assistant:\n",
			systemPrompt, userMessage)
	}
}
