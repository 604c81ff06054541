package converter

// TextConverter 定义文本转换器接口
type TextConverter interface {
	Convert(text string) string // 将简体中文转换为繁体，非中文字符保持不变
}

// Func 把普通函数适配为 TextConverter，便于注入恒等转换或查表转换
type Func func(text string) string

func (f Func) Convert(text string) string {
	return f(text)
}

// Identity 原样返回输入的转换器
var Identity TextConverter = Func(func(text string) string { return text })
